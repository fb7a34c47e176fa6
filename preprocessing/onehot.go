package preprocessing

import (
	"encoding/gob"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

func init() {
	gob.Register(&OneHotEncoder{})
}

// 未知カテゴリの扱い
const (
	HandleUnknownError  = "error"
	HandleUnknownIgnore = "ignore"
)

// OneHotEncoder は文字列列をカテゴリごとの0/1列に展開する。
// カテゴリは辞書順に並ぶ
type OneHotEncoder struct {
	State *model.StateManager

	HandleUnknown string

	Categories [][]string
	index      []map[string]int
}

// NewOneHotEncoder は未知カテゴリを無視するエンコーダを作成する
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{State: model.NewStateManager(), HandleUnknown: HandleUnknownIgnore}
}

// Fit は列ごとのカテゴリ集合を学習する。columns は列ごとの値
func (e *OneHotEncoder) Fit(columns [][]string) error {
	if e.HandleUnknown != HandleUnknownError && e.HandleUnknown != HandleUnknownIgnore {
		return errors.NewValidationError("handle_unknown", "must be error or ignore", e.HandleUnknown)
	}
	if len(columns) == 0 || len(columns[0]) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	cats := make([][]string, len(columns))
	for j, col := range columns {
		seen := make(map[string]struct{})
		for _, v := range col {
			seen[v] = struct{}{}
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		cats[j] = values
	}
	e.Categories = cats
	e.index = e.lookup()
	if e.State == nil {
		e.State = model.NewStateManager()
	}
	e.State.SetFitted(len(columns), len(columns[0]))
	return nil
}

// NumOutputs は展開後の列数
func (e *OneHotEncoder) NumOutputs() int {
	n := 0
	for _, c := range e.Categories {
		n += len(c)
	}
	return n
}

// Transform は各行をone-hot行に変換する。無視された未知カテゴリは全て0
func (e *OneHotEncoder) Transform(columns [][]string) (*mat.Dense, error) {
	if err := e.State.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}
	if len(columns) != len(e.Categories) {
		return nil, errors.NewDimensionError("OneHotEncoder.Transform", len(e.Categories), len(columns), 1)
	}
	index := e.index
	if index == nil {
		index = e.lookup()
	}
	rows := 0
	if len(columns) > 0 {
		rows = len(columns[0])
	}
	if rows == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Transform", "empty data", errors.ErrEmptyData)
	}
	out := mat.NewDense(rows, e.NumOutputs(), nil)
	offset := 0
	for j, col := range columns {
		for i, v := range col {
			k, ok := index[j][v]
			if !ok {
				if e.HandleUnknown == HandleUnknownError {
					return nil, errors.NewValueError("OneHotEncoder.Transform",
						fmt.Sprintf("unknown category %q in column %d", v, j))
				}
				continue
			}
			out.Set(i, offset+k, 1)
		}
		offset += len(e.Categories[j])
	}
	return out, nil
}

// FeatureNames は入力列名から "列名_カテゴリ" 形式の出力列名を作る
func (e *OneHotEncoder) FeatureNames(inputs []string) ([]string, error) {
	if len(inputs) != len(e.Categories) {
		return nil, errors.NewDimensionError("OneHotEncoder.FeatureNames", len(e.Categories), len(inputs), 1)
	}
	names := make([]string, 0, e.NumOutputs())
	for j, cats := range e.Categories {
		for _, c := range cats {
			names = append(names, inputs[j]+"_"+c)
		}
	}
	return names, nil
}

// gob は非公開フィールドを復元しないので参照表はその都度作り直す
func (e *OneHotEncoder) lookup() []map[string]int {
	index := make([]map[string]int, len(e.Categories))
	for j, cats := range e.Categories {
		m := make(map[string]int, len(cats))
		for k, c := range cats {
			m[c] = k
		}
		index[j] = m
	}
	return index
}

func (e *OneHotEncoder) String() string {
	return fmt.Sprintf("OneHotEncoder(handle_unknown=%s)", e.HandleUnknown)
}
