package preprocessing

import (
	"encoding/gob"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

func init() {
	gob.Register(&SimpleImputer{})
}

// 欠損値の補完方法
const (
	StrategyMean         = "mean"
	StrategyMedian       = "median"
	StrategyMostFrequent = "most_frequent"
)

// SimpleImputer は列ごとの統計量で欠損値を埋める。
// 数値列では NaN、文字列列では空文字や "NA" などの欠損マーカーが対象
type SimpleImputer struct {
	State *model.StateManager

	Strategy string

	// Statistics は数値列の補完値
	Statistics []float64
	// Fill は文字列列の補完値
	Fill []string
}

// NewSimpleImputer は指定した補完方法のSimpleImputerを作成する
func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{State: model.NewStateManager(), Strategy: strategy}
}

func (im *SimpleImputer) validate() error {
	switch im.Strategy {
	case StrategyMean, StrategyMedian, StrategyMostFrequent:
		return nil
	}
	return errors.NewValidationError("strategy", "must be mean, median or most_frequent", im.Strategy)
}

// Fit は NaN を除いた各列の統計量を計算する。全て欠損の列はエラー
func (im *SimpleImputer) Fit(X mat.Matrix) error {
	if err := im.validate(); err != nil {
		return err
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	stats := make([]float64, c)
	for j := 0; j < c; j++ {
		present := make([]float64, 0, r)
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		if len(present) == 0 {
			return errors.NewValueError("SimpleImputer.Fit", fmt.Sprintf("column %d has no observed values", j))
		}
		switch im.Strategy {
		case StrategyMean:
			stats[j] = stat.Mean(present, nil)
		case StrategyMedian:
			stats[j] = median(present)
		case StrategyMostFrequent:
			stats[j] = mostFrequentFloat(present)
		}
	}
	im.Statistics = stats
	im.Fill = nil
	im.state().SetFitted(c, r)
	return nil
}

// Transform は NaN を学習済みの統計量で置き換える
func (im *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := im.State.RequireFitted("SimpleImputer", "Transform"); err != nil {
		return nil, err
	}
	if im.Statistics == nil {
		return nil, errors.NewValueError("SimpleImputer.Transform", "imputer was fitted on string columns")
	}
	r, c := X.Dims()
	if c != len(im.Statistics) {
		return nil, errors.NewDimensionError("SimpleImputer.Transform", len(im.Statistics), c, 1)
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return im.Statistics[j]
		}
		return v
	}, X)
	return out, nil
}

// FitStrings は文字列列の最頻値を学習する。columns は列ごとの値
func (im *SimpleImputer) FitStrings(columns [][]string, missing func(string) bool) error {
	if err := im.validate(); err != nil {
		return err
	}
	if im.Strategy != StrategyMostFrequent {
		return errors.NewValidationError("strategy", "string columns support most_frequent only", im.Strategy)
	}
	if len(columns) == 0 || len(columns[0]) == 0 {
		return errors.NewModelError("SimpleImputer.FitStrings", "empty data", errors.ErrEmptyData)
	}
	fill := make([]string, len(columns))
	for j, col := range columns {
		counts := make(map[string]int)
		for _, v := range col {
			if !missing(v) {
				counts[v]++
			}
		}
		if len(counts) == 0 {
			return errors.NewValueError("SimpleImputer.FitStrings", fmt.Sprintf("column %d has no observed values", j))
		}
		fill[j] = mostFrequent(counts)
	}
	im.Fill = fill
	im.Statistics = nil
	im.state().SetFitted(len(columns), len(columns[0]))
	return nil
}

// TransformStrings は欠損セルを学習済みの最頻値で埋めた新しい列を返す
func (im *SimpleImputer) TransformStrings(columns [][]string, missing func(string) bool) ([][]string, error) {
	if err := im.State.RequireFitted("SimpleImputer", "TransformStrings"); err != nil {
		return nil, err
	}
	if len(columns) != len(im.Fill) {
		return nil, errors.NewDimensionError("SimpleImputer.TransformStrings", len(im.Fill), len(columns), 1)
	}
	out := make([][]string, len(columns))
	for j, col := range columns {
		filled := make([]string, len(col))
		for i, v := range col {
			if missing(v) {
				v = im.Fill[j]
			}
			filled[i] = v
		}
		out[j] = filled
	}
	return out, nil
}

func (im *SimpleImputer) state() *model.StateManager {
	if im.State == nil {
		im.State = model.NewStateManager()
	}
	return im.State
}

func (im *SimpleImputer) String() string {
	return fmt.Sprintf("SimpleImputer(strategy=%s)", im.Strategy)
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// 同数の場合は小さい値
func mostFrequentFloat(values []float64) float64 {
	counts := make(map[float64]int)
	for _, v := range values {
		counts[v]++
	}
	best, bestCount := math.Inf(1), 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}

// 同数の場合は辞書順で最初の値
func mostFrequent(counts map[string]int) string {
	var best string
	bestCount := 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}
