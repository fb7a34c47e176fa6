package preprocessing

import (
	"encoding/gob"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/dataset"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

func init() {
	gob.Register(&ColumnTransformer{})
}

// スケーリング方法
const (
	ScalingStandard = "standard"
	ScalingMinMax   = "minmax"
)

// ColumnTransformer は数値列と文字列列を別々の手順で変換し、横に連結する。
//
//   - 数値列: 中央値で補完 → スケーリング
//   - 文字列列: 最頻値で補完 → one-hot
//
// 出力は数値ブロック、続いてカテゴリブロックの順
type ColumnTransformer struct {
	State *model.StateManager

	Numeric     []string
	Categorical []string
	Scaling     string

	NumericImputer     *SimpleImputer
	Scaler             Scaler
	CategoricalImputer *SimpleImputer
	Encoder            *OneHotEncoder
}

// NewColumnTransformer は標準化を使う変換器を作成する
func NewColumnTransformer(numeric, categorical []string) *ColumnTransformer {
	return &ColumnTransformer{
		State:       model.NewStateManager(),
		Numeric:     append([]string(nil), numeric...),
		Categorical: append([]string(nil), categorical...),
		Scaling:     ScalingStandard,
	}
}

// FitTransform は frame で各ステップを学習し、同じ frame を変換する
func (ct *ColumnTransformer) FitTransform(frame *dataset.Frame) (*mat.Dense, error) {
	if len(ct.Numeric)+len(ct.Categorical) == 0 {
		return nil, errors.NewValidationError("columns", "at least one numeric or categorical column is required", nil)
	}
	if frame.Len() == 0 {
		return nil, errors.NewModelError("ColumnTransformer.FitTransform", "empty data", errors.ErrEmptyData)
	}

	var numeric, categorical *mat.Dense
	if len(ct.Numeric) > 0 {
		X, err := numericBlock(frame, ct.Numeric)
		if err != nil {
			return nil, err
		}
		scaler, err := newScaler(ct.Scaling)
		if err != nil {
			return nil, err
		}
		imputer := NewSimpleImputer(StrategyMedian)
		if err := imputer.Fit(X); err != nil {
			return nil, errors.Wrap(err, "fit numeric imputer")
		}
		filled, err := imputer.Transform(X)
		if err != nil {
			return nil, err
		}
		if err := scaler.Fit(filled); err != nil {
			return nil, errors.Wrap(err, "fit scaler")
		}
		scaled, err := scaler.Transform(filled)
		if err != nil {
			return nil, err
		}
		ct.NumericImputer, ct.Scaler = imputer, scaler
		numeric = mat.DenseCopyOf(scaled)
	}

	if len(ct.Categorical) > 0 {
		cols, err := stringBlock(frame, ct.Categorical)
		if err != nil {
			return nil, err
		}
		imputer := NewSimpleImputer(StrategyMostFrequent)
		if err := imputer.FitStrings(cols, dataset.IsMissing); err != nil {
			return nil, errors.Wrap(err, "fit categorical imputer")
		}
		filled, err := imputer.TransformStrings(cols, dataset.IsMissing)
		if err != nil {
			return nil, err
		}
		encoder := NewOneHotEncoder()
		if err := encoder.Fit(filled); err != nil {
			return nil, errors.Wrap(err, "fit one-hot encoder")
		}
		if categorical, err = encoder.Transform(filled); err != nil {
			return nil, err
		}
		ct.CategoricalImputer, ct.Encoder = imputer, encoder
	}

	out := hstack(numeric, categorical)
	if ct.State == nil {
		ct.State = model.NewStateManager()
	}
	_, c := out.Dims()
	ct.State.SetFitted(c, frame.Len())
	return out, nil
}

// Transform は学習済みの手順で frame を変換する
func (ct *ColumnTransformer) Transform(frame *dataset.Frame) (*mat.Dense, error) {
	if err := ct.State.RequireFitted("ColumnTransformer", "Transform"); err != nil {
		return nil, err
	}
	if frame.Len() == 0 {
		return nil, errors.NewModelError("ColumnTransformer.Transform", "empty data", errors.ErrEmptyData)
	}

	var numeric, categorical *mat.Dense
	if len(ct.Numeric) > 0 {
		X, err := numericBlock(frame, ct.Numeric)
		if err != nil {
			return nil, err
		}
		filled, err := ct.NumericImputer.Transform(X)
		if err != nil {
			return nil, err
		}
		scaled, err := ct.Scaler.Transform(filled)
		if err != nil {
			return nil, err
		}
		numeric = mat.DenseCopyOf(scaled)
	}
	if len(ct.Categorical) > 0 {
		cols, err := stringBlock(frame, ct.Categorical)
		if err != nil {
			return nil, err
		}
		filled, err := ct.CategoricalImputer.TransformStrings(cols, dataset.IsMissing)
		if err != nil {
			return nil, err
		}
		if categorical, err = ct.Encoder.Transform(filled); err != nil {
			return nil, err
		}
	}
	return hstack(numeric, categorical), nil
}

// FeatureNames は出力列の名前を返す
func (ct *ColumnTransformer) FeatureNames() ([]string, error) {
	if err := ct.State.RequireFitted("ColumnTransformer", "FeatureNames"); err != nil {
		return nil, err
	}
	names := append([]string(nil), ct.Numeric...)
	if ct.Encoder != nil {
		cats, err := ct.Encoder.FeatureNames(ct.Categorical)
		if err != nil {
			return nil, err
		}
		names = append(names, cats...)
	}
	return names, nil
}

func (ct *ColumnTransformer) String() string {
	return fmt.Sprintf("ColumnTransformer(numeric=[%s], categorical=[%s], scaling=%s)",
		strings.Join(ct.Numeric, ", "), strings.Join(ct.Categorical, ", "), ct.Scaling)
}

func newScaler(kind string) (Scaler, error) {
	switch kind {
	case ScalingStandard, "":
		return NewStandardScalerDefault(), nil
	case ScalingMinMax:
		return NewMinMaxScalerDefault(), nil
	}
	return nil, errors.NewValidationError("scaling", "must be standard or minmax", kind)
}

func numericBlock(frame *dataset.Frame, names []string) (*mat.Dense, error) {
	X := mat.NewDense(frame.Len(), len(names), nil)
	for j, name := range names {
		col, err := frame.Floats(name)
		if err != nil {
			return nil, err
		}
		X.SetCol(j, col)
	}
	return X, nil
}

func stringBlock(frame *dataset.Frame, names []string) ([][]string, error) {
	cols := make([][]string, len(names))
	for j, name := range names {
		col, err := frame.Column(name)
		if err != nil {
			return nil, err
		}
		for i, v := range col {
			col[i] = strings.TrimSpace(v)
		}
		cols[j] = col
	}
	return cols, nil
}

func hstack(a, b *mat.Dense) *mat.Dense {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	r, ca := a.Dims()
	_, cb := b.Dims()
	out := mat.NewDense(r, ca+cb, nil)
	out.Slice(0, r, 0, ca).(*mat.Dense).Copy(a)
	out.Slice(0, r, ca, ca+cb).(*mat.Dense).Copy(b)
	return out
}
