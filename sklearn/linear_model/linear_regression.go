// Package linear_model provides ordinary least squares regression.
package linear_model

import (
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/metrics"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

func init() {
	gob.Register(&LinearRegression{})
}

// LinearRegression is a linear regression model using ordinary least squares.
//
// The system is solved with a thin SVD on centred data, so rank-deficient
// designs (e.g. one-hot blocks together with an intercept) yield the
// minimum-norm solution instead of failing.
type LinearRegression struct {
	State *model.StateManager

	// Hyperparameters
	FitIntercept bool

	// Learned parameters
	CoefValues     []float64
	InterceptValue float64
	Rank           int
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithFitIntercept は切片の学習有無を設定
func WithFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.FitIntercept = fit
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		State:        model.NewStateManager(),
		FitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	rows, cols, err := model.CheckXY("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}

	// 切片を学習する場合は中心化してから解く
	xMean := make([]float64, cols)
	var yMean float64
	if lr.FitIntercept {
		for j := 0; j < cols; j++ {
			for i := 0; i < rows; i++ {
				xMean[j] += X.At(i, j)
			}
			xMean[j] /= float64(rows)
		}
		for i := 0; i < rows; i++ {
			yMean += y.At(i, 0)
		}
		yMean /= float64(rows)
	}

	A := mat.NewDense(rows, cols, nil)
	b := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			A.Set(i, j, X.At(i, j)-xMean[j])
		}
		b.Set(i, 0, y.At(i, 0)-yMean)
	}

	var svd mat.SVD
	if ok := svd.Factorize(A, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "svd factorization failed", errors.ErrSingularMatrix)
	}
	rcond := math.Nextafter(1, 2) - 1
	rcond *= float64(max(rows, cols))
	rank := svd.Rank(rcond)
	if rank == 0 {
		// すべての特徴量が定数: 係数ゼロ、切片は平均
		lr.CoefValues = make([]float64, cols)
		lr.InterceptValue = yMean
		lr.Rank = 0
		lr.State.SetFitted(cols, rows)
		return nil
	}

	var coef mat.Dense
	svd.SolveTo(&coef, b, rank)

	lr.CoefValues = mat.Col(nil, 0, &coef)
	lr.InterceptValue = 0
	if lr.FitIntercept {
		lr.InterceptValue = yMean
		for j := 0; j < cols; j++ {
			lr.InterceptValue -= xMean[j] * lr.CoefValues[j]
		}
	}
	lr.Rank = rank

	for _, c := range lr.CoefValues {
		if err := errors.CheckScalar("LinearRegression.Fit.coef", c); err != nil {
			return err
		}
	}

	lr.State.SetFitted(cols, rows)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.CheckPredictInput("LinearRegression", X); err != nil {
		return nil, err
	}

	rows, cols := X.Dims()
	predictions := make([]float64, rows)
	for i := 0; i < rows; i++ {
		pred := lr.InterceptValue
		for j := 0; j < cols; j++ {
			pred += X.At(i, j) * lr.CoefValues[j]
		}
		predictions[i] = pred
	}
	return model.ColumnVector(predictions), nil
}

// Score はモデルの決定係数（R²）を計算
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, predictions)
}

// Coef は学習された重み係数を返す
func (lr *LinearRegression) Coef() []float64 {
	if lr.CoefValues == nil {
		return nil
	}
	coef := make([]float64, len(lr.CoefValues))
	copy(coef, lr.CoefValues)
	return coef
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.InterceptValue
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) GetParams() model.Params {
	return model.Params{
		"fit_intercept": lr.FitIntercept,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) SetParams(params model.Params) error {
	for name, value := range params {
		switch name {
		case "fit_intercept":
			v, err := model.ToBool(name, value)
			if err != nil {
				return err
			}
			lr.FitIntercept = v
		default:
			return model.UnknownParamError("LinearRegression", name, value)
		}
	}
	return nil
}

// Clone はモデルの新しい未学習インスタンスを作成（同じハイパーパラメータ）
func (lr *LinearRegression) Clone() model.Regressor {
	return NewLinearRegression(WithFitIntercept(lr.FitIntercept))
}

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	if !lr.State.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.FitIntercept)
	}
	nFeatures, _ := lr.State.GetDimensions()
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, rank=%d, fitted=true)",
		lr.FitIntercept, nFeatures, lr.Rank)
}
