package selection

import (
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

var errBroken = errors.New("broken estimator")

// shrinkRegressor fits y on x0 by least squares and predicts
// mean + Shrink*(fit - mean), giving R² = 1 - (1-Shrink)² on exact linear data.
type shrinkRegressor struct {
	shrink float64
	fail   bool
	panics bool
	fits   *atomic.Int64

	fitted                 bool
	slope, intercept, mean float64
}

func newShrink(s float64) *shrinkRegressor {
	return &shrinkRegressor{shrink: s, fits: new(atomic.Int64)}
}

func (r *shrinkRegressor) Fit(X, y mat.Matrix) error {
	r.fits.Add(1)
	if r.fail {
		return errBroken
	}
	if r.panics {
		panic("kaboom")
	}
	n, _ := X.Dims()
	var sx, sy, sxx, sxy float64
	for i := 0; i < n; i++ {
		x, v := X.At(i, 0), y.At(i, 0)
		sx += x
		sy += v
		sxx += x * x
		sxy += x * v
	}
	fn := float64(n)
	r.slope = (fn*sxy - sx*sy) / (fn*sxx - sx*sx)
	r.intercept = (sy - r.slope*sx) / fn
	r.mean = sy / fn
	r.fitted = true
	return nil
}

func (r *shrinkRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		fit := r.slope*X.At(i, 0) + r.intercept
		out.Set(i, 0, r.mean+r.shrink*(fit-r.mean))
	}
	return out, nil
}

func (r *shrinkRegressor) GetParams() model.Params {
	return model.Params{"shrink": r.shrink, "fail": r.fail, "panics": r.panics}
}

func (r *shrinkRegressor) SetParams(p model.Params) error {
	for name, v := range p {
		var err error
		switch name {
		case "shrink":
			r.shrink, err = model.ToFloat(name, v)
		case "fail":
			r.fail, err = model.ToBool(name, v)
		case "panics":
			r.panics, err = model.ToBool(name, v)
		default:
			err = model.UnknownParamError("shrinkRegressor", name, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *shrinkRegressor) Clone() model.Regressor {
	return &shrinkRegressor{shrink: r.shrink, fail: r.fail, panics: r.panics, fits: r.fits}
}

// linearSplit returns y = 2x with identical train and test sets of n rows.
func linearSplit(n int) (XTrain, yTrain, XTest, yTest *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i+1))
		y.Set(i, 0, 2*float64(i+1))
	}
	return X, y, mat.DenseCopyOf(X), mat.DenseCopyOf(y)
}
