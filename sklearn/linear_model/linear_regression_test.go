package linear_model

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

func TestLinearRegression_RecoversCoefficients(t *testing.T) {
	// y = 2*x1 + 3*x2 - x3 + 5
	X := mat.NewDense(100, 3, nil)
	y := mat.NewDense(100, 1, nil)
	for i := 0; i < 100; i++ {
		X.Set(i, 0, math.Sin(float64(i)/10.0))
		X.Set(i, 1, math.Cos(float64(i)/10.0))
		X.Set(i, 2, float64(i)/50.0)
		y.Set(i, 0, 2*X.At(i, 0)+3*X.At(i, 1)-X.At(i, 2)+5)
	}

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	coef := lr.Coef()
	require.Len(t, coef, 3)
	assert.InDelta(t, 2.0, coef[0], 1e-8)
	assert.InDelta(t, 3.0, coef[1], 1e-8)
	assert.InDelta(t, -1.0, coef[2], 1e-8)
	assert.InDelta(t, 5.0, lr.Intercept(), 1e-8)

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-10)
}

func TestLinearRegression_RankDeficientOneHot(t *testing.T) {
	// Two one-hot columns always sum to one, which is collinear with the intercept.
	X := mat.NewDense(6, 3, []float64{
		1, 0, 0.5,
		0, 1, 1.0,
		1, 0, 1.5,
		0, 1, 2.0,
		1, 0, 2.5,
		0, 1, 3.0,
	})
	y := mat.NewDense(6, 1, nil)
	for i := 0; i < 6; i++ {
		y.Set(i, 0, 10*X.At(i, 0)+4*X.At(i, 2)+1)
	}

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	assert.Equal(t, 2, lr.Rank)

	pred, err := lr.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		assert.InDelta(t, y.At(i, 0), pred.At(i, 0), 1e-8)
	}
}

func TestLinearRegression_NoIntercept(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})

	lr := NewLinearRegression(WithFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))
	assert.InDelta(t, 2.0, lr.Coef()[0], 1e-10)
	assert.Equal(t, 0.0, lr.Intercept())
}

func TestLinearRegression_Errors(t *testing.T) {
	lr := NewLinearRegression()

	_, err := lr.Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	err = lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{1, 2}))
	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))

	require.NoError(t, lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(3, 1, []float64{1, 2, 3})))
	_, err = lr.Predict(mat.NewDense(1, 2, nil))
	require.True(t, errors.As(err, &dimErr))
}

func TestLinearRegression_Params(t *testing.T) {
	lr := NewLinearRegression()
	require.NoError(t, lr.SetParams(model.Params{"fit_intercept": false}))
	assert.Equal(t, model.Params{"fit_intercept": false}, lr.GetParams())

	err := lr.SetParams(model.Params{"alpha": 1.0})
	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))

	require.NoError(t, lr.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, 2})))
	clone := lr.Clone().(*LinearRegression)
	assert.False(t, clone.State.IsFitted())
	assert.False(t, clone.FitIntercept)
}

func TestLinearRegression_GobRoundTrip(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{3, 5, 7, 9})
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	var buf bytes.Buffer
	var r model.Regressor = lr
	require.NoError(t, gob.NewEncoder(&buf).Encode(&r))

	var loaded model.Regressor
	require.NoError(t, gob.NewDecoder(&buf).Decode(&loaded))

	pred, err := loaded.Predict(mat.NewDense(1, 1, []float64{10}))
	require.NoError(t, err)
	assert.InDelta(t, 21.0, pred.At(0, 0), 1e-9)
}
