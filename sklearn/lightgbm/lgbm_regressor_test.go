package lightgbm

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

func sineData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x0 := float64(i) * 6 / float64(n)
		x1 := float64(i%7) / 7
		X.Set(i, 0, x0)
		X.Set(i, 1, x1)
		y.Set(i, 0, 10*math.Sin(x0)+x1)
	}
	return X, y
}

func TestFindBinBoundaries(t *testing.T) {
	t.Run("few distinct values", func(t *testing.T) {
		assert.Equal(t, []float64{1.5, 2.5}, findBinBoundaries([]float64{3, 1, 2, 1}, 255))
	})

	t.Run("equal frequency", func(t *testing.T) {
		values := make([]float64, 100)
		for i := range values {
			values[i] = float64(i)
		}
		assert.Equal(t, []float64{24.5, 49.5, 74.5}, findBinBoundaries(values, 4))
	})

	t.Run("constant column", func(t *testing.T) {
		assert.Empty(t, findBinBoundaries([]float64{7, 7, 7}, 255))
	})
}

func TestBinMapper(t *testing.T) {
	rows := [][]float64{{1, 10}, {2, 10}, {3, 20}}
	bm := NewBinMapper(rows, 255)

	assert.Equal(t, 3, bm.NumBins(0))
	assert.Equal(t, 2, bm.NumBins(1))
	assert.Equal(t, [][]int{{0, 0}, {1, 0}, {2, 1}}, bm.Transform(rows))
	// 境界値ちょうどは左のビン
	assert.Equal(t, 0, bm.Bin(0, 1.5))
	assert.Equal(t, 2, bm.Bin(0, 100))
}

func TestHistogramSubtraction(t *testing.T) {
	X, _ := sineData(50)
	rows := model.Rows(X)
	bm := NewBinMapper(rows, 16)
	binned := bm.Transform(rows)
	nBins := []int{bm.NumBins(0), bm.NumBins(1)}

	grad := make([]float64, len(rows))
	hess := make([]float64, len(rows))
	all := make([]int, len(rows))
	var left, right []int
	for i := range rows {
		grad[i] = float64(i%5) - 2
		hess[i] = 1
		all[i] = i
		if i%3 == 0 {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	parent := BuildHistogram(binned, all, grad, hess, nBins)
	direct := BuildHistogram(binned, right, grad, hess, nBins)
	derived := parent.Subtract(BuildHistogram(binned, left, grad, hess, nBins))

	for f := range direct {
		for b := range direct[f] {
			assert.Equal(t, direct[f][b].Count, derived[f][b].Count)
			assert.InDelta(t, direct[f][b].SumGradients, derived[f][b].SumGradients, 1e-9)
			assert.InDelta(t, direct[f][b].SumHessians, derived[f][b].SumHessians, 1e-9)
		}
	}
}

func TestLGBMRegressor_FitPredict(t *testing.T) {
	X, y := sineData(200)

	reg := NewLGBMRegressor().WithMinChildSamples(5)
	require.NoError(t, reg.Fit(X, y))
	assert.Len(t, reg.Trees, 100)

	score, err := reg.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.95)
}

func TestLGBMRegressor_TreeShapeLimits(t *testing.T) {
	X, y := sineData(200)

	reg := NewLGBMRegressor().WithNumLeaves(4).WithMinChildSamples(2).WithNumIterations(10)
	require.NoError(t, reg.Fit(X, y))
	for _, tr := range reg.Trees {
		assert.LessOrEqual(t, tr.Leaves(), 4)
	}

	stumps := NewLGBMRegressor().WithMaxDepth(1).WithMinChildSamples(2).WithNumIterations(10)
	require.NoError(t, stumps.Fit(X, y))
	for _, tr := range stumps.Trees {
		assert.LessOrEqual(t, tr.Depth(), 1)
	}
}

func TestLGBMRegressor_ConstantTarget(t *testing.T) {
	X, _ := sineData(40)
	y := mat.NewDense(40, 1, nil)
	for i := 0; i < 40; i++ {
		y.Set(i, 0, 3.5)
	}

	reg := NewLGBMRegressor().WithNumIterations(5)
	require.NoError(t, reg.Fit(X, y))
	for _, tr := range reg.Trees {
		assert.Equal(t, 1, tr.Leaves())
	}
	pred, err := reg.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 40; i++ {
		assert.Equal(t, 3.5, pred.At(i, 0))
	}
}

func TestLGBMRegressor_SmallLearningRateStaysNearMean(t *testing.T) {
	X, y := sineData(100)

	reg := NewLGBMRegressor().WithLearningRate(0.001).WithNumIterations(8)
	require.NoError(t, reg.Fit(X, y))
	score, err := reg.Score(X, y)
	require.NoError(t, err)
	assert.Less(t, score, 0.1)
}

func TestLGBMRegressor_DeterministicWithColumnSampling(t *testing.T) {
	X, y := sineData(120)
	fit := func() mat.Matrix {
		reg := NewLGBMRegressor().WithNumIterations(20)
		require.NoError(t, reg.SetParams(model.Params{"colsample_bytree": 0.5}))
		require.NoError(t, reg.Fit(X, y))
		pred, err := reg.Predict(X)
		require.NoError(t, err)
		return pred
	}
	assert.True(t, mat.Equal(fit(), fit()))
}

func TestLGBMRegressor_FeatureImportance(t *testing.T) {
	X, y := sineData(200)

	reg := NewLGBMRegressor().WithNumIterations(20)
	_, err := reg.GetFeatureImportance("gain")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	require.NoError(t, reg.Fit(X, y))
	gain, err := reg.GetFeatureImportance("gain")
	require.NoError(t, err)
	assert.Greater(t, gain[0], gain[1])

	splits, err := reg.GetFeatureImportance("split")
	require.NoError(t, err)
	var internal int
	for _, tr := range reg.Trees {
		internal += tr.Leaves() - 1
	}
	assert.Equal(t, float64(internal), splits[0]+splits[1])

	_, err = reg.GetFeatureImportance("cover")
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestLGBMRegressor_Params(t *testing.T) {
	reg := NewLGBMRegressor()
	require.NoError(t, reg.SetParams(model.Params{"learning_rate": 0.05, "n_estimators": 16}))

	clone := reg.Clone().(*LGBMRegressor)
	assert.Equal(t, 0.05, clone.LearningRate)
	assert.Equal(t, 16, clone.NumIterations)
	assert.False(t, clone.State.IsFitted())

	reg.MaxBin = 1
	reg.ColsampleBytree = 0.5
	for i := 0; i < 20; i++ {
		assert.Equal(t, reg.GetParams(), reg.Clone().GetParams())
	}

	var verr *errors.ValidationError
	assert.True(t, errors.As(reg.SetParams(model.Params{"boosting": "dart"}), &verr))
	assert.True(t, errors.As(reg.SetParams(model.Params{"learning_rate": -1.0}), &verr))
	assert.True(t, errors.As(reg.WithNumLeaves(1).Fit(sineData(10)), &verr))
}

func TestLGBMRegressor_NotFittedAndGob(t *testing.T) {
	X, y := sineData(60)

	var m model.Regressor = NewLGBMRegressor().WithNumIterations(5)
	_, err := m.Predict(X)
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	require.NoError(t, m.Fit(X, y))
	want, err := m.Predict(X)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(&m))
	var loaded model.Regressor
	require.NoError(t, gob.NewDecoder(&buf).Decode(&loaded))
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))

	_, err = loaded.Predict(mat.NewDense(1, 3, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}
