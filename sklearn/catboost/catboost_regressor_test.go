package catboost

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/metrics"
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

// categoryData has a category code in column 0 and y = 10*code + small noise.
func categoryData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		code := float64(i % 4)
		X.Set(i, 0, code)
		X.Set(i, 1, float64(i%5))
		y.Set(i, 0, 10*code+0.1*float64(i%5))
	}
	return X, y
}

func r2(t *testing.T, m model.Regressor, X, y mat.Matrix) float64 {
	t.Helper()
	pred, err := m.Predict(X)
	require.NoError(t, err)
	score, err := metrics.R2ScoreMatrix(y, pred)
	require.NoError(t, err)
	return score
}

func TestQuantileBorders(t *testing.T) {
	assert.Equal(t, []float64{1.5, 2.5}, quantileBorders([]float64{2, 1, 3, 2}, 254))
	assert.Nil(t, quantileBorders([]float64{4, 4, 4}, 254))

	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i)
	}
	borders := quantileBorders(values, 9)
	require.Len(t, borders, 9)
	assert.Equal(t, 99.5, borders[0])
	assert.IsIncreasing(t, borders)

	assert.Equal(t, 0, quantize(borders, 99.5))
	assert.Equal(t, 1, quantize(borders, 99.6))
}

func TestObliviousTree_LeafIndex(t *testing.T) {
	tr := &ObliviousTree{
		Features: []int{0, 1},
		Borders:  []float64{0.5, 0.5},
		Leaves:   []float64{10, 11, 12, 13},
	}
	assert.Equal(t, 0, tr.LeafIndex([]float64{0, 0}))
	assert.Equal(t, 1, tr.LeafIndex([]float64{1, 0}))
	assert.Equal(t, 2, tr.LeafIndex([]float64{0, 1}))
	assert.Equal(t, 13.0, tr.PredictRow([]float64{1, 1}))
	assert.Equal(t, 2, tr.Depth())
}

func TestOrderedTargetStatistics(t *testing.T) {
	rows := [][]float64{{7}, {7}, {7}}
	y := []float64{1, 2, 3}
	rng := rand.New(rand.NewPCG(1, 1))

	table := orderedTargetStatistics(rows, y, 0, 10, rng)

	// 最初に現れた行だけが事前分布そのものになる
	var atPrior int
	for _, row := range rows {
		if row[0] == 10 {
			atPrior++
		} else {
			assert.Less(t, row[0], 10.0)
		}
	}
	assert.Equal(t, 1, atPrior)
	assert.Equal(t, CTRStat{Sum: 6, Count: 3}, table.Stats[7])
	assert.Equal(t, 4.0, table.Value(7))
	assert.Equal(t, 10.0, table.Value(99))
}

func TestCatBoostRegressor_FitPredict(t *testing.T) {
	X, y := sineData(200)

	cb := NewCatBoostRegressor(WithLearningRate(0.1))
	require.NoError(t, cb.Fit(X, y))
	assert.Len(t, cb.Trees, 100)
	for _, tr := range cb.Trees {
		assert.Equal(t, 6, tr.Depth())
	}
	assert.Greater(t, r2(t, cb, X, y), 0.95)

	for i := 1; i < len(cb.TrainLoss); i++ {
		assert.LessOrEqual(t, cb.TrainLoss[i], cb.TrainLoss[i-1]+1e-12)
	}
}

func TestCatBoostRegressor_CategoricalFeatures(t *testing.T) {
	X, y := categoryData(200)

	cb := NewCatBoostRegressor(WithLearningRate(0.1), WithDepth(4), WithCatFeatures(0))
	require.NoError(t, cb.Fit(X, y))
	require.Len(t, cb.CTRs, 1)
	for code := 0; code < 4; code++ {
		assert.Equal(t, 50.0, cb.CTRs[0].Stats[float64(code)].Count)
	}

	assert.Greater(t, r2(t, cb, X, y), 0.8)

	pred, err := cb.Predict(mat.NewDense(2, 2, []float64{0, 0, 3, 0}))
	require.NoError(t, err)
	assert.Greater(t, pred.At(1, 0), pred.At(0, 0))
}

func TestCatBoostRegressor_Validation(t *testing.T) {
	X, y := sineData(20)
	var verr *errors.ValidationError

	assert.True(t, errors.As(NewCatBoostRegressor(WithCatFeatures(5)).Fit(X, y), &verr))
	assert.True(t, errors.As(NewCatBoostRegressor(WithCatFeatures(0, 0)).Fit(X, y), &verr))
	assert.True(t, errors.As(NewCatBoostRegressor(WithDepth(0)).Fit(X, y), &verr))

	cb := NewCatBoostRegressor()
	assert.True(t, errors.As(cb.SetParams(model.Params{"depth": 17}), &verr))
	assert.True(t, errors.As(cb.SetParams(model.Params{"l2_leaf_reg": -1.0}), &verr))
	assert.True(t, errors.As(cb.SetParams(model.Params{"grow_policy": "Depthwise"}), &verr))
	assert.True(t, errors.As(cb.SetParams(model.Params{"cat_features": "gender"}), &verr))
}

func TestCatBoostRegressor_Params(t *testing.T) {
	cb := NewCatBoostRegressor()
	require.NoError(t, cb.SetParams(model.Params{
		"depth":         8,
		"learning_rate": 0.05,
		"iterations":    30,
		"cat_features":  []interface{}{3, 1},
	}))

	clone := cb.Clone().(*CatBoostRegressor)
	assert.Equal(t, 8, clone.Depth)
	assert.Equal(t, 0.05, clone.LearningRate)
	assert.Equal(t, 30, clone.Iterations)
	assert.Equal(t, []int{1, 3}, clone.CatFeatures)
	assert.False(t, clone.State.IsFitted())

	cb.BorderCount = 0
	cb.L2LeafReg = 1
	for i := 0; i < 20; i++ {
		assert.Equal(t, cb.GetParams(), cb.Clone().GetParams())
	}
	clone.CatFeatures[0] = 7
	assert.Equal(t, []int{1, 3}, cb.CatFeatures)
}

func TestCatBoostRegressor_NotFittedAndGob(t *testing.T) {
	X, y := categoryData(40)

	var m model.Regressor = NewCatBoostRegressor(WithIterations(5), WithCatFeatures(0))
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
}
