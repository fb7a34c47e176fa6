package tree

import (
	"bytes"
	"encoding/gob"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

// stepData has y = 10 for x <= 3 and y = 20 otherwise, plus a noise feature.
func stepData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0, 5,
		1, 3,
		2, 7,
		3, 1,
		4, 6,
		5, 2,
		6, 8,
		7, 4,
	})
	y := mat.NewDense(8, 1, []float64{10, 10, 10, 10, 20, 20, 20, 20})
	return X, y
}

func TestDecisionTreeRegressor_Criteria(t *testing.T) {
	for _, c := range []Criterion{SquaredError, FriedmanMSE, AbsoluteError, Poisson} {
		t.Run(string(c), func(t *testing.T) {
			X, y := stepData()
			dt := NewDecisionTreeRegressor(WithCriterion(c))
			require.NoError(t, dt.Fit(X, y))

			// One split on feature 0 separates the two levels perfectly.
			root := dt.Tree.Nodes[0]
			assert.Equal(t, 0, root.Feature)
			assert.Equal(t, 3.5, root.Threshold)
			assert.Equal(t, 2, dt.Tree.Leaves())
			assert.Equal(t, 1, dt.Tree.Depth())

			pred, err := dt.Predict(mat.NewDense(2, 2, []float64{1.5, 0, 6.5, 0}))
			require.NoError(t, err)
			assert.Equal(t, 10.0, pred.At(0, 0))
			assert.Equal(t, 20.0, pred.At(1, 0))
		})
	}
}

func TestDecisionTreeRegressor_MaxDepthAndLeaf(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	X := mat.NewDense(60, 1, nil)
	y := mat.NewDense(60, 1, nil)
	for i := 0; i < 60; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, float64(i*i)+rng.Float64())
	}

	dt := NewDecisionTreeRegressor(WithMaxDepth(2))
	require.NoError(t, dt.Fit(X, y))
	assert.LessOrEqual(t, dt.Tree.Depth(), 2)
	assert.LessOrEqual(t, dt.Tree.Leaves(), 4)

	dt = NewDecisionTreeRegressor(WithMinSamplesLeaf(20))
	require.NoError(t, dt.Fit(X, y))
	for _, n := range dt.Tree.Nodes {
		if n.Feature < 0 {
			assert.GreaterOrEqual(t, n.Samples, 20)
		}
	}

	// Unlimited depth memorises distinct targets.
	dt = NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))
	pred, err := dt.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, mat.Col(nil, 0, y), mat.Col(nil, 0, pred), 1e-12)
}

func TestDecisionTreeRegressor_AbsoluteErrorUsesMedian(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 1, 1})
	y := mat.NewDense(3, 1, []float64{1, 2, 30})

	dt := NewDecisionTreeRegressor(WithCriterion(AbsoluteError))
	require.NoError(t, dt.Fit(X, y))
	pred, err := dt.Predict(mat.NewDense(1, 1, []float64{1}))
	require.NoError(t, err)
	assert.Equal(t, 2.0, pred.At(0, 0))
}

func TestDecisionTreeRegressor_PoissonRejectsNegative(t *testing.T) {
	dt := NewDecisionTreeRegressor(WithCriterion(Poisson))
	err := dt.Fit(mat.NewDense(2, 1, []float64{0, 1}), mat.NewDense(2, 1, []float64{-1, 2}))
	var valErr *errors.ValueError
	require.True(t, errors.As(err, &valErr))
}

func TestDecisionTreeRegressor_Params(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.SetParams(model.Params{"criterion": "friedman_mse", "max_depth": nil}))
	assert.Equal(t, FriedmanMSE, dt.Criterion)
	assert.Equal(t, 0, dt.MaxDepth)

	var verr *errors.ValidationError
	require.True(t, errors.As(dt.SetParams(model.Params{"criterion": "gini"}), &verr))
	require.True(t, errors.As(dt.SetParams(model.Params{"splitter": "best"}), &verr))
	require.True(t, errors.As(dt.SetParams(model.Params{"min_samples_split": 1}), &verr))

	clone := dt.Clone().(*DecisionTreeRegressor)
	assert.Equal(t, dt.GetParams(), clone.GetParams())
	assert.Nil(t, clone.Tree)
}

func TestDecisionTreeRegressor_NotFittedAndGob(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	_, err := dt.Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	X, y := stepData()
	require.NoError(t, dt.Fit(X, y))

	var buf bytes.Buffer
	var r model.Regressor = dt
	require.NoError(t, gob.NewEncoder(&buf).Encode(&r))
	var loaded model.Regressor
	require.NoError(t, gob.NewDecoder(&buf).Decode(&loaded))

	want, err := dt.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}

func TestBuild_MaxFeaturesUsesRNG(t *testing.T) {
	X, y := stepData()
	rows := model.Rows(X)
	idx := []int{0, 1, 2, 3, 4, 5, 6, 7}

	a, err := Build(rows, model.Column(y), idx, Config{MaxFeatures: 1}, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)
	b, err := Build(rows, model.Column(y), idx, Config{MaxFeatures: 1}, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)
	assert.Equal(t, a.Nodes, b.Nodes)
}
