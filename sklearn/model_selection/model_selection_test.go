package model_selection

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/pkg/log"
)

var errBoom = errors.New("boom")

// slopeRegressor predicts slope*x0 and counts its Fit calls.
type slopeRegressor struct {
	slope float64
	tag   string
	fail  bool
	fits  *atomic.Int64
}

func newSlopeRegressor() *slopeRegressor {
	return &slopeRegressor{slope: 1, fits: new(atomic.Int64)}
}

func (s *slopeRegressor) Fit(X, y mat.Matrix) error {
	s.fits.Add(1)
	if s.fail {
		return errBoom
	}
	return nil
}

func (s *slopeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, s.slope*X.At(i, 0))
	}
	return out, nil
}

func (s *slopeRegressor) GetParams() model.Params {
	return model.Params{"slope": s.slope, "tag": s.tag, "fail": s.fail}
}

func (s *slopeRegressor) SetParams(p model.Params) error {
	for name, v := range p {
		var err error
		switch name {
		case "slope":
			s.slope, err = model.ToFloat(name, v)
		case "tag":
			s.tag, err = model.ToString(name, v)
		case "fail":
			s.fail, err = model.ToBool(name, v)
		default:
			err = model.UnknownParamError("slopeRegressor", name, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *slopeRegressor) Clone() model.Regressor {
	return &slopeRegressor{slope: s.slope, tag: s.tag, fail: s.fail, fits: s.fits}
}

// linearData returns y = 2x for x = 1..n.
func linearData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i+1))
		y.Set(i, 0, 2*float64(i+1))
	}
	return X, y
}

func TestKFold_Split(t *testing.T) {
	folds, err := NewKFold(3).Split(10)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
	assert.Equal(t, []int{4, 5, 6}, folds[1].TestIndices)
	assert.Equal(t, []int{7, 8, 9}, folds[2].TestIndices)
	assert.Equal(t, []int{0, 1, 2, 3, 7, 8, 9}, folds[1].TrainIndices)

	seen := make(map[int]int)
	for _, f := range folds {
		assert.Len(t, f.TrainIndices, 10-len(f.TestIndices))
		for _, i := range f.TestIndices {
			seen[i]++
		}
	}
	assert.Len(t, seen, 10)
}

func TestKFold_ShuffleAndErrors(t *testing.T) {
	kf := &KFold{NSplits: 3, Shuffle: true, RandomSeed: 7}
	a, err := kf.Split(12)
	require.NoError(t, err)
	b, err := kf.Split(12)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = NewKFold(3).Split(2)
	var verr *errors.ValueError
	assert.True(t, errors.As(err, &verr))

	_, err = NewKFold(1).Split(10)
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestParameterGrid_Order(t *testing.T) {
	grid, err := ParameterGrid(map[string][]interface{}{
		"b": {1, 2},
		"a": {"x", "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.Params{
		{"a": "x", "b": 1},
		{"a": "x", "b": 2},
		{"a": "y", "b": 1},
		{"a": "y", "b": 2},
	}, grid)

	empty, err := ParameterGrid(nil)
	require.NoError(t, err)
	assert.Equal(t, []model.Params{{}}, empty)

	_, err = ParameterGrid(map[string][]interface{}{"a": {}})
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestGridSearchCV_ThreeValuesThreeFolds(t *testing.T) {
	X, y := linearData(30)
	proto := newSlopeRegressor()

	gs := NewGridSearchCV(proto, map[string][]interface{}{"slope": {1.0, 2.0, 3.0}})
	gs.Logger = log.NewNopLogger()
	require.NoError(t, gs.Fit(context.Background(), X, y))

	assert.Equal(t, int64(9), proto.fits.Load())
	assert.Len(t, gs.Results, 3)
	assert.Equal(t, 1, gs.BestIndex)
	assert.Equal(t, model.Params{"slope": 2.0}, gs.BestParams)
	assert.InDelta(t, 1.0, gs.BestScore, 1e-12)
	for _, r := range gs.Results {
		assert.Len(t, r.FoldScores, 3)
	}
	// プロトタイプ自身は変更されない
	assert.Equal(t, 1.0, proto.slope)
}

func TestGridSearchCV_TiesKeepFirstConfiguration(t *testing.T) {
	X, y := linearData(12)

	gs := NewGridSearchCV(newSlopeRegressor(), map[string][]interface{}{
		"slope": {2.0},
		"tag":   {"first", "second"},
	})
	gs.Logger = log.NewNopLogger()
	require.NoError(t, gs.Fit(context.Background(), X, y))
	assert.Equal(t, gs.Results[0].MeanScore, gs.Results[1].MeanScore)
	assert.Equal(t, "first", gs.BestParams["tag"])
}

func TestGridSearchCV_DeterministicAcrossNJobs(t *testing.T) {
	X, y := linearData(30)
	run := func(n int) []CVResult {
		gs := NewGridSearchCV(newSlopeRegressor(), map[string][]interface{}{"slope": {0.5, 1.0, 1.5, 2.5}})
		gs.NJobs = n
		gs.Logger = log.NewNopLogger()
		require.NoError(t, gs.Fit(context.Background(), X, y))
		return gs.Results
	}
	assert.Equal(t, run(1), run(4))
}

func TestGridSearchCV_Errors(t *testing.T) {
	X, y := linearData(12)

	gs := NewGridSearchCV(newSlopeRegressor(), map[string][]interface{}{"fail": {false, true}})
	gs.Logger = log.NewNopLogger()
	err := gs.Fit(context.Background(), X, y)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBoom))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gs = NewGridSearchCV(newSlopeRegressor(), map[string][]interface{}{"slope": {1.0}})
	gs.Logger = log.NewNopLogger()
	assert.True(t, errors.Is(gs.Fit(ctx, X, y), context.Canceled))

	gs = NewGridSearchCV(newSlopeRegressor(), map[string][]interface{}{"depth": {1}})
	gs.Logger = log.NewNopLogger()
	var verr *errors.ValidationError
	assert.True(t, errors.As(gs.Fit(context.Background(), X, y), &verr))
}

func TestGridSearchCV_Logs(t *testing.T) {
	X, y := linearData(12)
	logger, _ := log.NewTestLogger(log.LevelDebug)

	gs := NewGridSearchCV(newSlopeRegressor(), map[string][]interface{}{"slope": {1.0, 2.0}})
	gs.Logger = logger
	require.NoError(t, gs.Fit(context.Background(), X, y))

	assert.True(t, logger.ContainsMessage("Grid search finished"))
	assert.True(t, logger.ContainsField(log.ConfigsKey, 2.0))
	assert.True(t, logger.ContainsField(log.HyperParamsKey, fmt.Sprint(model.Params{"slope": 2.0})))
}

func TestGridSearchCV_ErrorScoreNaN(t *testing.T) {
	X, y := linearData(12)
	logger, _ := log.NewTestLogger(log.LevelDebug)

	gs := NewGridSearchCV(newSlopeRegressor(), map[string][]interface{}{"fail": {true, false}})
	gs.Logger = logger
	gs.ErrorScoreNaN = true
	require.NoError(t, gs.Fit(context.Background(), X, y))

	require.Len(t, gs.Results, 2)
	assert.True(t, math.IsNaN(gs.Results[0].MeanScore))
	assert.Equal(t, 1, gs.BestIndex)
	assert.Equal(t, false, gs.BestParams["fail"])
	assert.True(t, logger.ContainsMessage("Configuration failed, scored as NaN"))
}
