package ensemble

import (
	"encoding/gob"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/core/parallel"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/sklearn/tree"
)

func init() {
	gob.Register(&RandomForestRegressor{})
}

// RandomForestRegressor averages bootstrapped regression trees.
type RandomForestRegressor struct {
	State *model.StateManager

	NEstimators    int
	Criterion      tree.Criterion
	MaxDepth       int
	MinSamplesLeaf int
	MaxFeatures    int // 0 means all features
	Bootstrap      bool
	RandomState    int64
	NJobs          int

	Trees []*tree.Tree
}

// ForestOption configures a RandomForestRegressor.
type ForestOption func(*RandomForestRegressor)

// WithForestEstimators sets the number of trees.
func WithForestEstimators(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.NEstimators = n }
}

// WithForestMaxDepth limits the depth of each tree.
func WithForestMaxDepth(depth int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MaxDepth = depth }
}

// WithForestRandomState sets the seed.
func WithForestRandomState(seed int64) ForestOption {
	return func(rf *RandomForestRegressor) { rf.RandomState = seed }
}

// WithForestNJobs bounds the number of trees grown concurrently.
func WithForestNJobs(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.NJobs = n }
}

// NewRandomForestRegressor creates a forest with scikit-learn defaults.
func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		State:          model.NewStateManager(),
		NEstimators:    100,
		Criterion:      tree.SquaredError,
		MinSamplesLeaf: 1,
		Bootstrap:      true,
		RandomState:    42,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// Fit grows NEstimators trees concurrently. Each tree has its own seed drawn
// up front, so the result does not depend on scheduling.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	rows, cols, err := model.CheckXY("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	data := model.Rows(X)
	target := model.Column(y)

	master := rand.New(rand.NewPCG(uint64(rf.RandomState), uint64(rf.RandomState)))
	seeds := make([]uint64, rf.NEstimators)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	cfg := tree.Config{
		Criterion:      rf.Criterion,
		MaxDepth:       rf.MaxDepth,
		MinSamplesLeaf: rf.MinSamplesLeaf,
		MaxFeatures:    rf.MaxFeatures,
	}

	trees := make([]*tree.Tree, rf.NEstimators)
	var g errgroup.Group
	g.SetLimit(workers(rf.NJobs))
	for i := range trees {
		g.Go(func() (err error) {
			defer errors.Recover(&err, "RandomForestRegressor.Fit.tree")
			rng := rand.New(rand.NewPCG(seeds[i], seeds[i]^0x9e3779b97f4a7c15))
			idx := make([]int, rows)
			for k := range idx {
				if rf.Bootstrap {
					idx[k] = rng.IntN(rows)
				} else {
					idx[k] = k
				}
			}
			t, err := tree.Build(data, target, idx, cfg, rng)
			if err != nil {
				return err
			}
			trees[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rf.Trees = trees
	rf.State.SetFitted(cols, rows)
	return nil
}

// Predict averages the tree predictions.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.State.CheckPredictInput("RandomForestRegressor", X); err != nil {
		return nil, err
	}
	data := model.Rows(X)
	out := make([]float64, len(data))
	parallel.ParallelizeWithThreshold(len(data), 256, func(start, end int) {
		for i := start; i < end; i++ {
			var sum float64
			for _, t := range rf.Trees {
				sum += t.PredictRow(data[i])
			}
			out[i] = sum / float64(len(rf.Trees))
		}
	})
	return model.ColumnVector(out), nil
}

// GetParams returns the hyperparameters.
func (rf *RandomForestRegressor) GetParams() model.Params {
	return model.Params{
		"n_estimators":     rf.NEstimators,
		"criterion":        string(rf.Criterion),
		"max_depth":        rf.MaxDepth,
		"min_samples_leaf": rf.MinSamplesLeaf,
		"max_features":     rf.MaxFeatures,
		"bootstrap":        rf.Bootstrap,
		"random_state":     rf.RandomState,
		"n_jobs":           rf.NJobs,
	}
}

// SetParams sets hyperparameters by name.
func (rf *RandomForestRegressor) SetParams(params model.Params) error {
	for name, value := range params {
		var err error
		switch name {
		case "n_estimators":
			rf.NEstimators, err = model.PositiveInt(name, value)
		case "criterion":
			var s string
			if s, err = model.ToString(name, value); err == nil {
				rf.Criterion, err = tree.ParseCriterion(s)
			}
		case "max_depth":
			rf.MaxDepth, err = optionalInt(name, value)
		case "min_samples_leaf":
			rf.MinSamplesLeaf, err = model.PositiveInt(name, value)
		case "max_features":
			rf.MaxFeatures, err = optionalInt(name, value)
		case "bootstrap":
			rf.Bootstrap, err = model.ToBool(name, value)
		case "random_state":
			rf.RandomState, err = seed(name, value)
		case "n_jobs":
			rf.NJobs, err = model.ToInt(name, value)
		default:
			err = model.UnknownParamError("RandomForestRegressor", name, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (rf *RandomForestRegressor) Clone() model.Regressor {
	return &RandomForestRegressor{
		State:          model.NewStateManager(),
		NEstimators:    rf.NEstimators,
		Criterion:      rf.Criterion,
		MaxDepth:       rf.MaxDepth,
		MinSamplesLeaf: rf.MinSamplesLeaf,
		MaxFeatures:    rf.MaxFeatures,
		Bootstrap:      rf.Bootstrap,
		RandomState:    rf.RandomState,
		NJobs:          rf.NJobs,
	}
}

func (rf *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d)", rf.NEstimators)
}

func workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

func optionalInt(name string, value interface{}) (int, error) {
	if value == nil {
		return 0, nil
	}
	return model.ToInt(name, value)
}

func seed(name string, value interface{}) (int64, error) {
	v, err := model.ToInt(name, value)
	return int64(v), err
}
