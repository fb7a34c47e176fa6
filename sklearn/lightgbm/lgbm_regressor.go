package lightgbm

import (
	"encoding/gob"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/core/parallel"
	"github.com/YuminosukeSato/studentperf/metrics"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/sklearn/tree"
)

func init() {
	gob.Register(&LGBMRegressor{})
}

// LGBMRegressor implements a LightGBM regressor with scikit-learn compatible API
type LGBMRegressor struct {
	State *model.StateManager

	// Hyperparameters (matching Python LightGBM)
	NumLeaves       int     // Number of leaves in one tree
	MaxDepth        int     // Maximum tree depth, -1 for no limit
	LearningRate    float64 // Boosting learning rate
	NumIterations   int     // Number of boosting iterations (n_estimators)
	MinChildSamples int     // Minimum number of data in one leaf
	MinChildWeight  float64 // Minimum sum of hessians in one leaf
	ColsampleBytree float64 // Subsample ratio of columns when constructing tree
	RegLambda       float64 // L2 regularization
	MaxBin          int     // Maximum number of histogram bins per feature
	RandomState     int64   // Random seed

	// Fitted model
	InitScore  float64
	Trees      []*tree.Tree
	SplitCount []float64
	SplitGain  []float64
}

// NewLGBMRegressor creates a new LightGBM regressor with default parameters
func NewLGBMRegressor() *LGBMRegressor {
	return &LGBMRegressor{
		State:           model.NewStateManager(),
		NumLeaves:       31,
		MaxDepth:        -1,
		LearningRate:    0.1,
		NumIterations:   100,
		MinChildSamples: 20,
		MinChildWeight:  1e-3,
		ColsampleBytree: 1.0,
		RegLambda:       0.0,
		MaxBin:          255,
		RandomState:     42,
	}
}

// WithNumLeaves sets the number of leaves
func (lgb *LGBMRegressor) WithNumLeaves(n int) *LGBMRegressor {
	lgb.NumLeaves = n
	return lgb
}

// WithMaxDepth sets the maximum depth
func (lgb *LGBMRegressor) WithMaxDepth(d int) *LGBMRegressor {
	lgb.MaxDepth = d
	return lgb
}

// WithLearningRate sets the learning rate
func (lgb *LGBMRegressor) WithLearningRate(lr float64) *LGBMRegressor {
	lgb.LearningRate = lr
	return lgb
}

// WithNumIterations sets the number of iterations
func (lgb *LGBMRegressor) WithNumIterations(n int) *LGBMRegressor {
	lgb.NumIterations = n
	return lgb
}

// WithMinChildSamples sets the minimum number of samples per leaf
func (lgb *LGBMRegressor) WithMinChildSamples(n int) *LGBMRegressor {
	lgb.MinChildSamples = n
	return lgb
}

// WithRandomState sets the random seed
func (lgb *LGBMRegressor) WithRandomState(seed int64) *LGBMRegressor {
	lgb.RandomState = seed
	return lgb
}

// Fit trains the model with the L2 objective: gradient = pred - y, hessian = 1.
func (lgb *LGBMRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LGBMRegressor.Fit")

	rows, cols, err := model.CheckXY("LGBMRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if lgb.NumLeaves < 2 {
		return errors.NewValidationError("num_leaves", "must be >= 2", lgb.NumLeaves)
	}
	data := model.Rows(X)
	target := model.Column(y)

	var init float64
	for _, v := range target {
		init += v
	}
	init /= float64(rows)

	rng := rand.New(rand.NewPCG(uint64(lgb.RandomState), uint64(lgb.RandomState)))
	trainer := NewTrainer(data, lgb.MaxBin, TrainingParams{
		NumLeaves:       lgb.NumLeaves,
		MaxDepth:        lgb.MaxDepth,
		MinChildSamples: lgb.MinChildSamples,
		MinChildWeight:  lgb.MinChildWeight,
		RegLambda:       lgb.RegLambda,
		LearningRate:    lgb.LearningRate,
		ColsampleBytree: lgb.ColsampleBytree,
	}, rng)

	pred := make([]float64, rows)
	for i := range pred {
		pred[i] = init
	}
	grad := make([]float64, rows)
	hess := make([]float64, rows)
	for i := range hess {
		hess[i] = 1
	}

	trees := make([]*tree.Tree, 0, lgb.NumIterations)
	for iter := 0; iter < lgb.NumIterations; iter++ {
		for i := range grad {
			grad[i] = pred[i] - target[i]
		}
		t := trainer.Grow(grad, hess)
		for i, row := range data {
			pred[i] += t.PredictRow(row)
		}
		trees = append(trees, t)
	}

	lgb.InitScore = init
	lgb.Trees = trees
	lgb.SplitCount = trainer.splitCount
	lgb.SplitGain = trainer.splitGain
	lgb.State.SetFitted(cols, rows)
	return nil
}

// Predict makes predictions for input data
func (lgb *LGBMRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lgb.State.CheckPredictInput("LGBMRegressor", X); err != nil {
		return nil, err
	}
	data := model.Rows(X)
	out := make([]float64, len(data))
	parallel.ParallelizeWithThreshold(len(data), 1000, func(start, end int) {
		for i := start; i < end; i++ {
			v := lgb.InitScore
			for _, t := range lgb.Trees {
				v += t.PredictRow(data[i])
			}
			out[i] = v
		}
	})
	return model.ColumnVector(out), nil
}

// Score returns the R² score of the prediction
func (lgb *LGBMRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lgb.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// GetFeatureImportance returns per-feature importance, "split" or "gain".
func (lgb *LGBMRegressor) GetFeatureImportance(importanceType string) ([]float64, error) {
	if err := lgb.State.RequireFitted("LGBMRegressor", "GetFeatureImportance"); err != nil {
		return nil, err
	}
	switch importanceType {
	case "split":
		return append([]float64(nil), lgb.SplitCount...), nil
	case "gain":
		return append([]float64(nil), lgb.SplitGain...), nil
	}
	return nil, errors.NewValidationError("importance_type", "must be split or gain", importanceType)
}

// GetParams returns the model parameters
func (lgb *LGBMRegressor) GetParams() model.Params {
	return model.Params{
		"num_leaves":        lgb.NumLeaves,
		"max_depth":         lgb.MaxDepth,
		"learning_rate":     lgb.LearningRate,
		"n_estimators":      lgb.NumIterations,
		"min_child_samples": lgb.MinChildSamples,
		"min_child_weight":  lgb.MinChildWeight,
		"colsample_bytree":  lgb.ColsampleBytree,
		"reg_lambda":        lgb.RegLambda,
		"max_bin":           lgb.MaxBin,
		"random_state":      lgb.RandomState,
	}
}

// SetParams sets the model parameters
func (lgb *LGBMRegressor) SetParams(params model.Params) error {
	for name, value := range params {
		var err error
		switch name {
		case "num_leaves":
			lgb.NumLeaves, err = model.PositiveInt(name, value)
		case "max_depth":
			lgb.MaxDepth, err = model.ToInt(name, value)
		case "learning_rate":
			lgb.LearningRate, err = model.PositiveFloat(name, value)
		case "n_estimators", "num_iterations":
			lgb.NumIterations, err = model.PositiveInt(name, value)
		case "min_child_samples":
			lgb.MinChildSamples, err = model.PositiveInt(name, value)
		case "min_child_weight":
			lgb.MinChildWeight, err = model.ToFloat(name, value)
		case "colsample_bytree":
			lgb.ColsampleBytree, err = model.UnitInterval(name, value)
		case "reg_lambda":
			lgb.RegLambda, err = model.ToFloat(name, value)
			if err == nil && lgb.RegLambda < 0 {
				err = errors.NewValidationError(name, "must be >= 0", value)
			}
		case "max_bin":
			lgb.MaxBin, err = model.PositiveInt(name, value)
		case "random_state":
			var v int
			v, err = model.ToInt(name, value)
			lgb.RandomState = int64(v)
		default:
			err = model.UnknownParamError("LGBMRegressor", name, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (lgb *LGBMRegressor) Clone() model.Regressor {
	return &LGBMRegressor{
		State:           model.NewStateManager(),
		NumLeaves:       lgb.NumLeaves,
		MaxDepth:        lgb.MaxDepth,
		LearningRate:    lgb.LearningRate,
		NumIterations:   lgb.NumIterations,
		MinChildSamples: lgb.MinChildSamples,
		MinChildWeight:  lgb.MinChildWeight,
		ColsampleBytree: lgb.ColsampleBytree,
		RegLambda:       lgb.RegLambda,
		MaxBin:          lgb.MaxBin,
		RandomState:     lgb.RandomState,
	}
}

func (lgb *LGBMRegressor) String() string {
	return fmt.Sprintf("LGBMRegressor(n_estimators=%d, learning_rate=%g, num_leaves=%d)",
		lgb.NumIterations, lgb.LearningRate, lgb.NumLeaves)
}
