package ensemble

import (
	"encoding/gob"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/sklearn/tree"
)

func init() {
	gob.Register(&GradientBoostingRegressor{})
}

// GradientBoostingRegressor fits shallow friedman_mse trees to the residuals
// of the squared-error loss, optionally on a random subsample per stage.
type GradientBoostingRegressor struct {
	State *model.StateManager

	LearningRate   float64
	NEstimators    int
	Subsample      float64
	MaxDepth       int
	MinSamplesLeaf int
	RandomState    int64

	Init  float64
	Trees []*tree.Tree
	// TrainScore holds the in-sample MSE after each stage.
	TrainScore []float64
}

// BoostingOption configures a GradientBoostingRegressor.
type BoostingOption func(*GradientBoostingRegressor)

// WithBoostingLearningRate sets the shrinkage applied to each stage.
func WithBoostingLearningRate(lr float64) BoostingOption {
	return func(gb *GradientBoostingRegressor) { gb.LearningRate = lr }
}

// WithBoostingEstimators sets the number of boosting stages.
func WithBoostingEstimators(n int) BoostingOption {
	return func(gb *GradientBoostingRegressor) { gb.NEstimators = n }
}

// WithSubsample sets the fraction of rows drawn for each stage.
func WithSubsample(f float64) BoostingOption {
	return func(gb *GradientBoostingRegressor) { gb.Subsample = f }
}

// NewGradientBoostingRegressor creates a booster with scikit-learn defaults.
func NewGradientBoostingRegressor(opts ...BoostingOption) *GradientBoostingRegressor {
	gb := &GradientBoostingRegressor{
		State:          model.NewStateManager(),
		LearningRate:   0.1,
		NEstimators:    100,
		Subsample:      1.0,
		MaxDepth:       3,
		MinSamplesLeaf: 1,
		RandomState:    42,
	}
	for _, opt := range opts {
		opt(gb)
	}
	return gb
}

// Fit runs NEstimators boosting stages starting from the target mean.
func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	rows, cols, err := model.CheckXY("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	data := model.Rows(X)
	target := model.Column(y)

	var mean float64
	for _, v := range target {
		mean += v
	}
	mean /= float64(rows)

	raw := make([]float64, rows)
	for i := range raw {
		raw[i] = mean
	}
	residual := make([]float64, rows)

	nSub := int(gb.Subsample * float64(rows))
	if nSub < 1 {
		nSub = 1
	}
	rng := rand.New(rand.NewPCG(uint64(gb.RandomState), uint64(gb.RandomState)))
	perm := make([]int, rows)
	for i := range perm {
		perm[i] = i
	}

	cfg := tree.Config{
		Criterion:      tree.FriedmanMSE,
		MaxDepth:       gb.MaxDepth,
		MinSamplesLeaf: gb.MinSamplesLeaf,
	}

	trees := make([]*tree.Tree, 0, gb.NEstimators)
	scores := make([]float64, 0, gb.NEstimators)
	for stage := 0; stage < gb.NEstimators; stage++ {
		for i := range residual {
			residual[i] = target[i] - raw[i]
		}

		idx := perm
		if nSub < rows {
			rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
			idx = append([]int(nil), perm[:nSub]...)
		}

		t, err := tree.Build(data, residual, idx, cfg, nil)
		if err != nil {
			return err
		}
		var mse float64
		for i, row := range data {
			raw[i] += gb.LearningRate * t.PredictRow(row)
			d := target[i] - raw[i]
			mse += d * d
		}
		trees = append(trees, t)
		scores = append(scores, mse/float64(rows))
	}

	gb.Init = mean
	gb.Trees = trees
	gb.TrainScore = scores
	gb.State.SetFitted(cols, rows)
	return nil
}

// Predict sums the shrunken stage predictions.
func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := gb.State.CheckPredictInput("GradientBoostingRegressor", X); err != nil {
		return nil, err
	}
	data := model.Rows(X)
	out := make([]float64, len(data))
	for i, row := range data {
		v := gb.Init
		for _, t := range gb.Trees {
			v += gb.LearningRate * t.PredictRow(row)
		}
		out[i] = v
	}
	return model.ColumnVector(out), nil
}

// GetParams returns the hyperparameters.
func (gb *GradientBoostingRegressor) GetParams() model.Params {
	return model.Params{
		"learning_rate":    gb.LearningRate,
		"n_estimators":     gb.NEstimators,
		"subsample":        gb.Subsample,
		"max_depth":        gb.MaxDepth,
		"min_samples_leaf": gb.MinSamplesLeaf,
		"random_state":     gb.RandomState,
	}
}

// SetParams sets hyperparameters by name.
func (gb *GradientBoostingRegressor) SetParams(params model.Params) error {
	for name, value := range params {
		var err error
		switch name {
		case "learning_rate":
			gb.LearningRate, err = model.PositiveFloat(name, value)
		case "n_estimators":
			gb.NEstimators, err = model.PositiveInt(name, value)
		case "subsample":
			gb.Subsample, err = model.UnitInterval(name, value)
		case "max_depth":
			gb.MaxDepth, err = optionalInt(name, value)
		case "min_samples_leaf":
			gb.MinSamplesLeaf, err = model.PositiveInt(name, value)
		case "random_state":
			gb.RandomState, err = seed(name, value)
		default:
			err = model.UnknownParamError("GradientBoostingRegressor", name, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (gb *GradientBoostingRegressor) Clone() model.Regressor {
	return &GradientBoostingRegressor{
		State:          model.NewStateManager(),
		LearningRate:   gb.LearningRate,
		NEstimators:    gb.NEstimators,
		Subsample:      gb.Subsample,
		MaxDepth:       gb.MaxDepth,
		MinSamplesLeaf: gb.MinSamplesLeaf,
		RandomState:    gb.RandomState,
	}
}

func (gb *GradientBoostingRegressor) String() string {
	return fmt.Sprintf("GradientBoostingRegressor(learning_rate=%g, n_estimators=%d, subsample=%g)",
		gb.LearningRate, gb.NEstimators, gb.Subsample)
}
