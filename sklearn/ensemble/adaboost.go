package ensemble

import (
	"encoding/gob"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/sklearn/tree"
)

func init() {
	gob.Register(&AdaBoostRegressor{})
}

// AdaBoost.R2 loss functions.
const (
	LossLinear      = "linear"
	LossSquare      = "square"
	LossExponential = "exponential"
)

// AdaBoostRegressor implements AdaBoost.R2 (Drucker, 1997) over depth-limited
// regression trees fitted on weighted bootstrap resamples.
type AdaBoostRegressor struct {
	State *model.StateManager

	NEstimators  int
	LearningRate float64
	Loss         string
	MaxDepth     int
	RandomState  int64

	Trees   []*tree.Tree
	Weights []float64
	Errors  []float64
}

// AdaBoostOption configures an AdaBoostRegressor.
type AdaBoostOption func(*AdaBoostRegressor)

// WithAdaBoostEstimators sets the maximum number of boosting rounds.
func WithAdaBoostEstimators(n int) AdaBoostOption {
	return func(ab *AdaBoostRegressor) { ab.NEstimators = n }
}

// WithAdaBoostLearningRate sets the weight shrinkage.
func WithAdaBoostLearningRate(lr float64) AdaBoostOption {
	return func(ab *AdaBoostRegressor) { ab.LearningRate = lr }
}

// NewAdaBoostRegressor creates a booster with scikit-learn defaults
// (50 rounds of depth-3 trees, linear loss).
func NewAdaBoostRegressor(opts ...AdaBoostOption) *AdaBoostRegressor {
	ab := &AdaBoostRegressor{
		State:        model.NewStateManager(),
		NEstimators:  50,
		LearningRate: 1.0,
		Loss:         LossLinear,
		MaxDepth:     3,
		RandomState:  42,
	}
	for _, opt := range opts {
		opt(ab)
	}
	return ab
}

// Fit runs up to NEstimators rounds. Boosting stops early on a perfect fit or
// when a round's weighted error reaches 0.5.
func (ab *AdaBoostRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "AdaBoostRegressor.Fit")

	rows, cols, err := model.CheckXY("AdaBoostRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	data := model.Rows(X)
	target := model.Column(y)

	rng := rand.New(rand.NewPCG(uint64(ab.RandomState), uint64(ab.RandomState)))
	weights := make([]float64, rows)
	for i := range weights {
		weights[i] = 1 / float64(rows)
	}
	cfg := tree.Config{Criterion: tree.SquaredError, MaxDepth: ab.MaxDepth}

	var (
		trees      []*tree.Tree
		estWeights []float64
		estErrors  []float64
	)
	errVect := make([]float64, rows)
	for round := 0; round < ab.NEstimators; round++ {
		idx := weightedBootstrap(weights, rng)
		t, err := tree.Build(data, target, idx, cfg, nil)
		if err != nil {
			return err
		}

		var errMax float64
		for i, row := range data {
			errVect[i] = math.Abs(t.PredictRow(row) - target[i])
			errMax = math.Max(errMax, errVect[i])
		}
		for i := range errVect {
			if errMax != 0 {
				errVect[i] /= errMax
			}
			switch ab.Loss {
			case LossSquare:
				errVect[i] *= errVect[i]
			case LossExponential:
				errVect[i] = 1 - math.Exp(-errVect[i])
			}
		}
		var estErr float64
		for i, w := range weights {
			estErr += w * errVect[i]
		}

		if estErr <= 0 {
			trees = append(trees, t)
			estWeights = append(estWeights, 1)
			estErrors = append(estErrors, 0)
			break
		}
		if estErr >= 0.5 {
			if len(trees) == 0 {
				trees = append(trees, t)
				estWeights = append(estWeights, 1)
				estErrors = append(estErrors, estErr)
			}
			break
		}

		beta := estErr / (1 - estErr)
		trees = append(trees, t)
		estWeights = append(estWeights, ab.LearningRate*math.Log(1/beta))
		estErrors = append(estErrors, estErr)

		if round == ab.NEstimators-1 {
			break
		}
		var total float64
		for i := range weights {
			weights[i] *= math.Pow(beta, (1-errVect[i])*ab.LearningRate)
			total += weights[i]
		}
		if !(total > 0) {
			break
		}
		for i := range weights {
			weights[i] /= total
		}
	}

	ab.Trees = trees
	ab.Weights = estWeights
	ab.Errors = estErrors
	ab.State.SetFitted(cols, rows)
	return nil
}

// weightedBootstrap draws len(weights) indices with replacement, proportional
// to weights.
func weightedBootstrap(weights []float64, rng *rand.Rand) []int {
	cdf := make([]float64, len(weights))
	var acc float64
	for i, w := range weights {
		acc += w
		cdf[i] = acc
	}
	idx := make([]int, len(weights))
	for k := range idx {
		u := rng.Float64() * acc
		i := sort.SearchFloat64s(cdf, u)
		if i >= len(cdf) {
			i = len(cdf) - 1
		}
		idx[k] = i
	}
	return idx
}

// Predict returns the weighted median of the tree predictions.
func (ab *AdaBoostRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := ab.State.CheckPredictInput("AdaBoostRegressor", X); err != nil {
		return nil, err
	}
	data := model.Rows(X)
	out := make([]float64, len(data))

	type vote struct {
		pred, weight float64
	}
	votes := make([]vote, len(ab.Trees))
	var total float64
	for _, w := range ab.Weights {
		total += w
	}
	for i, row := range data {
		for k, t := range ab.Trees {
			votes[k] = vote{pred: t.PredictRow(row), weight: ab.Weights[k]}
		}
		sort.SliceStable(votes, func(a, b int) bool { return votes[a].pred < votes[b].pred })
		var cum float64
		out[i] = votes[len(votes)-1].pred
		for _, v := range votes {
			cum += v.weight
			if cum >= 0.5*total {
				out[i] = v.pred
				break
			}
		}
	}
	return model.ColumnVector(out), nil
}

// GetParams returns the hyperparameters.
func (ab *AdaBoostRegressor) GetParams() model.Params {
	return model.Params{
		"n_estimators":  ab.NEstimators,
		"learning_rate": ab.LearningRate,
		"loss":          ab.Loss,
		"max_depth":     ab.MaxDepth,
		"random_state":  ab.RandomState,
	}
}

// SetParams sets hyperparameters by name.
func (ab *AdaBoostRegressor) SetParams(params model.Params) error {
	for name, value := range params {
		var err error
		switch name {
		case "n_estimators":
			ab.NEstimators, err = model.PositiveInt(name, value)
		case "learning_rate":
			ab.LearningRate, err = model.PositiveFloat(name, value)
		case "loss":
			var s string
			if s, err = model.ToString(name, value); err == nil {
				switch s {
				case LossLinear, LossSquare, LossExponential:
					ab.Loss = s
				default:
					err = errors.NewValidationError(name, "must be one of linear, square, exponential", value)
				}
			}
		case "max_depth":
			ab.MaxDepth, err = optionalInt(name, value)
		case "random_state":
			ab.RandomState, err = seed(name, value)
		default:
			err = model.UnknownParamError("AdaBoostRegressor", name, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (ab *AdaBoostRegressor) Clone() model.Regressor {
	return &AdaBoostRegressor{
		State:        model.NewStateManager(),
		NEstimators:  ab.NEstimators,
		LearningRate: ab.LearningRate,
		Loss:         ab.Loss,
		MaxDepth:     ab.MaxDepth,
		RandomState:  ab.RandomState,
	}
}

func (ab *AdaBoostRegressor) String() string {
	return fmt.Sprintf("AdaBoostRegressor(n_estimators=%d, learning_rate=%g, loss=%s)",
		ab.NEstimators, ab.LearningRate, ab.Loss)
}
