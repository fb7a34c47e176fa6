package catboost

import (
	"encoding/gob"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/core/parallel"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

func init() {
	gob.Register(&CatBoostRegressor{})
}

const maxDepth = 16

// CatBoostRegressor is a gradient boosting regressor over oblivious trees
// with the RMSE loss.
type CatBoostRegressor struct {
	State *model.StateManager

	Iterations   int
	Depth        int
	LearningRate float64
	L2LeafReg    float64
	BorderCount  int
	RandomSeed   int64
	// CatFeatures lists the columns holding category codes.
	CatFeatures []int

	Init      float64
	Trees     []*ObliviousTree
	CTRs      []*CTRTable
	TrainLoss []float64 // RMSE after each iteration
}

// Option configures a CatBoostRegressor.
type Option func(*CatBoostRegressor)

// WithIterations sets the number of boosting iterations.
func WithIterations(n int) Option {
	return func(cb *CatBoostRegressor) { cb.Iterations = n }
}

// WithDepth sets the depth of every tree.
func WithDepth(d int) Option {
	return func(cb *CatBoostRegressor) { cb.Depth = d }
}

// WithLearningRate sets the shrinkage.
func WithLearningRate(lr float64) Option {
	return func(cb *CatBoostRegressor) { cb.LearningRate = lr }
}

// WithCatFeatures marks columns as categorical.
func WithCatFeatures(cols ...int) Option {
	return func(cb *CatBoostRegressor) { cb.CatFeatures = append([]int(nil), cols...) }
}

// NewCatBoostRegressor creates a regressor with depth 6, learning rate 0.03,
// l2_leaf_reg 3 and 100 iterations.
func NewCatBoostRegressor(opts ...Option) *CatBoostRegressor {
	cb := &CatBoostRegressor{
		State:        model.NewStateManager(),
		Iterations:   100,
		Depth:        6,
		LearningRate: 0.03,
		L2LeafReg:    3,
		BorderCount:  254,
		RandomSeed:   42,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Fit boosts Iterations oblivious trees on the residuals.
func (cb *CatBoostRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "CatBoostRegressor.Fit")

	rows, cols, err := model.CheckXY("CatBoostRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if cb.Depth < 1 || cb.Depth > maxDepth {
		return errors.NewValidationError("depth", fmt.Sprintf("must be in [1, %d]", maxDepth), cb.Depth)
	}
	seen := make(map[int]bool, len(cb.CatFeatures))
	for _, f := range cb.CatFeatures {
		if f < 0 || f >= cols {
			return errors.NewValidationError("cat_features", "column index out of range", f)
		}
		if seen[f] {
			return errors.NewValidationError("cat_features", "duplicate column index", f)
		}
		seen[f] = true
	}

	data := model.Rows(X)
	target := model.Column(y)

	var init float64
	for _, v := range target {
		init += v
	}
	init /= float64(rows)

	rng := rand.New(rand.NewPCG(uint64(cb.RandomSeed), uint64(cb.RandomSeed)))
	ctrs := make([]*CTRTable, 0, len(cb.CatFeatures))
	for _, f := range cb.CatFeatures {
		ctrs = append(ctrs, orderedTargetStatistics(data, target, f, init, rng))
	}

	borders := make([][]float64, cols)
	column := make([]float64, rows)
	for f := 0; f < cols; f++ {
		for i, row := range data {
			column[i] = row[f]
		}
		borders[f] = quantileBorders(column, cb.BorderCount)
	}
	bins := make([][]int, rows)
	for i, row := range data {
		b := make([]int, cols)
		for f, v := range row {
			b[f] = quantize(borders[f], v)
		}
		bins[i] = b
	}

	grower := &treeGrower{
		bins:      bins,
		borders:   borders,
		depth:     cb.Depth,
		l2:        cb.L2LeafReg,
		lr:        cb.LearningRate,
		nFeatures: cols,
	}

	pred := make([]float64, rows)
	for i := range pred {
		pred[i] = init
	}
	residual := make([]float64, rows)
	trees := make([]*ObliviousTree, 0, cb.Iterations)
	losses := make([]float64, 0, cb.Iterations)
	for iter := 0; iter < cb.Iterations; iter++ {
		for i := range residual {
			residual[i] = target[i] - pred[i]
		}
		t := grower.grow(residual)
		var sse float64
		for i, row := range data {
			pred[i] += t.PredictRow(row)
			d := target[i] - pred[i]
			sse += d * d
		}
		trees = append(trees, t)
		losses = append(losses, math.Sqrt(sse/float64(rows)))
	}

	cb.Init = init
	cb.Trees = trees
	cb.CTRs = ctrs
	cb.TrainLoss = losses
	cb.State.SetFitted(cols, rows)
	return nil
}

// Predict encodes categorical columns with the full-data statistics and sums
// the tree outputs.
func (cb *CatBoostRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := cb.State.CheckPredictInput("CatBoostRegressor", X); err != nil {
		return nil, err
	}
	data := model.Rows(X)
	out := make([]float64, len(data))
	parallel.ParallelizeWithThreshold(len(data), 1000, func(start, end int) {
		for i := start; i < end; i++ {
			row := data[i]
			for _, ctr := range cb.CTRs {
				row[ctr.Feature] = ctr.Value(row[ctr.Feature])
			}
			v := cb.Init
			for _, t := range cb.Trees {
				v += t.PredictRow(row)
			}
			out[i] = v
		}
	})
	return model.ColumnVector(out), nil
}

// GetParams returns the hyperparameters.
func (cb *CatBoostRegressor) GetParams() model.Params {
	return model.Params{
		"iterations":    cb.Iterations,
		"depth":         cb.Depth,
		"learning_rate": cb.LearningRate,
		"l2_leaf_reg":   cb.L2LeafReg,
		"border_count":  cb.BorderCount,
		"random_seed":   cb.RandomSeed,
		"cat_features":  append([]int(nil), cb.CatFeatures...),
	}
}

// SetParams sets hyperparameters by name.
func (cb *CatBoostRegressor) SetParams(params model.Params) error {
	for name, value := range params {
		var err error
		switch name {
		case "iterations", "n_estimators":
			cb.Iterations, err = model.PositiveInt(name, value)
		case "depth":
			cb.Depth, err = model.PositiveInt(name, value)
			if err == nil && cb.Depth > maxDepth {
				err = errors.NewValidationError(name, fmt.Sprintf("must be <= %d", maxDepth), value)
			}
		case "learning_rate":
			cb.LearningRate, err = model.PositiveFloat(name, value)
		case "l2_leaf_reg":
			cb.L2LeafReg, err = model.ToFloat(name, value)
			if err == nil && cb.L2LeafReg < 0 {
				err = errors.NewValidationError(name, "must be >= 0", value)
			}
		case "border_count":
			cb.BorderCount, err = model.PositiveInt(name, value)
		case "random_seed", "random_state":
			var v int
			v, err = model.ToInt(name, value)
			cb.RandomSeed = int64(v)
		case "cat_features":
			cb.CatFeatures, err = intList(name, value)
		default:
			err = model.UnknownParamError("CatBoostRegressor", name, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (cb *CatBoostRegressor) Clone() model.Regressor {
	return &CatBoostRegressor{
		State:        model.NewStateManager(),
		Iterations:   cb.Iterations,
		Depth:        cb.Depth,
		LearningRate: cb.LearningRate,
		L2LeafReg:    cb.L2LeafReg,
		BorderCount:  cb.BorderCount,
		RandomSeed:   cb.RandomSeed,
		CatFeatures:  append([]int(nil), cb.CatFeatures...),
	}
}

func (cb *CatBoostRegressor) String() string {
	return fmt.Sprintf("CatBoostRegressor(iterations=%d, depth=%d, learning_rate=%g)",
		cb.Iterations, cb.Depth, cb.LearningRate)
}

// intList accepts []int or a YAML-decoded []interface{} of integers.
func intList(name string, value interface{}) ([]int, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []int:
		out := append([]int(nil), v...)
		sort.Ints(out)
		return out, nil
	case []interface{}:
		out := make([]int, len(v))
		for i, item := range v {
			n, err := model.ToInt(name, item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		sort.Ints(out)
		return out, nil
	}
	return nil, errors.NewValidationError(name, "must be a list of column indices", value)
}
