// Package tree provides CART regression trees. The exported builder is shared
// with the ensemble, boosting and CatBoost packages.
package tree

import (
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

func init() {
	gob.Register(&DecisionTreeRegressor{})
}

// DecisionTreeRegressor is a CART regression tree compatible with
// scikit-learn's DecisionTreeRegressor parameters.
type DecisionTreeRegressor struct {
	State *model.StateManager

	Criterion       Criterion
	MaxDepth        int // 0 means unlimited (None)
	MinSamplesSplit int
	MinSamplesLeaf  int
	RandomState     int64

	Tree *Tree
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithCriterion sets the split criterion.
func WithCriterion(c Criterion) Option {
	return func(dt *DecisionTreeRegressor) { dt.Criterion = c }
}

// WithMaxDepth sets the maximum depth; 0 grows until leaves are pure.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeRegressor) { dt.MaxDepth = depth }
}

// WithMinSamplesSplit sets the minimum samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeRegressor) { dt.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum samples required in a leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeRegressor) { dt.MinSamplesLeaf = n }
}

// WithRandomState sets the seed.
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeRegressor) { dt.RandomState = seed }
}

// NewDecisionTreeRegressor creates a tree with scikit-learn defaults.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		State:           model.NewStateManager(),
		Criterion:       SquaredError,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomState:     42,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// Fit grows the tree on X and y.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	rows, cols, err := model.CheckXY("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	t, err := Build(model.Rows(X), model.Column(y), idx, dt.config(), nil)
	if err != nil {
		return err
	}
	dt.Tree = t
	dt.State.SetFitted(cols, rows)
	return nil
}

func (dt *DecisionTreeRegressor) config() Config {
	return Config{
		Criterion:       dt.Criterion,
		MaxDepth:        dt.MaxDepth,
		MinSamplesSplit: dt.MinSamplesSplit,
		MinSamplesLeaf:  dt.MinSamplesLeaf,
	}
}

// Predict returns the leaf value reached by each row.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.State.CheckPredictInput("DecisionTreeRegressor", X); err != nil {
		return nil, err
	}
	rows := model.Rows(X)
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = dt.Tree.PredictRow(row)
	}
	return model.ColumnVector(out), nil
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeRegressor) GetParams() model.Params {
	return model.Params{
		"criterion":         string(dt.Criterion),
		"max_depth":         dt.MaxDepth,
		"min_samples_split": dt.MinSamplesSplit,
		"min_samples_leaf":  dt.MinSamplesLeaf,
		"random_state":      dt.RandomState,
	}
}

// SetParams sets hyperparameters by name.
func (dt *DecisionTreeRegressor) SetParams(params model.Params) error {
	for name, value := range params {
		switch name {
		case "criterion":
			s, err := model.ToString(name, value)
			if err != nil {
				return err
			}
			c, err := ParseCriterion(s)
			if err != nil {
				return err
			}
			dt.Criterion = c
		case "max_depth":
			if value == nil {
				dt.MaxDepth = 0
				continue
			}
			v, err := model.ToInt(name, value)
			if err != nil {
				return err
			}
			dt.MaxDepth = v
		case "min_samples_split":
			v, err := model.ToInt(name, value)
			if err != nil {
				return err
			}
			if v < 2 {
				return errors.NewValidationError(name, "must be >= 2", value)
			}
			dt.MinSamplesSplit = v
		case "min_samples_leaf":
			v, err := model.PositiveInt(name, value)
			if err != nil {
				return err
			}
			dt.MinSamplesLeaf = v
		case "random_state":
			v, err := model.ToInt(name, value)
			if err != nil {
				return err
			}
			dt.RandomState = int64(v)
		default:
			return model.UnknownParamError("DecisionTreeRegressor", name, value)
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (dt *DecisionTreeRegressor) Clone() model.Regressor {
	return NewDecisionTreeRegressor(
		WithCriterion(dt.Criterion),
		WithMaxDepth(dt.MaxDepth),
		WithMinSamplesSplit(dt.MinSamplesSplit),
		WithMinSamplesLeaf(dt.MinSamplesLeaf),
		WithRandomState(dt.RandomState),
	)
}

func (dt *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(criterion=%s, max_depth=%d)", dt.Criterion, dt.MaxDepth)
}
