// Package neighbors provides k-nearest-neighbours regression.
package neighbors

import (
	"encoding/gob"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/core/parallel"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

func init() {
	gob.Register(&KNeighborsRegressor{})
}

// Weighting schemes.
const (
	WeightsUniform  = "uniform"
	WeightsDistance = "distance"
)

// KNeighborsRegressor predicts the (optionally distance weighted) mean target
// of the k nearest training rows under the Minkowski metric.
type KNeighborsRegressor struct {
	State *model.StateManager

	NNeighbors int
	Weights    string
	P          float64

	TrainX [][]float64
	TrainY []float64
}

// Option configures a KNeighborsRegressor.
type Option func(*KNeighborsRegressor)

// WithNNeighbors sets k.
func WithNNeighbors(k int) Option {
	return func(knn *KNeighborsRegressor) { knn.NNeighbors = k }
}

// WithWeights sets the weighting scheme ("uniform" or "distance").
func WithWeights(w string) Option {
	return func(knn *KNeighborsRegressor) { knn.Weights = w }
}

// NewKNeighborsRegressor creates a regressor with scikit-learn defaults.
func NewKNeighborsRegressor(opts ...Option) *KNeighborsRegressor {
	knn := &KNeighborsRegressor{
		State:      model.NewStateManager(),
		NNeighbors: 5,
		Weights:    WeightsUniform,
		P:          2,
	}
	for _, opt := range opts {
		opt(knn)
	}
	return knn
}

// Fit stores a copy of the training data.
func (knn *KNeighborsRegressor) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckXY("KNeighborsRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if knn.NNeighbors > rows {
		return errors.NewValueError("KNeighborsRegressor.Fit",
			fmt.Sprintf("expected n_neighbors <= n_samples, but n_samples = %d, n_neighbors = %d", rows, knn.NNeighbors))
	}
	knn.TrainX = model.Rows(X)
	knn.TrainY = model.Column(y)
	knn.State.SetFitted(cols, rows)
	return nil
}

// Predict queries each row independently; rows are processed in parallel.
func (knn *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := knn.State.CheckPredictInput("KNeighborsRegressor", X); err != nil {
		return nil, err
	}
	queries := model.Rows(X)
	out := make([]float64, len(queries))
	parallel.ParallelizeWithThreshold(len(queries), 64, func(start, end int) {
		nb := make([]neighbor, len(knn.TrainX))
		for i := start; i < end; i++ {
			out[i] = knn.predictRow(queries[i], nb)
		}
	})
	return model.ColumnVector(out), nil
}

type neighbor struct {
	dist float64
	idx  int
}

func (knn *KNeighborsRegressor) predictRow(q []float64, nb []neighbor) float64 {
	for i, row := range knn.TrainX {
		nb[i] = neighbor{dist: floats.Distance(q, row, knn.P), idx: i}
	}
	sort.Slice(nb, func(a, b int) bool {
		if nb[a].dist != nb[b].dist {
			return nb[a].dist < nb[b].dist
		}
		return nb[a].idx < nb[b].idx
	})
	k := nb[:knn.NNeighbors]

	if knn.Weights == WeightsDistance {
		// Exact matches take all the weight, as in scikit-learn.
		var exact, nExact float64
		for _, n := range k {
			if n.dist == 0 {
				exact += knn.TrainY[n.idx]
				nExact++
			}
		}
		if nExact > 0 {
			return exact / nExact
		}
		var num, den float64
		for _, n := range k {
			w := 1 / n.dist
			num += w * knn.TrainY[n.idx]
			den += w
		}
		return num / den
	}

	var sum float64
	for _, n := range k {
		sum += knn.TrainY[n.idx]
	}
	return sum / float64(len(k))
}

// GetParams returns the hyperparameters.
func (knn *KNeighborsRegressor) GetParams() model.Params {
	return model.Params{
		"n_neighbors": knn.NNeighbors,
		"weights":     knn.Weights,
		"p":           knn.P,
	}
}

// SetParams sets hyperparameters by name.
func (knn *KNeighborsRegressor) SetParams(params model.Params) error {
	for name, value := range params {
		var err error
		switch name {
		case "n_neighbors":
			knn.NNeighbors, err = model.PositiveInt(name, value)
		case "weights":
			var s string
			if s, err = model.ToString(name, value); err == nil {
				if s != WeightsUniform && s != WeightsDistance {
					err = errors.NewValidationError(name, "must be uniform or distance", value)
				} else {
					knn.Weights = s
				}
			}
		case "p":
			var p float64
			if p, err = model.ToFloat(name, value); err == nil {
				if p < 1 || math.IsNaN(p) {
					err = errors.NewValidationError(name, "must be >= 1", value)
				} else {
					knn.P = p
				}
			}
		default:
			err = model.UnknownParamError("KNeighborsRegressor", name, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (knn *KNeighborsRegressor) Clone() model.Regressor {
	return &KNeighborsRegressor{
		State:      model.NewStateManager(),
		NNeighbors: knn.NNeighbors,
		Weights:    knn.Weights,
		P:          knn.P,
	}
}

func (knn *KNeighborsRegressor) String() string {
	return fmt.Sprintf("KNeighborsRegressor(n_neighbors=%d, weights=%s)", knn.NNeighbors, knn.Weights)
}
