package model_selection

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

// Fold holds the row indices of one train/test split.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewKFold creates a non-shuffling k-fold splitter.
func NewKFold(nSplits int) *KFold {
	return &KFold{NSplits: nSplits}
}

// Split generates train/test indices for nSamples rows.
// Test folds are contiguous blocks of the (optionally shuffled) index order.
func (kf *KFold) Split(nSamples int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be >= 2", kf.NSplits)
	}
	if nSamples < kf.NSplits {
		return nil, errors.NewValueError("KFold.Split",
			"cannot have number of splits greater than the number of samples")
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	start := 0
	for i := range folds {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		end := start + testSize

		train := make([]int, 0, nSamples-testSize)
		train = append(train, indices[:start]...)
		train = append(train, indices[end:]...)

		folds[i] = Fold{
			TrainIndices: train,
			TestIndices:  append([]int(nil), indices[start:end]...),
		}
		start = end
	}
	return folds, nil
}

// SelectRows copies the given rows of X into a new matrix.
func SelectRows(X mat.Matrix, idx []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		for j := 0; j < c; j++ {
			out.Set(i, j, X.At(r, j))
		}
	}
	return out
}
