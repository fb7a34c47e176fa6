package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/sklearn/linear_model"
)

type record struct {
	Name  string
	Score float64
	Model model.Regressor
}

func fittedRecord(t *testing.T) (record, *mat.Dense) {
	t.Helper()
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{3, 5, 7, 9})
	lr := linear_model.NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	return record{Name: "Linear Regression", Score: 0.9, Model: lr}, X
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	b, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return map[string]Store{
		"file":   NewFileStore(filepath.Join(t.TempDir(), "artifacts")),
		"badger": b,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	want, X := fittedRecord(t)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, "model.gob", &want))

			var got record
			require.NoError(t, s.Load(ctx, "model.gob", &got))
			assert.Equal(t, want.Name, got.Name)
			assert.Equal(t, want.Score, got.Score)

			a, err := want.Model.Predict(X)
			require.NoError(t, err)
			b, err := got.Model.Predict(X)
			require.NoError(t, err)
			assert.True(t, mat.EqualApprox(a, b, 1e-12))
		})
	}
}

func TestStore_LoadMissing(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var got record
			err := s.Load(context.Background(), "absent.gob", &got)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotFound))

			var pf *errors.PersistenceFailure
			require.True(t, errors.As(err, &pf))
			assert.Equal(t, OpLoad, pf.Op)
			assert.Equal(t, "absent.gob", pf.Key)
		})
	}
}

func TestStore_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Save(ctx, "model.gob", &record{Name: "x"})
			assert.True(t, errors.Is(err, context.Canceled))
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "artifacts")
	s := NewFileStore(root)
	require.NoError(t, s.Save(context.Background(), "preprocessor.gob", &record{Name: "p"}))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "preprocessor.gob", entries[0].Name())
}

func TestBadgerStore_Keys(t *testing.T) {
	s, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "b", &record{Name: "b"}))
	require.NoError(t, s.Save(ctx, "a", &record{Name: "a"}))
	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	_, err = OpenBadgerStore(BadgerConfig{})
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))
}
