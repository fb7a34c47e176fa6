package model

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

func TestToInt(t *testing.T) {
	tests := []struct {
		name    string
		in      interface{}
		want    int
		wantErr bool
	}{
		{"int", 16, 16, false},
		{"int64", int64(32), 32, false},
		{"integral float", 64.0, 64, false},
		{"fractional float", 0.5, 0, true},
		{"string", "8", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToInt("n_estimators", tt.in)
			if tt.wantErr {
				var verr *errors.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "n_estimators", verr.ParamName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRangeHelpers(t *testing.T) {
	_, err := PositiveInt("n_neighbors", 0)
	assert.Error(t, err)

	f, err := UnitInterval("subsample", 0.75)
	require.NoError(t, err)
	assert.Equal(t, 0.75, f)

	_, err = UnitInterval("subsample", 1.5)
	assert.Error(t, err)

	_, err = PositiveFloat("learning_rate", 0.0)
	assert.Error(t, err)

	s, err := ToString("criterion", "poisson")
	require.NoError(t, err)
	assert.Equal(t, "poisson", s)
}

func TestParamsKeysAndString(t *testing.T) {
	p := Params{"subsample": 0.8, "learning_rate": 0.1, "n_estimators": 8}

	assert.Equal(t, []string{"learning_rate", "n_estimators", "subsample"}, p.Keys())
	assert.Equal(t, "{learning_rate=0.1, n_estimators=8, subsample=0.8}", p.String())

	c := p.Copy()
	c["subsample"] = 0.6
	assert.Equal(t, 0.8, p["subsample"])
}

func TestCheckXY(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})

	rows, cols, err := CheckXY("Fit", X, mat.NewDense(3, 1, []float64{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)

	_, _, err = CheckXY("Fit", X, mat.NewDense(2, 1, []float64{1, 2}))
	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 0, dimErr.Axis)

	_, _, err = CheckXY("Fit", X, mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}))
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 1, dimErr.Axis)
}

func TestStateManager(t *testing.T) {
	var nilState *StateManager
	assert.False(t, nilState.IsFitted())

	s := NewStateManager()
	err := s.RequireFitted("Dummy", "Predict")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	s.SetFitted(2, 10)
	require.NoError(t, s.CheckPredictInput("Dummy", mat.NewDense(1, 2, nil)))

	err = s.CheckPredictInput("Dummy", mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 2, dimErr.Expected)
}

func TestPersistenceRoundTrip(t *testing.T) {
	type artifact struct {
		Name  string
		State *StateManager
	}
	s := NewStateManager()
	s.SetFitted(4, 100)

	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(&buf, artifact{Name: "m", State: s}))

	var got artifact
	require.NoError(t, LoadModelFromReader(&buf, &got))
	assert.True(t, got.State.IsFitted())
	nf, ns := got.State.GetDimensions()
	assert.Equal(t, 4, nf)
	assert.Equal(t, 100, ns)
}
