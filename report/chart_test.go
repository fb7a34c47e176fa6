package report

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/studentperf/selection"
)

func TestSaveBarChart(t *testing.T) {
	r := selection.Report{
		{Name: "Random Forest", Score: 0.85},
		{Name: "Linear Regression", Score: 0.88},
		{Name: "KNeighbors Regressor", Score: math.NaN()},
	}
	for _, name := range []string{"report.png", "report.svg"} {
		path := filepath.Join(t.TempDir(), "plots", name)
		require.NoError(t, SaveBarChart(r, selection.MinScore, path))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestBarChart_Empty(t *testing.T) {
	_, err := BarChart(nil, selection.MinScore)
	assert.Error(t, err)
}
