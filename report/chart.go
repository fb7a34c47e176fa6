// Package report renders selection reports.
package report

import (
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/selection"
)

// BarChart builds a plot of the held-out R² of every candidate with a dashed
// line at threshold. NaN scores are drawn as zero-height bars.
func BarChart(r selection.Report, threshold float64) (*plot.Plot, error) {
	if len(r) == 0 {
		return nil, errors.NewValueError("report.BarChart", "empty report")
	}
	values := make(plotter.Values, len(r))
	for i, e := range r {
		if !math.IsNaN(e.Score) && !math.IsInf(e.Score, 0) {
			values[i] = e.Score
		}
	}

	p := plot.New()
	p.Title.Text = "Held-out R² by candidate"
	p.Y.Label.Text = "R²"
	p.Y.Max = 1

	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return nil, errors.Wrap(err, "build bar chart")
	}
	bars.Color = color.RGBA{R: 66, G: 133, B: 244, A: 255}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	gate, err := plotter.NewLine(plotter.XYs{
		{X: -0.5, Y: threshold},
		{X: float64(len(r)) - 0.5, Y: threshold},
	})
	if err != nil {
		return nil, errors.Wrap(err, "build threshold line")
	}
	gate.LineStyle.Color = color.RGBA{R: 219, G: 68, B: 55, A: 255}
	gate.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(gate)
	p.Legend.Add("threshold", gate)

	p.NominalX(r.Names()...)
	return p, nil
}

// SaveBarChart writes BarChart to path. The image format follows the
// extension (png, svg, pdf, ...).
func SaveBarChart(r selection.Report, threshold float64, path string) error {
	p, err := BarChart(r, threshold)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	width := vg.Length(math.Max(6, float64(len(r))*1.2)) * vg.Inch
	if err := p.Save(width, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save chart %s", path)
	}
	return nil
}
