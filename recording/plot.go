package recording

import (
	"sort"

	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotHyperparameterImportance renders the importance shares of one fold's
// search as a bar chart. Bars appear in name order so charts from different
// folds line up.
func PlotHyperparameterImportance(importance map[string]float64, title, path string) error {
	if len(importance) == 0 {
		return errors.NewConfigurationError("importance", "nothing to plot", nil)
	}

	names := make([]string, 0, len(importance))
	for name := range importance {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(plotter.Values, len(names))
	for i, name := range names {
		values[i] = importance[name]
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "importance"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return errors.Wrap(err, "building bar chart")
	}
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(names...)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "saving chart")
	}
	return nil
}
