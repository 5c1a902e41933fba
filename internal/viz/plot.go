package viz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/spiralsim/internal/analysis"
)

var seriesColors = []asciigraph.AnsiColor{asciigraph.Red, asciigraph.Blue, asciigraph.Green, asciigraph.Yellow}

// PlotColumns charts one or more statistics columns against output index.
func PlotColumns(table analysis.Table, columns []string, width, height int) (string, error) {
	if len(table) < 2 {
		return "", errors.New("need at least two rows to plot")
	}
	if len(columns) == 0 {
		return "", errors.New("no columns to plot")
	}

	data := make([][]float64, len(columns))
	for i, name := range columns {
		col, err := table.Column(name)
		if err != nil {
			return "", err
		}
		data[i] = col
	}

	colors := make([]asciigraph.AnsiColor, len(columns))
	for i := range colors {
		colors[i] = seriesColors[i%len(seriesColors)]
	}

	caption := fmt.Sprintf("%s  (t = %.4g .. %.4g)", strings.Join(columns, ", "), table[0].Time, table[len(table)-1].Time)
	return asciigraph.PlotMany(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(caption),
	), nil
}

// PlotSpectrum charts the power spectrum of a column.
func PlotSpectrum(table analysis.Table, column string, width, height int) (string, error) {
	col, err := table.Column(column)
	if err != nil {
		return "", err
	}
	power := analysis.PowerSpectrum(col)
	if len(power) < 2 {
		return "", errors.New("series too short for a spectrum")
	}

	return asciigraph.Plot(power[1:],
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption("power spectrum ("+column+")"),
	), nil
}

// FieldView draws the zero contour of an n×n field on a braille canvas.
func FieldView(field []float64, n, width, height int, caption string) string {
	c := NewCanvas(width, height)
	c.Contour(field, n, 0)
	return Panel.Render(c.String() + Subtle.Render(caption))
}
