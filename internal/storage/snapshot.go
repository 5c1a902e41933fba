package storage

import (
	"bufio"
	"fmt"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/spiralsim/internal/spectral"
)

// fieldGrid exposes a flat row-major field as a plotter.GridXYZ.
type fieldGrid struct {
	grid *spectral.Grid
	data []float64
}

func (g fieldGrid) Dims() (c, r int)   { return g.grid.N, g.grid.N }
func (g fieldGrid) Z(c, r int) float64 { return g.data[g.grid.Index(r, c)] }
func (g fieldGrid) X(c int) float64    { return g.grid.X1[c] }
func (g fieldGrid) Y(r int) float64    { return g.grid.X1[r] }

// WriteSnapshot renders field as a heatmap PNG.
func WriteSnapshot(path string, grid *spectral.Grid, field []float64, title string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	pal := moreland.Kindlmann().Palette(255)
	hm := plotter.NewHeatMap(fieldGrid{grid: grid, data: field}, pal)
	if lo, hi := floats.Min(field), floats.Max(field); lo == hi {
		hm.Min, hm.Max = lo-0.5, hi+0.5
	}
	p.Add(hm)

	c := vgimg.NewWith(
		vgimg.UseWH(6*vg.Inch, 6*vg.Inch),
		vgimg.UseDPI(100),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}
