package viz

import (
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
	return c
}

// Set lights the sub-pixel (x, y). The canvas is (Width*2) x (Height*4)
// sub-pixels.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}

	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}

	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// Contour marks every sub-pixel where the n×n row-major field changes sign
// across level, sampling the field at nearest grid points. Row 0 of the
// field is drawn at the bottom so y increases upward.
func (c *Canvas) Contour(field []float64, n int, level float64) {
	pw, ph := c.Width*2, c.Height*4
	if n == 0 || pw == 0 || ph == 0 {
		return
	}

	sample := func(px, py int) bool {
		j := px * n / pw
		i := (ph - 1 - py) * n / ph
		return field[i*n+j] > level
	}

	for py := 0; py < ph; py++ {
		for px := 0; px < pw; px++ {
			above := sample(px, py)
			if (px+1 < pw && sample(px+1, py) != above) ||
				(py+1 < ph && sample(px, py+1) != above) {
				c.Set(px, py)
			}
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}
