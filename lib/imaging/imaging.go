// Package imaging decodes the tiny server-rendered bitmaps used to
// obfuscate listing attributes and provides the segmentation primitives
// the glyph recognizer is built on. Grids are immutable: every transform
// returns a fresh Grid so decoded images can be shared across goroutines.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	_ "image/gif"
	_ "image/png"
)

type RGBA struct {
	R, G, B, A uint8
}

// Empty reports whether a pixel counts as background. Different image
// kinds use different rules (alpha cutoff, color dominance), so the
// predicate is a parameter of every transform.
type Empty func(RGBA) bool

// AlphaBelow returns a predicate treating pixels with alpha under the
// threshold as background.
func AlphaBelow(threshold uint8) Empty {
	return func(px RGBA) bool {
		return px.A < threshold
	}
}

type Grid struct {
	width  int
	height int
	pixels [][]RGBA
}

// NewGrid wraps pixel rows into a Grid. All rows must have equal length.
func NewGrid(pixels [][]RGBA) (*Grid, error) {
	if len(pixels) == 0 {
		return &Grid{}, nil
	}
	width := len(pixels[0])
	for _, row := range pixels {
		if len(row) != width {
			return nil, fmt.Errorf("ragged pixel rows: want width %d, got %d", width, len(row))
		}
	}
	return &Grid{width: width, height: len(pixels), pixels: pixels}, nil
}

// Decode parses image bytes (png or gif) into a Grid.
func Decode(data []byte) (*Grid, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	pixels := make([][]RGBA, bounds.Dy())
	for y := range pixels {
		row := make([]RGBA, bounds.Dx())
		for x := range row {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			row[x] = RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
		}
		pixels[y] = row
	}
	return &Grid{width: bounds.Dx(), height: bounds.Dy(), pixels: pixels}, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) At(x, y int) RGBA {
	return g.pixels[y][x]
}

// Cut copies the [left,right]x[top,bottom] region (inclusive bounds,
// clamped to the grid) into a new Grid.
func (g *Grid) Cut(left, top, right, bottom int) *Grid {
	pixels := [][]RGBA{}
	for y := max(top, 0); y <= min(bottom, g.height-1); y++ {
		row := make([]RGBA, 0, right-left+1)
		for x := max(left, 0); x <= min(right, g.width-1); x++ {
			row = append(row, g.pixels[y][x])
		}
		pixels = append(pixels, row)
	}
	grid, _ := NewGrid(pixels)
	return grid
}

func (g *Grid) rowEmpty(y int, empty Empty) bool {
	for x := 0; x < g.width; x++ {
		if !empty(g.pixels[y][x]) {
			return false
		}
	}
	return true
}

func (g *Grid) colEmpty(x int, empty Empty) bool {
	for y := 0; y < g.height; y++ {
		if !empty(g.pixels[y][x]) {
			return false
		}
	}
	return true
}

// TrimRows drops empty rows from the top and bottom.
func (g *Grid) TrimRows(empty Empty) *Grid {
	top := g.height - 1
	bottom := 0
	for y := 0; y < g.height; y++ {
		if !g.rowEmpty(y, empty) {
			top = min(top, y)
			bottom = max(bottom, y)
		}
	}
	return g.Cut(0, top, g.width-1, bottom)
}

// TrimCols drops empty columns from the left and right.
func (g *Grid) TrimCols(empty Empty) *Grid {
	left := g.width - 1
	right := 0
	for x := 0; x < g.width; x++ {
		if !g.colEmpty(x, empty) {
			left = min(left, x)
			right = max(right, x)
		}
	}
	return g.Cut(left, 0, right, g.height-1)
}

// Trim drops empty border rows and columns.
func (g *Grid) Trim(empty Empty) *Grid {
	return g.TrimRows(empty).TrimCols(empty)
}

// SplitRows segments the grid into horizontal bands separated by runs of
// fully-empty rows, ordered top to bottom.
func (g *Grid) SplitRows(empty Empty) []*Grid {
	var parts []*Grid
	top := -1
	bottom := -1
	for y := 0; y < g.height; y++ {
		if !g.rowEmpty(y, empty) {
			if top < 0 {
				top = y
			}
			bottom = y
		} else if top >= 0 {
			parts = append(parts, g.Cut(0, top, g.width-1, bottom))
			top, bottom = -1, -1
		}
	}
	if top >= 0 {
		parts = append(parts, g.Cut(0, top, g.width-1, bottom))
	}
	return parts
}

// SplitCols segments the grid into vertical bands separated by runs of
// fully-empty columns, ordered left to right.
func (g *Grid) SplitCols(empty Empty) []*Grid {
	var parts []*Grid
	left := -1
	right := -1
	for x := 0; x < g.width; x++ {
		if !g.colEmpty(x, empty) {
			if left < 0 {
				left = x
			}
			right = x
		} else if left >= 0 {
			parts = append(parts, g.Cut(left, 0, right, g.height-1))
			left, right = -1, -1
		}
	}
	if left >= 0 {
		parts = append(parts, g.Cut(left, 0, right, g.height-1))
	}
	return parts
}

// Bitmask renders each row as a string with ' ' for empty pixels and 'X'
// for filled ones. The joined rows form the canonical signature used for
// glyph dictionary lookups.
func (g *Grid) Bitmask(empty Empty) []string {
	mask := make([]string, g.height)
	for y := 0; y < g.height; y++ {
		row := make([]byte, g.width)
		for x := 0; x < g.width; x++ {
			if empty(g.pixels[y][x]) {
				row[x] = ' '
			} else {
				row[x] = 'X'
			}
		}
		mask[y] = string(row)
	}
	return mask
}
