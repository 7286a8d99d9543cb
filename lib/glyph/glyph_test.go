package glyph

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xificurk/pyggs/lib/imaging"
)

// the test font: every character renders as a 5x5 cell with a solid left
// column and a solid bottom row (so cells never contain a fully empty row
// or column, which would make the segmentation split them), plus the
// character's index encoded bit by bit in the remaining 4x4 area.
const testAlphabet = "0123456789./miftHerNESW"

func charArt(t *testing.T, c rune) []string {
	t.Helper()
	idx := strings.IndexRune(testAlphabet, c)
	require.GreaterOrEqual(t, idx, 0, "char %q missing from test alphabet", c)

	rows := make([]string, 5)
	for y := 0; y < 4; y++ {
		row := []byte{'X', ' ', ' ', ' ', ' '}
		for x := 0; x < 4; x++ {
			if idx>>uint(y*4+x)&1 == 1 {
				row[x+1] = 'X'
			}
		}
		rows[y] = string(row)
	}
	rows[4] = "XXXXX"
	return rows
}

var arrowArt = []string{
	"X   ",
	"XX  ",
	"XXXX",
	"XX  ",
	"X   ",
}

var regularIconArt = []string{
	"XXXXXX",
	"X    X",
	"XXXXXX",
}

func trimArt(art []string) []string {
	var out []string
	for _, row := range art {
		if strings.TrimSpace(row) != "" || len(out) > 0 {
			out = append(out, row)
		}
	}
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return out
}

func testDict(t *testing.T) *Dictionary {
	t.Helper()
	var sb strings.Builder
	for _, c := range testAlphabet {
		sb.WriteString(string(c))
		sb.WriteString("\t")
		sb.WriteString(strings.Join(trimArt(charArt(t, c)), ","))
		sb.WriteString("\n")
	}
	sb.WriteString("Regular\t" + strings.Join(regularIconArt, ",") + "\n")
	sb.WriteString("garbage line without tabs\n")

	dict, err := ParseDictionary(strings.NewReader(sb.String()))
	require.NoError(t, err)
	return dict
}

// bandArt lays out glyph cells left to right with one empty separator
// column between them.
func bandArt(glyphs ...[]string) []string {
	if len(glyphs) == 0 {
		return nil
	}
	height := len(glyphs[0])
	rows := make([]string, height)
	for y := 0; y < height; y++ {
		parts := make([]string, len(glyphs))
		for i, g := range glyphs {
			parts[i] = g[y]
		}
		rows[y] = strings.Join(parts, " ")
	}
	return rows
}

func textBand(t *testing.T, text string) []string {
	glyphs := make([][]string, 0, len(text))
	for _, c := range text {
		glyphs = append(glyphs, charArt(t, c))
	}
	return bandArt(glyphs...)
}

type testBand struct {
	rows  []string
	color color.NRGBA
}

var (
	inkColor = color.NRGBA{A: 255}
	redColor = color.NRGBA{R: 200, G: 10, B: 10, A: 255}
)

// buildImage stacks bands with one empty separator row, encodes the result
// as PNG and decodes it back through the production pipeline.
func buildImage(t *testing.T, bands ...testBand) *imaging.Grid {
	t.Helper()
	width := 0
	height := 0
	for i, b := range bands {
		for _, row := range b.rows {
			width = max(width, len(row))
		}
		height += len(b.rows)
		if i > 0 {
			height++
		}
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	y := 0
	for i, b := range bands {
		if i > 0 {
			y++
		}
		for _, row := range b.rows {
			for x, c := range row {
				if c != ' ' {
					img.SetNRGBA(x, y, b.color)
				}
			}
			y++
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	grid, err := imaging.Decode(buf.Bytes())
	require.NoError(t, err)
	return grid
}

func TestDictionaryLookup(t *testing.T) {
	dict := testDict(t)
	require.Equal(t, len(testAlphabet)+1, dict.Len())

	sig := trimArt(charArt(t, '7'))
	for i := 0; i < 3; i++ {
		value, ok := dict.Lookup(sig)
		require.True(t, ok)
		require.Equal(t, "7", value)
	}

	_, ok := dict.Lookup([]string{"no such pattern"})
	require.False(t, ok)
}

func TestDirectionDistanceMiles(t *testing.T) {
	dict := testDict(t)
	rec := NewRecognizer(dict)

	img := buildImage(t,
		testBand{rows: bandArt(arrowArt, charArt(t, 'N'), charArt(t, 'E')), color: inkColor},
		testBand{rows: textBand(t, "12.5mi"), color: inkColor},
	)
	dd, err := rec.DirectionDistance(img)
	require.NoError(t, err)
	require.Equal(t, "NE", dd.Direction)
	require.InDelta(t, 12.5*1.609344, dd.DistanceKm, 1e-9)
}

func TestDirectionDistanceFeet(t *testing.T) {
	rec := NewRecognizer(testDict(t))

	img := buildImage(t,
		testBand{rows: bandArt(arrowArt, charArt(t, 'S')), color: inkColor},
		testBand{rows: textBand(t, "500ft"), color: inkColor},
	)
	dd, err := rec.DirectionDistance(img)
	require.NoError(t, err)
	require.Equal(t, "S", dd.Direction)
	require.InDelta(t, 500*0.0003048, dd.DistanceKm, 1e-9)
}

func TestDirectionDistanceHere(t *testing.T) {
	rec := NewRecognizer(testDict(t))

	img := buildImage(t,
		testBand{rows: bandArt(arrowArt, charArt(t, 'N')), color: inkColor},
		testBand{rows: textBand(t, "Here"), color: inkColor},
	)
	dd, err := rec.DirectionDistance(img)
	require.NoError(t, err)
	require.Equal(t, float64(0), dd.DistanceKm)
}

func TestDirectionDistanceUnknownGlyph(t *testing.T) {
	rec := NewRecognizer(testDict(t))

	// an arrow in the distance band is not a dictionary glyph
	img := buildImage(t,
		testBand{rows: bandArt(arrowArt, charArt(t, 'N')), color: inkColor},
		testBand{rows: bandArt(arrowArt), color: inkColor},
	)
	_, err := rec.DirectionDistance(img)
	require.ErrorIs(t, err, ErrUnrecognized)
}

func TestDirectionDistanceBadBandCount(t *testing.T) {
	rec := NewRecognizer(testDict(t))

	img := buildImage(t,
		testBand{rows: textBand(t, "12mi"), color: inkColor},
	)
	_, err := rec.DirectionDistance(img)
	require.ErrorIs(t, err, ErrUnrecognized)
}

func TestDifficultyTerrainSize(t *testing.T) {
	rec := NewRecognizer(testDict(t))

	img := buildImage(t,
		testBand{rows: textBand(t, "3/1.5"), color: inkColor},
		testBand{rows: regularIconArt, color: redColor},
	)
	dts, err := rec.DifficultyTerrainSize(img)
	require.NoError(t, err)
	require.Equal(t, 3.0, dts.Difficulty)
	require.Equal(t, 1.5, dts.Terrain)
	require.Equal(t, "Regular", dts.Size)
}

func TestDifficultyTerrainSizeBadSeparator(t *testing.T) {
	rec := NewRecognizer(testDict(t))

	img := buildImage(t,
		testBand{rows: textBand(t, "3.15"), color: inkColor},
		testBand{rows: regularIconArt, color: redColor},
	)
	_, err := rec.DifficultyTerrainSize(img)
	require.ErrorIs(t, err, ErrUnrecognized)
}
