package geocaching

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xificurk/pyggs/lib/glyph"
	"github.com/xificurk/pyggs/lib/imaging"
)

// testDictionary resolves glyphs by width: each character of the test
// font is a run of filled pixels on a single row, the size icon is a
// 2x2 block.
const testDictionary = `N	XXXXX
E	XXXXXX
H	X
e	XX
r	XXX
1	XXXXXXX
/	XXXXXXXX
Regular	XX,XX
`

var (
	inkPixel = color.NRGBA{A: 255}
	redPixel = color.NRGBA{R: 200, G: 10, B: 10, A: 255}
)

func fillRun(img *image.NRGBA, x, y, width int, pixel color.NRGBA) int {
	for i := 0; i < width; i++ {
		img.SetNRGBA(x+i, y, pixel)
	}
	return x + width + 1 // leave a separator column
}

func encodePNG(t *testing.T, img *image.NRGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// ddImage renders an arrow plus "NE" over "Here".
func ddImage(t *testing.T) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 17, 3))
	x := fillRun(img, 0, 0, 4, inkPixel) // arrow icon
	x = fillRun(img, x, 0, 5, inkPixel)  // N
	fillRun(img, x, 0, 6, inkPixel)      // E
	x = fillRun(img, 0, 2, 1, inkPixel)  // H
	x = fillRun(img, x, 2, 2, inkPixel)  // e
	x = fillRun(img, x, 2, 3, inkPixel)  // r
	fillRun(img, x, 2, 2, inkPixel)      // e
	return encodePNG(t, img)
}

// dtsImage renders "1/1" over a red 2x2 size icon.
func dtsImage(t *testing.T) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 24, 4))
	x := fillRun(img, 0, 0, 7, inkPixel) // 1
	x = fillRun(img, x, 0, 8, inkPixel)  // /
	fillRun(img, x, 0, 7, inkPixel)      // 1
	fillRun(img, 0, 2, 2, redPixel)
	fillRun(img, 0, 3, 2, redPixel)
	return encodePNG(t, img)
}

func testGlyphDictionary(t *testing.T) *glyph.Dictionary {
	t.Helper()
	dict, err := glyph.ParseDictionary(strings.NewReader(testDictionary))
	require.NoError(t, err)
	return dict
}

func TestSeekOCRAugmentsRows(t *testing.T) {
	page := seekPageHTML("3", "vs1",
		seekRowFixture{guid: "g1", name: "A", owner: "o", waypoint: "GC1", location: "X", hidden: "30 Oct 09", ddCode: "ddAB", dtsCode: "tQF7m"},
		seekRowFixture{guid: "g2", name: "B", owner: "o", waypoint: "GC2", location: "X", hidden: "30 Oct 09", ddCode: "ddAB"},
		seekRowFixture{guid: "g3", name: "C", owner: "o", waypoint: "GC3", location: "X", hidden: "30 Oct 09", ddCode: "missing"},
	)
	fetcher := &fakeFetcher{
		pages: map[string]string{"http://test/seek/start": page},
		rawPages: map[string][]byte{
			"http://test/ImgGen/seek/CacheDir.ashx?k=ddAB":   ddImage(t),
			"http://test/ImgGen/seek/CacheInfo.ashx?v=tQF7m": dtsImage(t),
		},
	}
	seek := NewSeekOCR(fetcher, testGlyphDictionary(t))
	seek.baseURL = "http://test"
	seek.resolver.baseURL = "http://test"

	result, err := seek.Get(context.Background(), "http://test/seek/start")
	require.NoError(t, err)
	require.Equal(t, 3, result.Len())

	first, err := result.Get(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, "NE", first.String("direction"))
	require.Equal(t, 0.0, first.Float("distance"))
	require.Equal(t, 1.0, first.Float("difficulty"))
	require.Equal(t, 1.0, first.Float("terrain"))
	require.Equal(t, "Regular", first.String("size"))

	// the duplicate code resolves from the same single fetch
	second, err := result.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "NE", second.String("direction"))

	// a failed image leaves explicit gaps without failing the batch
	third, err := result.Get(context.Background(), 2)
	require.NoError(t, err)
	require.True(t, third.IsMissing("direction"))
	require.True(t, third.IsMissing("distance"))

	ddFetches := 0
	for _, call := range fetcher.rawCalls {
		if strings.Contains(call, "CacheDir.ashx?k=ddAB") {
			ddFetches++
		}
	}
	require.Equal(t, 1, ddFetches)
}

func TestResolveAllDeduplicates(t *testing.T) {
	fetcher := &fakeFetcher{rawPages: map[string][]byte{
		"img/abc": ddImage(t),
		"img/xyz": ddImage(t),
	}}
	var decoded atomic.Int32
	resolved := resolveAll(context.Background(), fetcher,
		[]string{"abc", "abc", "xyz", "abc", ""},
		func(code string) string { return "img/" + code },
		func(*imaging.Grid) (string, error) {
			decoded.Add(1)
			return "ok", nil
		})

	require.Equal(t, map[string]string{"abc": "ok", "xyz": "ok"}, resolved)
	require.Len(t, fetcher.rawCalls, 2)
	require.Equal(t, int32(2), decoded.Load())
}

func TestResolveAllSkipsFailures(t *testing.T) {
	fetcher := &fakeFetcher{rawPages: map[string][]byte{
		"img/good": ddImage(t),
		"img/junk": []byte("not an image"),
	}}
	resolved := resolveAll(context.Background(), fetcher,
		[]string{"good", "junk", "gone"},
		func(code string) string { return "img/" + code },
		func(*imaging.Grid) (string, error) { return "ok", nil })

	require.Equal(t, map[string]string{"good": "ok"}, resolved)
}
