package geocaching

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/xificurk/pyggs/lib/glyph"
	"github.com/xificurk/pyggs/lib/imaging"
)

// NewSeekOCR returns a Seek that additionally recognizes the generated
// distance/direction and difficulty/terrain/size images on each result
// row, using the given glyph dictionary.
func NewSeekOCR(fetcher Fetcher, dict *glyph.Dictionary) *Seek {
	seek := NewSeek(fetcher)
	seek.resolver = &imageResolver{
		fetcher:    fetcher,
		recognizer: glyph.NewRecognizer(dict),
		baseURL:    BaseURL,
	}
	return seek
}

type imageResolver struct {
	fetcher    Fetcher
	recognizer glyph.Recognizer
	baseURL    string
}

// augment fills the image-obscured fields of each row record. ddCodes
// and dtsCodes run parallel to rows; "" marks a row without that image.
// A code that cannot be fetched or recognized leaves explicit missing
// markers on its row, it never fails the batch.
func (r *imageResolver) augment(ctx context.Context, rows []Record, ddCodes, dtsCodes []string) {
	dd := resolveAll(ctx, r.fetcher, ddCodes, r.ddURL, r.recognizer.DirectionDistance)
	dts := resolveAll(ctx, r.fetcher, dtsCodes, r.dtsURL, r.recognizer.DifficultyTerrainSize)

	for i, record := range rows {
		if code := ddCodes[i]; code != "" {
			if value, ok := dd[code]; ok {
				record["distance"] = value.DistanceKm
				record["direction"] = value.Direction
			} else {
				slog.Error("unresolved direction/distance image", "guid", record["guid"])
				record.SetMissing("distance")
				record.SetMissing("direction")
			}
		}
		if code := dtsCodes[i]; code != "" {
			if value, ok := dts[code]; ok {
				record["difficulty"] = value.Difficulty
				record["terrain"] = value.Terrain
				record["size"] = value.Size
			} else {
				slog.Error("unresolved difficulty/terrain/size image", "guid", record["guid"])
				record.SetMissing("difficulty")
				record.SetMissing("terrain")
				record.SetMissing("size")
			}
		}
	}
}

// The code is replayed verbatim: it is already URL-encoded in the img
// src attribute it was lifted from.
func (r *imageResolver) ddURL(code string) string {
	return r.baseURL + "/ImgGen/seek/CacheDir.ashx?k=" + code
}

func (r *imageResolver) dtsURL(code string) string {
	return r.baseURL + "/ImgGen/seek/CacheInfo.ashx?v=" + code
}

// resolveAll fetches and recognizes every distinct code concurrently,
// one task per code, and joins before returning. The result map is
// complete for resolved codes only; failures are logged and the code is
// simply absent from the map.
//
// Each task writes only to its own pre-allocated slot, and the map is
// assembled after the join, so no locking is needed.
func resolveAll[T any](ctx context.Context, fetcher Fetcher, codes []string, imageURL func(string) string, recognize func(*imaging.Grid) (T, error)) map[string]T {
	distinct := make([]string, 0, len(codes))
	seen := map[string]bool{}
	for _, code := range codes {
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		distinct = append(distinct, code)
	}

	values := make([]*T, len(distinct))
	var group errgroup.Group
	for i, code := range distinct {
		i, code := i, code
		group.Go(func() error {
			data, err := fetcher.FetchRaw(ctx, imageURL(code))
			if err != nil {
				slog.Error("image fetch failed", "code", code, "err", err)
				return nil
			}
			img, err := imaging.Decode(data)
			if err != nil {
				slog.Error("image decode failed", "code", code, "err", err)
				return nil
			}
			value, err := recognize(img)
			if err != nil {
				slog.Error("image recognition failed", "code", code, "err", err)
				return nil
			}
			values[i] = &value
			return nil
		})
	}
	// tasks report failures as absent entries, never as errors
	_ = group.Wait()

	resolved := make(map[string]T, len(distinct))
	for i, code := range distinct {
		if values[i] != nil {
			resolved[code] = *values[i]
		}
	}
	return resolved
}
