package glyph

import (
	"errors"
	"strconv"
	"strings"

	"github.com/xificurk/pyggs/lib/imaging"
)

// ErrUnrecognized means the image did not segment as expected or contained
// a glyph missing from the dictionary. Recognition is all-or-nothing:
// callers treat this as "value unknown", never as a fatal condition.
var ErrUnrecognized = errors.New("unrecognized glyph image")

const (
	milesToKm = 1.609344
	feetToKm  = 0.0003048
)

// glyphEmpty is the background rule for rendered text.
var glyphEmpty = imaging.AlphaBelow(100)

// sizeEmpty additionally requires strong red dominance, which separates
// the highlighted segments of the container-size icon from its gray frame.
func sizeEmpty(px imaging.RGBA) bool {
	return px.A < 100 || int(px.R) < 2*max(int(px.G), int(px.B))
}

type DirectionDistance struct {
	// Direction is a compass token such as "NE".
	Direction string
	// DistanceKm is normalized to kilometers regardless of the unit the
	// image was rendered with.
	DistanceKm float64
}

type DifficultyTerrainSize struct {
	Difficulty float64
	Terrain    float64
	// Size is a canonical container class token, e.g. "Regular".
	Size string
}

type Recognizer struct {
	dict *Dictionary
}

func NewRecognizer(dict *Dictionary) Recognizer {
	return Recognizer{dict: dict}
}

// readBand splits a band of rendered text into glyphs and resolves each
// one, concatenating the results.
func (r Recognizer) readBand(band *imaging.Grid) (string, error) {
	var text strings.Builder
	for _, part := range band.SplitCols(glyphEmpty) {
		rows := part.TrimRows(glyphEmpty).Bitmask(glyphEmpty)
		char, ok := r.dict.Lookup(rows)
		if !ok {
			return "", ErrUnrecognized
		}
		text.WriteString(char)
	}
	return text.String(), nil
}

// DirectionDistance reads a direction/distance image: the top band is the
// compass text prefixed by an arrow icon, the bottom band the distance
// text with its unit suffix.
func (r Recognizer) DirectionDistance(img *imaging.Grid) (DirectionDistance, error) {
	bands := img.SplitRows(glyphEmpty)
	if len(bands) != 2 {
		return DirectionDistance{}, ErrUnrecognized
	}

	dirGlyphs := bands[0].SplitCols(glyphEmpty)
	if len(dirGlyphs) < 2 {
		return DirectionDistance{}, ErrUnrecognized
	}
	var direction strings.Builder
	// the first glyph is the arrow icon, not a character
	for _, part := range dirGlyphs[1:] {
		rows := part.TrimRows(glyphEmpty).Bitmask(glyphEmpty)
		char, ok := r.dict.Lookup(rows)
		if !ok {
			return DirectionDistance{}, ErrUnrecognized
		}
		direction.WriteString(char)
	}

	distance, err := r.readBand(bands[1])
	if err != nil {
		return DirectionDistance{}, err
	}
	km, err := normalizeDistance(distance)
	if err != nil {
		return DirectionDistance{}, err
	}

	return DirectionDistance{
		Direction:  direction.String(),
		DistanceKm: km,
	}, nil
}

func normalizeDistance(distance string) (float64, error) {
	switch {
	case strings.HasSuffix(distance, "mi"):
		value, err := strconv.ParseFloat(strings.TrimSuffix(distance, "mi"), 64)
		if err != nil {
			return 0, ErrUnrecognized
		}
		return value * milesToKm, nil
	case strings.HasSuffix(distance, "ft"):
		value, err := strconv.ParseFloat(strings.TrimSuffix(distance, "ft"), 64)
		if err != nil {
			return 0, ErrUnrecognized
		}
		return value * feetToKm, nil
	case distance == "Here":
		return 0, nil
	}
	return 0, ErrUnrecognized
}

// DifficultyTerrainSize reads a cache-info image: the top band renders
// "D/T" as text, the bottom band is the container-size icon.
func (r Recognizer) DifficultyTerrainSize(img *imaging.Grid) (DifficultyTerrainSize, error) {
	bands := img.SplitRows(glyphEmpty)
	if len(bands) != 2 {
		return DifficultyTerrainSize{}, ErrUnrecognized
	}

	dt, err := r.readBand(bands[0])
	if err != nil {
		return DifficultyTerrainSize{}, err
	}
	parts := strings.Split(dt, "/")
	if len(parts) != 2 {
		return DifficultyTerrainSize{}, ErrUnrecognized
	}
	difficulty, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return DifficultyTerrainSize{}, ErrUnrecognized
	}
	terrain, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return DifficultyTerrainSize{}, ErrUnrecognized
	}

	rows := bands[1].Trim(sizeEmpty).Bitmask(sizeEmpty)
	size, ok := r.dict.Lookup(rows)
	if !ok {
		return DifficultyTerrainSize{}, ErrUnrecognized
	}

	return DifficultyTerrainSize{
		Difficulty: difficulty,
		Terrain:    terrain,
		Size:       size,
	}, nil
}
