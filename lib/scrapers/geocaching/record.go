// Package geocaching parses geocache listings, visit logs and search
// results out of geocaching.com pages fetched through the core client.
package geocaching

import (
	"context"

	"github.com/xificurk/pyggs/lib/scrapers/geocaching/core"
)

// missingMarker is the explicit "field not found" value. Downstream
// consumers need to distinguish a field the page did not contain from a
// field that was never parsed, so absent fields are recorded rather
// than dropped.
type missingMarker struct{}

func (missingMarker) String() string { return "<missing>" }

func (missingMarker) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Missing marks a record field that the page was expected to contain
// but did not.
var Missing = missingMarker{}

// Record is one harvested entity (a cache listing, a log entry, a
// search hit) as a named-field map.
type Record map[string]any

// SetMissing records that the field could not be parsed out of the page.
func (r Record) SetMissing(field string) {
	r[field] = Missing
}

// IsMissing reports whether the field was looked for and not found.
func (r Record) IsMissing(field string) bool {
	_, ok := r[field].(missingMarker)
	return ok
}

// String returns the field as a string, or "" when absent or missing.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Float returns the field as a float64, or 0 when absent or missing.
func (r Record) Float(field string) float64 {
	f, _ := r[field].(float64)
	return f
}

// Int returns the field as an int, or 0 when absent or missing.
func (r Record) Int(field string) int {
	n, _ := r[field].(int)
	return n
}

// Bool returns the field as a bool, or false when absent or missing.
func (r Record) Bool(field string) bool {
	b, _ := r[field].(bool)
	return b
}

// CacheLog is one visit log attached to a cache listing.
type CacheLog struct {
	GUID       string
	Type       string
	Date       string
	Finder     string
	FinderGUID string
	Text       string
}

// LogItem is one entry from the user's own log list.
type LogItem struct {
	LUID  string
	Type  string
	Date  string
	Cache Record
}

// Fetcher is the slice of the core client the parsers need. Auth and
// politeness handling stay behind it.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts core.FetchOptions) (string, error)
	FetchRaw(ctx context.Context, url string) ([]byte, error)
}

// cacheTypes maps the type labels the site renders to their canonical
// names. The site intermittently relabels puzzle caches.
var cacheTypes = map[string]string{
	"Unknown Cache": "Mystery/Puzzle Cache",
}

func normalizeCacheType(label string) string {
	if canonical, ok := cacheTypes[label]; ok {
		return canonical
	}
	return label
}
