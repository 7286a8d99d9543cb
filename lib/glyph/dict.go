// Package glyph recovers the semantic values hidden inside the
// server-rendered obfuscation images: distance and compass direction from
// the search-result direction images, and difficulty/terrain/size from the
// cache-info images. Recognition matches segmented glyph bitmasks against
// a trained pattern dictionary.
package glyph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Dictionary maps canonical bitmask signatures to resolved values.
// Values are usually single characters, but the container-size icons
// resolve to whole tokens like "Regular". The dictionary is read-only
// after load and safe for concurrent lookups.
type Dictionary struct {
	patterns map[string]string
}

// LoadDictionary reads a pattern file with one glyph per line:
// value <TAB> row1,row2,row3,...
func LoadDictionary(path string) (*Dictionary, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pattern file: %w", err)
	}
	defer fp.Close()
	dict, err := ParseDictionary(fp)
	if err != nil {
		return nil, fmt.Errorf("parse pattern file %s: %w", path, err)
	}
	return dict, nil
}

// ParseDictionary reads the pattern format from r. Lines without exactly
// one tab are skipped, matching the permissive loading of the rest of the
// persisted state.
func ParseDictionary(r io.Reader) (*Dictionary, error) {
	patterns := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\n")
		parts := strings.Split(line, "\t")
		if len(parts) != 2 {
			continue
		}
		patterns[parts[1]] = parts[0]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &Dictionary{patterns: patterns}, nil
}

// Lookup resolves a bitmask signature (rows of the trimmed glyph) to its
// value. The second return is false for unknown patterns.
func (d *Dictionary) Lookup(rows []string) (string, bool) {
	value, ok := d.patterns[strings.Join(rows, ",")]
	return value, ok
}

func (d *Dictionary) Len() int {
	return len(d.patterns)
}
