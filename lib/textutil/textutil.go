package textutil

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// CollapseWhitespace flattens runs of whitespace (including newlines left
// over from markup formatting) into single spaces.
func CollapseWhitespace(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

var asciiStripper = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// Transliterate decomposes accented characters and drops anything that
// does not survive as plain ASCII.
func Transliterate(s string) string {
	out, _, err := transform.String(asciiStripper, s)
	if err != nil {
		return s
	}
	return out
}

var fileMaskRegex = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// FileSafeIdentity turns an arbitrary account identifier into a file name
// that neither collides across identities nor leaks characters a filesystem
// may reject. The readable prefix is best-effort; the md5 suffix is what
// guarantees uniqueness.
func FileSafeIdentity(identity string) string {
	hash := md5.Sum([]byte(identity))
	name := fileMaskRegex.ReplaceAllString(Transliterate(identity), "")
	return name + "_" + hex.EncodeToString(hash[:])
}
