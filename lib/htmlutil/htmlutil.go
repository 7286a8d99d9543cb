package htmlutil

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// HiddenInputs collects the name/value pairs of hidden form inputs. The
// values are replayed verbatim on form submissions (anti-CSRF tokens,
// viewstate blobs and the like).
func HiddenInputs(doc *goquery.Document) map[string]string {
	inputs := map[string]string{}
	doc.Find("input[type=hidden]").Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("name")
		if !ok || name == "" {
			return
		}
		inputs[name] = sel.AttrOr("value", "")
	})
	return inputs
}

var (
	htmlParagraph = regexp.MustCompile(`(?i)<p[^>]*>`)
	htmlBreak     = regexp.MustCompile(`(?i)<br[^>]*>`)
	htmlListItem  = regexp.MustCompile(`(?i)<li[^>]*>`)
	htmlHeading   = regexp.MustCompile(`(?i)</?h[0-9][^>]*>`)
	htmlImageAlt  = regexp.MustCompile(`(?i)<img[^>]*alt=['"]([^'"]+)['"][^>]*>`)
	htmlImage     = regexp.MustCompile(`(?i)<img[^>]*>`)
	htmlTag       = regexp.MustCompile(`(?i)<[^>]*>`)
	blankLines    = regexp.MustCompile(`(?m)^\s+|\s+$|^\s*$\n`)
	doubleSpace   = regexp.MustCompile(`[ \t][ \t]+`)
)

// CleanText flattens a fragment of user-supplied markup into readable plain
// text: paragraphs and list items become line prefixes, images collapse to
// their alt text, everything else is stripped and entities are unescaped.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = htmlParagraph.ReplaceAllString(text, "\n** ")
	text = htmlBreak.ReplaceAllString(text, "\n")
	text = htmlListItem.ReplaceAllString(text, "\n - ")
	text = htmlHeading.ReplaceAllString(text, "\n")
	text = htmlImageAlt.ReplaceAllString(text, "[img $1]")
	text = htmlImage.ReplaceAllString(text, "[img]")
	text = htmlTag.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = blankLines.ReplaceAllString(text, "")
	text = doubleSpace.ReplaceAllString(text, " ")
	return text
}

// Unescape resolves HTML entities in text scraped out of attribute values.
func Unescape(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}
