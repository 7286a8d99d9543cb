package geocaching

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/xificurk/pyggs/lib/htmlutil"
	"github.com/xificurk/pyggs/lib/scrapers/geocaching/core"
	"github.com/xificurk/pyggs/lib/textutil"
)

// pagerEventTarget is the postback target that advances the result list
// to its next page.
const pagerEventTarget = "ctl00$ContentBody$pgrTop$ctl08"

// seekPageSize is how many rows the site puts on one result page.
const seekPageSize = 20

var (
	seekCacheLinkRegex = regexp.MustCompile(`by (.+?)\s*\|\s*(GC[A-Z0-9]+)\s*\|\s*(.+)`)
	seekDDRegex        = regexp.MustCompile(`(?i)/ImgGen/seek/CacheDir\.ashx\?k=([^'"&]+)`)
	seekDTSRegex       = regexp.MustCompile(`(?i)/ImgGen/seek/CacheInfo\.ashx\?v=([a-zA-Z0-9]+)`)
	daysAgoRegex       = regexp.MustCompile(`^([0-9]+) days? ago$`)
)

// Seek runs cache searches and parses the paged result list. With a
// resolver attached (NewSeekOCR) each row is additionally augmented
// with the values the site hides behind generated images: distance,
// direction, difficulty, terrain and container size.
type Seek struct {
	fetcher  Fetcher
	baseURL  string
	resolver *imageResolver

	now func() time.Time
}

func NewSeek(fetcher Fetcher) *Seek {
	return &Seek{fetcher: fetcher, baseURL: BaseURL, now: time.Now}
}

// Coord searches for caches within dist of a coordinate.
func (p *Seek) Coord(ctx context.Context, lat, lon float64, dist int) (*SeekResult, error) {
	query := fmt.Sprintf("origin_lat=%.5f&origin_long=%.5f&dist=%d&submit3=Search", lat, lon, dist)
	return p.Get(ctx, p.baseURL+"/seek/nearest.aspx?"+query)
}

// User searches for caches found by the named user.
func (p *Seek) User(ctx context.Context, user string) (*SeekResult, error) {
	query := url.Values{"ul": {user}, "submit4": {"Go"}}
	return p.Get(ctx, p.baseURL+"/seek/nearest.aspx?"+query.Encode())
}

// Owner searches for caches placed by the named user.
func (p *Seek) Owner(ctx context.Context, user string) (*SeekResult, error) {
	query := url.Values{"u": {user}, "submit4": {"Go"}}
	return p.Get(ctx, p.baseURL+"/seek/nearest.aspx?"+query.Encode())
}

// Get starts a search at the given result-list URL.
func (p *Seek) Get(ctx context.Context, searchURL string) (*SeekResult, error) {
	page, err := p.getPage(ctx, searchURL, nil)
	if err != nil {
		return nil, err
	}
	result := &SeekResult{
		seek:  p,
		url:   searchURL,
		post:  page.post,
		rows:  page.rows,
		total: page.total,
	}
	if len(result.rows) != result.total && len(result.rows) != seekPageSize {
		slog.Error("seek result page came up short",
			"got", len(result.rows), "total", result.total)
	}
	return result, nil
}

type seekPage struct {
	total int
	post  url.Values
	rows  []Record
}

func (p *Seek) getPage(ctx context.Context, searchURL string, post url.Values) (*seekPage, error) {
	body, err := p.fetcher.Fetch(ctx, searchURL, core.FetchOptions{Data: post})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse seek page: %w", err)
	}

	page := &seekPage{post: p.parsePostData(doc)}

	total := doc.Find("td.PageBuilderWidget b").First().Text()
	if n, err := strconv.Atoi(strings.TrimSpace(total)); err == nil {
		page.total = n
	} else {
		slog.Warn("total result count not found, assuming zero")
	}

	var ddCodes, dtsCodes []string
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 11 {
			return
		}
		record, ddCode, dtsCode := p.parseRow(cells)
		if record == nil {
			return
		}
		page.rows = append(page.rows, record)
		ddCodes = append(ddCodes, ddCode)
		dtsCodes = append(dtsCodes, dtsCode)
	})

	if p.resolver != nil {
		p.resolver.augment(ctx, page.rows, ddCodes, dtsCodes)
	}
	return page, nil
}

// parsePostData collects the hidden form state needed to replay the
// page as a pager postback.
func (p *Seek) parsePostData(doc *goquery.Document) url.Values {
	post := url.Values{}
	for name, value := range htmlutil.HiddenInputs(doc) {
		post.Set(name, value)
	}
	post.Set("__EVENTTARGET", pagerEventTarget)
	return post
}

// parseRow turns one result-list table row into a record plus the codes
// of its two generated images ("" when the row has none).
func (p *Seek) parseRow(cells *goquery.Selection) (Record, string, string) {
	nameCell := cells.Eq(5)
	link := nameCell.Find(`a[href*="cache_details.aspx?guid="]`).First()
	href, _ := link.Attr("href")
	guid := cacheGUIDRegex.FindStringSubmatch(href)
	if guid == nil {
		return nil, "", ""
	}

	cache := Record{
		"guid":     guid[1],
		"name":     strings.TrimSpace(link.Text()),
		"archived": link.HasClass("OldWarning"),
		"disabled": link.HasClass("Strike"),
	}

	// the byline spans several text nodes, so markup formatting can put
	// line breaks in the middle of it
	byline := textutil.CollapseWhitespace(nameCell.Text())
	if match := seekCacheLinkRegex.FindStringSubmatch(byline); match != nil {
		cache["owner"] = strings.TrimSpace(match[1])
		cache["waypoint"] = match[2]
		cache["province"], cache["country"] = splitLocation(match[3])
	} else {
		slog.Error("could not parse seek row byline", "guid", cache["guid"])
		for _, field := range []string{"owner", "waypoint", "province", "country"} {
			cache.SetMissing(field)
		}
	}

	if title := cells.Eq(4).Find(`img[src*="wpttypes"]`).AttrOr("title", ""); title != "" {
		cache["type"] = normalizeCacheType(strings.TrimSpace(title))
	} else {
		cache.SetMissing("type")
	}

	if hidden, ok := p.parseSeekDate(cells.Eq(8).Text()); ok {
		cache["hidden"] = hidden
	} else {
		cache.SetMissing("hidden")
	}
	if found, ok := p.parseSeekDate(cells.Eq(9).Text()); ok {
		cache["found"] = found
	} else {
		// explicitly never found, as opposed to a parse gap
		cache["found"] = ""
	}

	iconCell := cells.Eq(6)
	cache["PMonly"] = iconCell.Find(`img[alt="Premium Member Only Cache"]`).Length() > 0
	cache["items"] = iconCell.Find("a.tblist").Length() > 0

	favorites := strings.TrimSpace(cells.Eq(2).Find("span.favorite-rank").Text())
	if n, err := strconv.Atoi(favorites); err == nil {
		cache["favorites"] = n
	} else {
		cache["favorites"] = 0
	}

	ddHTML, _ := cells.Eq(1).Html()
	dtsHTML, _ := cells.Eq(7).Html()
	ddCode, dtsCode := "", ""
	if match := seekDDRegex.FindStringSubmatch(ddHTML); match != nil {
		ddCode = htmlutil.Unescape(match[1])
	}
	if match := seekDTSRegex.FindStringSubmatch(dtsHTML); match != nil {
		dtsCode = match[1]
	}
	return cache, ddCode, dtsCode
}

// parseSeekDate understands the absolute ("30 Oct 09") and relative
// ("2 days ago", "Yesterday", "Today") date forms the result list uses.
func (p *Seek) parseSeekDate(text string) (string, bool) {
	text = strings.TrimSpace(strings.ReplaceAll(text, " ", " "))
	switch text {
	case "":
		return "", false
	case "Today":
		return p.now().Format("2006-01-02"), true
	case "Yesterday":
		return p.now().AddDate(0, 0, -1).Format("2006-01-02"), true
	}
	if match := daysAgoRegex.FindStringSubmatch(text); match != nil {
		days, _ := strconv.Atoi(match[1])
		return p.now().AddDate(0, 0, -days).Format("2006-01-02"), true
	}
	if date, err := time.Parse("2 Jan 06", text); err == nil {
		return date.Format("2006-01-02"), true
	}
	return "", false
}

// SeekResult is the paged outcome of one search. Pages beyond the first
// are fetched on demand by replaying the stored postback data.
type SeekResult struct {
	seek  *Seek
	url   string
	post  url.Values
	rows  []Record
	total int

	cursor int
}

// Len returns the total number of results the site reported, which may
// exceed the number of rows fetched so far.
func (r *SeekResult) Len() int {
	return r.total
}

// Get returns the record at index, loading further pages as needed.
func (r *SeekResult) Get(ctx context.Context, index int) (Record, error) {
	if index < 0 || index >= r.total {
		return nil, fmt.Errorf("seek result index %d out of range (%d results)", index, r.total)
	}
	for index >= len(r.rows) {
		if err := r.loadNextPage(ctx); err != nil {
			return nil, err
		}
	}
	return r.rows[index], nil
}

// Next returns the next record in order, or ok=false after the last one.
func (r *SeekResult) Next(ctx context.Context) (Record, bool, error) {
	if r.cursor >= r.total {
		return nil, false, nil
	}
	record, err := r.Get(ctx, r.cursor)
	if err != nil {
		return nil, false, err
	}
	r.cursor++
	return record, true, nil
}

func (r *SeekResult) loadNextPage(ctx context.Context) error {
	before := len(r.rows)
	page, err := r.seek.getPage(ctx, r.url, r.post)
	if err != nil {
		return err
	}
	if len(page.rows) == 0 {
		return fmt.Errorf("seek result page %d returned no rows", before/seekPageSize+1)
	}
	if len(page.rows) != seekPageSize && before+len(page.rows) != r.total {
		slog.Error("seek result page came up short",
			"got", len(page.rows), "loaded", before+len(page.rows), "total", r.total)
	}
	r.post = page.post
	r.rows = append(r.rows, page.rows...)
	return nil
}
