package geocaching

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xificurk/pyggs/lib/scrapers/geocaching/core"
)

var (
	cacheGUIDRegex = regexp.MustCompile(`(?i)/seek/cache_details\.aspx\?guid=([a-z0-9-]+)`)
	logLUIDRegex   = regexp.MustCompile(`(?i)/seek/log\.aspx\?LUID=([a-z0-9-]+)`)
)

// MyLogs fetches and parses the authenticated user's own log list.
type MyLogs struct {
	fetcher Fetcher
	baseURL string
}

func NewMyLogs(fetcher Fetcher) *MyLogs {
	return &MyLogs{fetcher: fetcher, baseURL: BaseURL}
}

// Get returns the user's logs in chronological order. When logTypes is
// non-empty only logs of the listed types are returned.
func (p *MyLogs) Get(ctx context.Context, logTypes ...string) ([]LogItem, error) {
	body, err := p.fetcher.Fetch(ctx, p.baseURL+"/my/logs.aspx?s=1", core.FetchOptions{Auth: true})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse my logs page: %w", err)
	}

	expected := len(logLUIDRegex.FindAllString(body, -1))
	var logs []LogItem
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 6 {
			return
		}
		visitLink, _ := cells.Eq(5).Find("a").Attr("href")
		luid := logLUIDRegex.FindStringSubmatch(visitLink)
		if luid == nil {
			return
		}
		expected--

		logType := strings.TrimSpace(cells.Eq(0).Find("img").AttrOr("alt", ""))
		if len(logTypes) > 0 && !slices.Contains(logTypes, logType) {
			return
		}

		logs = append(logs, LogItem{
			LUID:  luid[1],
			Type:  logType,
			Date:  usDateToISO(strings.TrimSpace(cells.Eq(2).Text())),
			Cache: parseLogCacheCell(cells.Eq(3), cells.Eq(4)),
		})
	})
	if expected > 0 {
		slog.Error("some log rows could not be parsed", "missed", expected)
	}

	slices.Reverse(logs)
	return logs, nil
}

// GetFinds returns only the logs that count as finds.
func (p *MyLogs) GetFinds(ctx context.Context) ([]LogItem, error) {
	return p.Get(ctx, "Found it", "Webcam Photo Taken", "Attended")
}

// parseLogCacheCell extracts the cache reference embedded in one log
// row: type icon, details link, strike-through status and location.
func parseLogCacheCell(cacheCell, locationCell *goquery.Selection) Record {
	cache := Record{}

	if title := cacheCell.Find(`img[src*="wpttypes"]`).AttrOr("title", ""); title != "" {
		cache["type"] = normalizeCacheType(strings.TrimSpace(title))
	} else {
		cache.SetMissing("type")
	}

	var nameLink *goquery.Selection
	cacheCell.Find("a").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if cacheGUIDRegex.MatchString(href) && strings.TrimSpace(link.Text()) != "" {
			nameLink = link
		}
	})
	if nameLink == nil {
		cache.SetMissing("guid")
		cache.SetMissing("name")
		cache["disabled"] = false
		cache["archived"] = false
	} else {
		href, _ := nameLink.Attr("href")
		cache["guid"] = cacheGUIDRegex.FindStringSubmatch(href)[1]
		cache["name"] = strings.TrimSpace(nameLink.Text())
		strike := nameLink.Find("span.Strike")
		cache["disabled"] = strike.Length() > 0
		cache["archived"] = strike.HasClass("OldWarning")
	}

	cache["province"], cache["country"] = splitLocation(locationCell.Text())
	return cache
}

// splitLocation turns "Province, Country" into its parts; the province
// is optional.
func splitLocation(location string) (string, string) {
	location = strings.TrimSpace(strings.ReplaceAll(location, " ", " "))
	if province, country, ok := strings.Cut(location, ", "); ok {
		return strings.TrimSpace(province), strings.TrimSpace(country)
	}
	return "", location
}
