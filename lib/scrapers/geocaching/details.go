package geocaching

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xificurk/pyggs/lib/htmlutil"
	"github.com/xificurk/pyggs/lib/scrapers/geocaching/core"
)

// BaseURL is the site root all page URLs hang off. Tests point it at a
// local server.
const BaseURL = "https://www.geocaching.com"

var (
	guidRegex     = regexp.MustCompile(`(?i)^[a-z0-9]+-[a-z0-9]+-[a-z0-9]+-[a-z0-9]+-[a-z0-9]+$`)
	waypointRegex = regexp.MustCompile(`GC[A-Z0-9]+`)

	// the meta description compresses the headline facts of a listing
	// into one machine-friendly sentence
	metaDetailsRegex = regexp.MustCompile(
		`^(.+) \(GC[A-Z0-9]+\) was created by (.+) on ([0-9]+)/([0-9]+)/([0-9]+)\. ` +
			`It['’]s a ([a-zA-Z ]+) size geocache, with difficulty of ([0-9.]+), terrain of ([0-9.]+)\. ` +
			`It['’]s located in (?:([^,.]+), )?([^.]+)\.`)

	ownerIDRegex = regexp.MustCompile(
		`by <a href=['"](?:https?://www\.geocaching\.com)?/profile/\?guid=([a-z0-9-]+)&(?:amp;)?wid=([a-z0-9-]+)&(?:amp;)?ds=2['"]`)
	disabledRegex  = regexp.MustCompile(`<li>This cache (has been archived|is temporarily unavailable)`)
	coordsRegex    = regexp.MustCompile(`([NS]) ([0-9]+)° ([0-9.]+) ([WE]) ([0-9]+)° ([0-9.]+)`)
	visitRegex     = regexp.MustCompile(`(?i)<img[^>]*alt="([^"]+)"[^>]*/?>\s*([0-9,]+)`)
	initialLogsRe  = regexp.MustCompile(`initalLogs = (.*);`)
	pmOnlyRegex    = regexp.MustCompile(`(?i)<img [^>]*alt=['"]Premium Members only['"][^>]*/?>\s*The owner of <strong>\s*([^<]+)\s*</strong> has chosen to make this cache listing visible to Premium Members only\.`)
	pmOwnerRegex   = regexp.MustCompile(`(?i)<span[^>]*>\s*A cache by ([^<]+)\s*</span>`)
	pmDiffRegex    = regexp.MustCompile(`(?is)<strong>\s*<span[^>]*>Difficulty:</span></strong>\s*<img [^>]*alt=['"]([0-9.]+) out of 5['"]`)
	pmTerrainRegex = regexp.MustCompile(`(?is)<strong>\s*<span[^>]*>Terrain:</span></strong>\s*<img [^>]*alt=['"]([0-9.]+) out of 5['"]`)
	pmTypeRegex    = regexp.MustCompile(`(?i)/images/wpttypes/(earthcache|mega|[0-9]+)\.gif`)
	trackGUIDRegex = regexp.MustCompile(`(?i)/track/details\.aspx\?guid=([a-z0-9-]+)`)
)

// cacheTypeIcons maps the waypoint-type icon names used on
// premium-member-only listings to canonical type names.
var cacheTypeIcons = map[string]string{
	"2":          "Traditional Cache",
	"3":          "Multi-cache",
	"4":          "Virtual Cache",
	"5":          "Letterbox Hybrid",
	"6":          "Event Cache",
	"8":          "Mystery/Puzzle Cache",
	"11":         "Webcam Cache",
	"13":         "Cache In Trash Out Event",
	"1858":       "Wherigo Cache",
	"3653":       "Lost and Found Event Cache",
	"earthcache": "Earthcache",
	"mega":       "Mega-Event Cache",
}

// CacheDetails fetches and parses a single cache listing.
type CacheDetails struct {
	fetcher Fetcher
	baseURL string
}

func NewCacheDetails(fetcher Fetcher) *CacheDetails {
	return &CacheDetails{fetcher: fetcher, baseURL: BaseURL}
}

// Get retrieves one cache listing by guid or waypoint. Fields the page
// did not yield are recorded with explicit missing markers; only fetch
// and parse failures surface as errors.
func (p *CacheDetails) Get(ctx context.Context, id string) (Record, error) {
	pageURL := p.baseURL + "/seek/cache_details.aspx?decrypt=y"
	byGUID := guidRegex.MatchString(id)
	if byGUID {
		pageURL += "&guid=" + url.QueryEscape(id)
	} else {
		pageURL += "&wp=" + url.QueryEscape(id)
	}

	body, err := p.fetcher.Fetch(ctx, pageURL, core.FetchOptions{Auth: true})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse cache details page: %w", err)
	}

	details := Record{}
	if byGUID {
		details["guid"] = id
	} else {
		details["waypoint"] = id
	}

	if match := pmOnlyRegex.FindStringSubmatch(body); match != nil {
		slog.Warn("premium member only cache", "id", id)
		details["PMonly"] = true
		p.parsePremiumOnly(details, body, match)
		return details, nil
	}

	details["PMonly"] = strings.Contains(body, "This is a Premium Member Only cache.")
	p.parseHeadline(details, doc, byGUID)
	p.parseStatus(details, body, doc)
	p.parseDescriptions(details, doc)
	p.parseExtras(details, body, doc)
	return details, nil
}

// parseHeadline fills the fields packed into the meta description plus
// the type icon and owner link.
func (p *CacheDetails) parseHeadline(details Record, doc *goquery.Document, byGUID bool) {
	meta, _ := doc.Find(`meta[name="description"]`).Attr("content")
	if match := metaDetailsRegex.FindStringSubmatch(meta); match != nil {
		details["name"] = strings.TrimSpace(match[1])
		details["owner"] = strings.TrimSpace(match[2])
		details["hidden"] = usDateToISO(match[3] + "/" + match[4] + "/" + match[5])
		details["size"] = strings.TrimSpace(match[6])
		details["difficulty"], _ = strconv.ParseFloat(match[7], 64)
		details["terrain"], _ = strconv.ParseFloat(match[8], 64)
		details["province"] = strings.TrimSpace(match[9])
		details["country"] = strings.TrimSpace(match[10])
	} else {
		slog.Error("could not parse cache headline", "id", details["guid"])
		for _, field := range []string{"name", "owner", "hidden", "size", "difficulty", "terrain", "province", "country"} {
			details.SetMissing(field)
		}
	}
	if byGUID {
		if wp := waypointRegex.FindString(meta); wp != "" {
			details["waypoint"] = wp
		} else {
			details.SetMissing("waypoint")
		}
	}

	cacheType := ""
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, _ := img.Attr("src")
		alt, _ := img.Attr("alt")
		if strings.Contains(strings.ToLower(src), "/wpttypes/") && alt != "" {
			cacheType = alt
			return false
		}
		return true
	})
	if cacheType != "" {
		details["type"] = normalizeCacheType(cacheType)
	} else {
		details.SetMissing("type")
	}
}

func (p *CacheDetails) parseStatus(details Record, body string, doc *goquery.Document) {
	if match := ownerIDRegex.FindStringSubmatch(body); match != nil {
		details["owner_id"] = match[1]
		details["guid"] = match[2]
	} else {
		details.SetMissing("owner_id")
		if _, ok := details["guid"]; !ok {
			details.SetMissing("guid")
		}
	}

	details["disabled"] = false
	details["archived"] = false
	if match := disabledRegex.FindStringSubmatch(body); match != nil {
		details["disabled"] = true
		details["archived"] = match[1] == "has been archived"
	}

	if favorites := strings.TrimSpace(doc.Find("span.favorite-value").First().Text()); favorites != "" {
		if n, err := strconv.Atoi(favorites); err == nil {
			details["favorites"] = n
		}
	}
	if _, ok := details["favorites"]; !ok {
		details.SetMissing("favorites")
	}

	latLon := doc.Find("#ctl00_ContentBody_LatLon").Text()
	if match := coordsRegex.FindStringSubmatch(latLon); match != nil {
		deg, _ := strconv.ParseFloat(match[2], 64)
		minutes, _ := strconv.ParseFloat(match[3], 64)
		lat := deg + minutes/60
		if match[1] == "S" {
			lat = -lat
		}
		deg, _ = strconv.ParseFloat(match[5], 64)
		minutes, _ = strconv.ParseFloat(match[6], 64)
		lon := deg + minutes/60
		if match[4] == "W" {
			lon = -lon
		}
		details["lat"] = lat
		details["lon"] = lon
	} else {
		details.SetMissing("lat")
		details.SetMissing("lon")
	}
}

func (p *CacheDetails) parseDescriptions(details Record, doc *goquery.Document) {
	short, _ := doc.Find("#ctl00_ContentBody_ShortDescription").Html()
	details["shortDescHTML"] = short
	details["shortDesc"] = htmlutil.CleanText(short)

	long, _ := doc.Find("#ctl00_ContentBody_LongDescription").Html()
	details["longDescHTML"] = long
	details["longDesc"] = htmlutil.CleanText(long)

	hint, _ := doc.Find("#div_hint").Html()
	details["hint"] = strings.TrimSpace(htmlutil.CleanText(hint))
}

func (p *CacheDetails) parseExtras(details Record, body string, doc *goquery.Document) {
	var attributes []string
	doc.Find(`img[src*="/attributes/"]`).Each(func(_ int, img *goquery.Selection) {
		title, _ := img.Attr("title")
		title = strings.TrimSpace(title)
		if title != "" && title != "blank" {
			attributes = append(attributes, title)
		}
	})
	details["attributes"] = strings.Join(attributes, ", ")

	inventory := map[string]string{}
	doc.Find(`a[href*="/track/details.aspx?guid="]`).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		match := trackGUIDRegex.FindStringSubmatch(href)
		name := strings.TrimSpace(link.Find("span").Text())
		if match != nil && name != "" {
			inventory[match[1]] = name
		}
	})
	details["inventory"] = inventory

	visits := map[string]int{}
	if counts, err := doc.Find("#ctl00_ContentBody_lblFindCounts").Html(); err == nil {
		for _, match := range visitRegex.FindAllStringSubmatch(counts, -1) {
			n, err := strconv.Atoi(strings.ReplaceAll(match[2], ",", ""))
			if err == nil {
				visits[htmlutil.Unescape(match[1])] = n
			}
		}
	}
	details["visits"] = visits

	details["logs"] = p.parseInitialLogs(body)
}

// parseInitialLogs picks up the log records the page embeds as a JSON
// blob for its own script.
func (p *CacheDetails) parseInitialLogs(body string) []CacheLog {
	match := initialLogsRe.FindStringSubmatch(body)
	if match == nil {
		return nil
	}
	var blob struct {
		Data []struct {
			LogGUID     string `json:"LogGuid"`
			LogType     string `json:"LogType"`
			Visited     string `json:"Visited"`
			UserName    string `json:"UserName"`
			AccountGUID string `json:"AccountGuid"`
			LogText     string `json:"LogText"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(match[1]), &blob); err != nil {
		slog.Error("could not decode embedded logs", "err", err)
		return nil
	}

	var logs []CacheLog
	for _, row := range blob.Data {
		logs = append(logs, CacheLog{
			GUID:       row.LogGUID,
			Type:       row.LogType,
			Date:       usDateToISO(row.Visited),
			Finder:     htmlutil.Unescape(row.UserName),
			FinderGUID: row.AccountGUID,
			Text:       htmlutil.CleanText(row.LogText),
		})
	}
	return logs
}

// parsePremiumOnly extracts the little a non-premium account is shown.
func (p *CacheDetails) parsePremiumOnly(details Record, body string, nameMatch []string) {
	details["name"] = htmlutil.Unescape(strings.TrimSpace(nameMatch[1]))

	if match := pmOwnerRegex.FindStringSubmatch(body); match != nil {
		details["owner"] = htmlutil.Unescape(strings.TrimSpace(match[1]))
	} else {
		details.SetMissing("owner")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return
	}

	size, _ := doc.Find(`img[alt^="Size: "]`).Attr("alt")
	if size != "" {
		details["size"] = strings.TrimSpace(strings.TrimPrefix(size, "Size: "))
	} else {
		details.SetMissing("size")
	}

	stars := func(re *regexp.Regexp, field string) {
		match := re.FindStringSubmatch(body)
		if match == nil {
			details.SetMissing(field)
			return
		}
		rating, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			details.SetMissing(field)
			return
		}
		details[field] = rating
	}
	stars(pmDiffRegex, "difficulty")
	stars(pmTerrainRegex, "terrain")

	typeIcon, _ := doc.Find("#ctl00_ContentBody_uxWptTypeImage").Attr("src")
	if match := pmTypeRegex.FindStringSubmatch(typeIcon); match != nil {
		if name, ok := cacheTypeIcons[match[1]]; ok {
			details["type"] = name
		}
	}
	if _, ok := details["type"]; !ok {
		details.SetMissing("type")
	}
}

// usDateToISO converts m/d/y to YYYY-MM-DD, returning the input
// untouched when it does not look like a US date.
func usDateToISO(date string) string {
	parts := strings.Split(date, "/")
	if len(parts) != 3 {
		return date
	}
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return date
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}
