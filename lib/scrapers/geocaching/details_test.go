package geocaching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const detailsPage = `<html><head>
<meta name="description" content="Pendulum - Prague Travel Bug Hotel (GCHCE0) was created by Saman on 12/23/2003. It&#39;s a Regular size geocache, with difficulty of 2, terrain of 2.5. It&#39;s located in Hlavni mesto Praha, Czech Republic. Literary - kinetic cache with the superb view." />
</head><body>
<a href="/about/cache_types.aspx" target="_blank"><img src="/images/WptTypes/8.gif" alt="Unknown Cache" width="32" height="32" /></a>
by <a href="http://www.geocaching.com/profile/?guid=ed7a2040-3bbb-485b-9b03-21ae8507d2d7&amp;wid=92322d1b-d354-4190-980e-8964d7740161&amp;ds=2">Saman</a>
<p class="OldWarning"><strong>Cache Issues:</strong></p><ul class="OldWarning"><li>This cache is temporarily unavailable. Read the logs below.</li></ul>
<span class="favorite-value">8</span>
<span id="ctl00_ContentBody_LatLon" style="font-weight:bold;">N 50&#176; 02.173 E 015&#176; 46.386</span>
<div class="UserSuppliedContent"><span id="ctl00_ContentBody_ShortDescription">Literary - kinetic cache</span></div>
<div class="UserSuppliedContent"><span id="ctl00_ContentBody_LongDescription"><p>A suitable place for travel bugs.</p></span></div>
<div id="div_hint" class="HalfLeft">
	Under the pendulum
</div>
<h3>Attributes</h3>
<div class="WidgetBody">
<img src="/images/attributes/wheelchair-no.gif" alt="not wheelchair accessible" title="not wheelchair accessible" />
<img src="/images/attributes/scenic-yes.gif" alt="scenic view" title="scenic view" />
<img src="/images/attributes/attribute-blank.gif" alt="blank" title="blank" />
</div>
<ul>
<li><a href="http://www.geocaching.com/track/details.aspx?guid=0eac9e5f-dc6c-4ec3-b1b7-4663245982ef" class="lnk"><img src="/images/wpttypes/sm/21.gif" width="16" /><span>Bob the Bug</span></a></li>
</ul>
<span id="ctl00_ContentBody_lblFindCounts"><p><img src="/images/icons/icon_smile.gif" alt="Found it" />113&nbsp;&nbsp;&nbsp;&nbsp;&nbsp;<img src="/images/icons/icon_note.gif" alt="Write note" />1,019&nbsp;&nbsp;&nbsp;&nbsp;&nbsp;</p></span>
<script type="text/javascript">
//<![CDATA[
initalLogs = {"data":[{"LogGuid":"lg-1","LogType":"Found it","Visited":"12/29/2010","UserName":"Alice","AccountGuid":"ag-1","LogText":"Great cache"}]};
//]]>
</script>
</body></html>`

func newTestDetails(page string) (*CacheDetails, *fakeFetcher) {
	fetcher := &fakeFetcher{pages: map[string]string{}}
	parser := NewCacheDetails(fetcher)
	parser.baseURL = "http://test"
	fetcher.pages["http://test/seek/cache_details.aspx?decrypt=y&guid=e78fd364-18f4-48dd-98c1-a8af910dfe76"] = page
	fetcher.pages["http://test/seek/cache_details.aspx?decrypt=y&wp=GCHCE0"] = page
	return parser, fetcher
}

func TestCacheDetailsGet(t *testing.T) {
	parser, _ := newTestDetails(detailsPage)

	details, err := parser.Get(context.Background(), "e78fd364-18f4-48dd-98c1-a8af910dfe76")
	require.NoError(t, err)

	require.Equal(t, "Pendulum - Prague Travel Bug Hotel", details.String("name"))
	require.Equal(t, "Saman", details.String("owner"))
	require.Equal(t, "GCHCE0", details.String("waypoint"))
	require.Equal(t, "2003-12-23", details.String("hidden"))
	require.Equal(t, "Regular", details.String("size"))
	require.Equal(t, 2.0, details.Float("difficulty"))
	require.Equal(t, 2.5, details.Float("terrain"))
	require.Equal(t, "Hlavni mesto Praha", details.String("province"))
	require.Equal(t, "Czech Republic", details.String("country"))
	require.Equal(t, "Mystery/Puzzle Cache", details.String("type"))
	require.Equal(t, "ed7a2040-3bbb-485b-9b03-21ae8507d2d7", details.String("owner_id"))
	require.Equal(t, "92322d1b-d354-4190-980e-8964d7740161", details.String("guid"))
	require.True(t, details.Bool("disabled"))
	require.False(t, details.Bool("archived"))
	require.False(t, details.Bool("PMonly"))
	require.Equal(t, 8, details.Int("favorites"))
	require.InDelta(t, 50.0+2.173/60, details.Float("lat"), 1e-9)
	require.InDelta(t, 15.0+46.386/60, details.Float("lon"), 1e-9)
	require.Contains(t, details.String("shortDesc"), "Literary - kinetic cache")
	require.Contains(t, details.String("longDesc"), "A suitable place for travel bugs.")
	require.Equal(t, "Under the pendulum", details.String("hint"))
	require.Equal(t, "not wheelchair accessible, scenic view", details.String("attributes"))
	require.Equal(t, map[string]string{"0eac9e5f-dc6c-4ec3-b1b7-4663245982ef": "Bob the Bug"}, details["inventory"])
	require.Equal(t, map[string]int{"Found it": 113, "Write note": 1019}, details["visits"])

	logs, ok := details["logs"].([]CacheLog)
	require.True(t, ok)
	require.Len(t, logs, 1)
	require.Equal(t, CacheLog{
		GUID:       "lg-1",
		Type:       "Found it",
		Date:       "2010-12-29",
		Finder:     "Alice",
		FinderGUID: "ag-1",
		Text:       "Great cache",
	}, logs[0])
}

func TestCacheDetailsGetByWaypoint(t *testing.T) {
	parser, _ := newTestDetails(detailsPage)

	details, err := parser.Get(context.Background(), "GCHCE0")
	require.NoError(t, err)
	require.Equal(t, "GCHCE0", details.String("waypoint"))
	require.Equal(t, "92322d1b-d354-4190-980e-8964d7740161", details.String("guid"))
}

func TestCacheDetailsMarksMissingFields(t *testing.T) {
	parser, fetcher := newTestDetails(detailsPage)
	fetcher.pages["http://test/seek/cache_details.aspx?decrypt=y&wp=GCHCE0"] = "<html><body>nothing here</body></html>"

	details, err := parser.Get(context.Background(), "GCHCE0")
	require.NoError(t, err)
	for _, field := range []string{"name", "owner", "type", "owner_id", "guid", "favorites", "lat", "lon"} {
		require.True(t, details.IsMissing(field), "field %q should be missing", field)
	}
	require.Equal(t, "GCHCE0", details.String("waypoint"))
}

const premiumOnlyPage = `<html><body>
<img src="/images/premium.gif" alt="Premium Members only" />
The owner of <strong>The first Czech premium member cache</strong> has chosen to make this cache listing visible to Premium Members only.
<span id="ctl00_ContentBody_uxCacheType">A cache by Pc-romeo</span>
<img src="/images/icons/container/regular.gif" alt="Size: Regular" />
<strong><span id="ctl00_ContentBody_lblDifficulty">Difficulty:</span></strong>
<img src="/images/stars/stars1.gif" alt="1 out of 5" />
<strong><span id="ctl00_ContentBody_lblTerrain">Terrain:</span></strong>
<img src="/images/stars/stars1_5.gif" alt="1.5 out of 5" />
<img id="ctl00_ContentBody_uxWptTypeImage" src="/images/wpttypes/2.gif" />
</body></html>`

func TestCacheDetailsPremiumOnly(t *testing.T) {
	parser, fetcher := newTestDetails(detailsPage)
	fetcher.pages["http://test/seek/cache_details.aspx?decrypt=y&wp=GC1A2B3"] = premiumOnlyPage

	details, err := parser.Get(context.Background(), "GC1A2B3")
	require.NoError(t, err)
	require.True(t, details.Bool("PMonly"))
	require.Equal(t, "The first Czech premium member cache", details.String("name"))
	require.Equal(t, "Pc-romeo", details.String("owner"))
	require.Equal(t, "Regular", details.String("size"))
	require.Equal(t, 1.0, details.Float("difficulty"))
	require.Equal(t, 1.5, details.Float("terrain"))
	require.Equal(t, "Traditional Cache", details.String("type"))
}
