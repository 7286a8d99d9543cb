package geocaching

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/xificurk/pyggs/lib/scrapers/geocaching/core"
)

// fakeFetcher serves canned pages: GETs by URL, POSTs in sequence
// (recording the submitted form data), raw fetches by URL.
type fakeFetcher struct {
	mu sync.Mutex

	pages     map[string]string
	postPages []string
	posts     []url.Values

	rawPages map[string][]byte
	rawCalls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string, opts core.FetchOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if opts.Data != nil {
		f.posts = append(f.posts, opts.Data)
		if len(f.posts) > len(f.postPages) {
			return "", fmt.Errorf("unexpected POST %d to %s", len(f.posts), pageURL)
		}
		return f.postPages[len(f.posts)-1], nil
	}
	page, ok := f.pages[pageURL]
	if !ok {
		return "", fmt.Errorf("no fixture for %s", pageURL)
	}
	return page, nil
}

func (f *fakeFetcher) FetchRaw(_ context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rawCalls = append(f.rawCalls, rawURL)
	data, ok := f.rawPages[rawURL]
	if !ok {
		return nil, fmt.Errorf("no raw fixture for %s", rawURL)
	}
	return data, nil
}
