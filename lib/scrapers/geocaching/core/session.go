package core

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xificurk/pyggs/lib/textutil"
)

// statsWindow is how far back per-day request stats are kept.
const statsWindow = 93 * 24 * time.Hour

const statsDateLayout = "2006-01-02"

// SessionStore persists per-identity session artifacts (cookies, the
// stable browser user-agent string and daily request stats) under a data
// directory. Files are named by a filesystem-safe transliteration of the
// identity plus a content hash, so distinct identities never collide and
// the raw identity never appears on disk.
//
// All loads are permissive: missing or corrupt state simply means the
// session starts fresh. Writes log and continue on failure, because a
// broken disk must not take down a running harvest.
type SessionStore struct {
	dataDir  string
	identity string

	now func() time.Time
}

// NewSessionStore creates a store rooted at dataDir. When dataDir does
// not exist the store still works, it just never persists anything.
func NewSessionStore(dataDir, identity string) *SessionStore {
	if dataDir != "" {
		if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
			slog.Warn("data directory not found, session persistence disabled", "dir", dataDir)
			dataDir = ""
		}
	}
	return &SessionStore{dataDir: dataDir, identity: identity, now: time.Now}
}

func (s *SessionStore) path(ext string) string {
	if s.dataDir == "" || s.identity == "" {
		return ""
	}
	return filepath.Join(s.dataDir, textutil.FileSafeIdentity(s.identity)+ext)
}

type persistedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Domain  string    `json:"domain,omitempty"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

// LoadCookies returns the persisted cookie set, dropping entries that
// have expired in the meantime. It returns nil when there is no usable
// state.
func (s *SessionStore) LoadCookies() []*http.Cookie {
	path := s.path(".cookies")
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var persisted []persistedCookie
	if err := json.Unmarshal(data, &persisted); err != nil {
		slog.Warn("discarding corrupt cookie file", "path", path, "err", err)
		return nil
	}
	now := s.now()
	var cookies []*http.Cookie
	for _, c := range persisted {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Domain:  c.Domain,
			Path:    c.Path,
			Expires: c.Expires,
		})
	}
	return cookies
}

// SaveCookies overwrites the persisted cookie set.
func (s *SessionStore) SaveCookies(cookies []*http.Cookie) {
	path := s.path(".cookies")
	if path == "" {
		return
	}
	persisted := make([]persistedCookie, 0, len(cookies))
	for _, c := range cookies {
		persisted = append(persisted, persistedCookie{
			Name:    c.Name,
			Value:   c.Value,
			Domain:  c.Domain,
			Path:    c.Path,
			Expires: c.Expires,
		})
	}
	data, err := json.MarshalIndent(persisted, "", "  ")
	if err == nil {
		err = os.WriteFile(path, data, 0o600)
	}
	if err != nil {
		slog.Warn("could not save cookies", "path", path, "err", err)
	}
}

// LoadUserAgent returns the persisted user-agent string for this
// identity, generating and saving a fresh one on first use. A session is
// only plausible to the site when the same browser signature accompanies
// the same cookies across runs.
func (s *SessionStore) LoadUserAgent() string {
	path := s.path(".ua")
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if ua := strings.TrimSpace(string(data)); ua != "" {
				return ua
			}
		}
	}
	ua := generateUserAgent(randRange)
	if path != "" {
		if err := os.WriteFile(path, []byte(ua), 0o600); err != nil {
			slog.Warn("could not save user agent", "path", path, "err", err)
		}
	}
	return ua
}

// generateUserAgent assembles a plausible desktop Firefox 3.0 signature
// from randomized platform, build date and patch level parts.
func generateUserAgent(randInt func(min, max int) int) string {
	var system, systemVersion string
	switch randInt(1, 5) {
	case 1:
		system = "X11"
		variants := []string{"Linux i686", "Linux x86_64"}
		systemVersion = variants[randInt(0, len(variants)-1)]
	case 2:
		system = "Macintosh"
		systemVersion = "PPC Mac OS X 10.5"
	default:
		system = "Windows"
		variants := []string{"Windows NT 5.1", "Windows NT 6.0", "Windows NT 6.1"}
		systemVersion = variants[randInt(0, len(variants)-1)]
	}
	patch := randInt(1, 13)
	buildDate := fmt.Sprintf("200907%02d%02d", randInt(1, 31), randInt(1, 23))
	return fmt.Sprintf("Mozilla/5.0 (%s; U; %s; en-US; rv:1.9.0.%d) Gecko/%s Firefox/3.0.%d",
		system, systemVersion, patch, buildDate, patch)
}

// LoadStats returns the per-day authenticated request counts recorded
// for this identity, dropping days outside the retention window.
func (s *SessionStore) LoadStats() map[string]int {
	stats := map[string]int{}
	path := s.path(".stats")
	if path == "" {
		return stats
	}
	file, err := os.Open(path)
	if err != nil {
		return stats
	}
	defer file.Close()

	horizon := s.now().Add(-statsWindow)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		day, count, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "\t")
		if !ok {
			continue
		}
		date, err := time.Parse(statsDateLayout, day)
		if err != nil || date.Before(horizon) {
			continue
		}
		n, err := strconv.Atoi(count)
		if err != nil {
			continue
		}
		stats[day] = n
	}
	return stats
}

// SaveStats overwrites the persisted per-day request counts.
func (s *SessionStore) SaveStats(stats map[string]int) {
	path := s.path(".stats")
	if path == "" {
		return
	}
	var sb strings.Builder
	for day, count := range stats {
		fmt.Fprintf(&sb, "%s\t%d\n", day, count)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		slog.Warn("could not save request stats", "path", path, "err", err)
	}
}

// BumpStats increments today's request count and persists the result.
// It returns the updated stats map.
func (s *SessionStore) BumpStats(stats map[string]int) map[string]int {
	if stats == nil {
		stats = map[string]int{}
	}
	stats[s.now().Format(statsDateLayout)]++
	s.SaveStats(stats)
	return stats
}

// TotalRequests sums the per-day counts, which seeds the rate limiter
// after a restart.
func TotalRequests(stats map[string]int) int {
	total := 0
	for _, n := range stats {
		total += n
	}
	return total
}
