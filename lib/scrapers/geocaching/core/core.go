package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/xificurk/pyggs/lib/restyutil"
	"github.com/xificurk/pyggs/lib/telemetry"
)

var tracer = otel.Tracer("lib/scrapers/geocaching/core")

const defaultLoginURL = "https://www.geocaching.com/login/default.aspx"

// notSignedInMarker appears in pages served to a visitor whose session
// cookies the site no longer accepts.
const notSignedInMarker = `<p class="NotSignedInText">`

const (
	maxLoginAttempts  = 2
	initialRetryDelay = time.Second
	maxRetryDelay     = 600 * time.Second
)

// Config carries the credentials and local state location for a client.
// Username and Password may be empty, in which case only anonymous
// fetches work.
type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// DataDir is where cookies, the user-agent string and request
	// stats are persisted between runs.
	DataDir string `json:"dataDir"`
	// MaxFetchAttempts caps how often a single request is retried after
	// transient failures. Zero retries indefinitely; cancel the context
	// to stop a run that cannot get through.
	MaxFetchAttempts int `json:"maxFetchAttempts"`
}

// FetchOptions control a single Fetch call.
type FetchOptions struct {
	// Auth requires a logged-in session for this request.
	Auth bool
	// Data, when non-nil, turns the request into a form POST.
	Data url.Values
}

// Client is a polite, resilient fetcher for geocaching.com. It owns the
// session lifecycle: cookies and a stable user-agent string persisted
// per identity, transparent login and re-login, adaptive politeness
// delays and retries with exponential backoff.
//
// All fetches are serialized through an internal mutex. The site tracks
// per-account request rates, so concurrent requests would only trip the
// throttling faster; callers may still share one Client across
// goroutines freely.
type Client struct {
	mu sync.Mutex
	// session carries the cookie jar of the logged-in account; anon
	// shares the same browser signature but never sends cookies, so
	// anonymous page and image traffic stays unlinked from the session.
	session  *resty.Client
	anon     *resty.Client
	limiter  *RateLimiter
	store    *SessionStore
	username string
	password string

	loginURL    string
	stats       map[string]int
	loggedIn    bool
	maxAttempts int

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a client from config, restoring any persisted session
// state for the configured identity.
func NewClient(config Config) *Client {
	store := NewSessionStore(config.DataDir, config.Username)
	limiter := NewRateLimiter(DefaultAvgInterval)

	headers := map[string]string{
		"User-Agent":      store.LoadUserAgent(),
		"Accept":          "text/xml,application/xml,application/xhtml+xml,text/html;q=0.9,text/plain;q=0.8",
		"Accept-Language": "en-us,en;q=0.5",
		"Accept-Charset":  "utf-8,*;q=0.5",
	}
	session := resty.New().
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeaders(headers)
	anon := resty.New().
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeaders(headers).
		SetCookieJar(nil)
	for _, c := range []*resty.Client{session, anon} {
		telemetry.InstrumentResty(c, "lib/scrapers/geocaching/core")
		restyutil.InstrumentClient(c, restyInstrumentOutput)
	}

	client := &Client{
		session:     session,
		anon:        anon,
		limiter:     limiter,
		store:       store,
		username:    config.Username,
		password:    config.Password,
		loginURL:    defaultLoginURL,
		maxAttempts: config.MaxFetchAttempts,
		sleep:       sleepContext,
	}
	if cookies := store.LoadCookies(); len(cookies) > 0 {
		client.seedCookies(cookies)
		for _, cookie := range cookies {
			if cookie.Name == "userid" {
				client.loggedIn = true
			}
		}
	}
	client.stats = store.LoadStats()
	limiter.Seed(TotalRequests(client.stats))
	return client
}

// Username returns the configured account name.
func (c *Client) Username() string {
	return c.username
}

// Fetch retrieves a page, handling politeness delays, retries, login and
// session renewal. It returns the page body as a string.
func (c *Client) Fetch(ctx context.Context, pageURL string, opts FetchOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", pageURL), attribute.Bool("auth", opts.Auth))

	body, err := c.fetch(ctx, pageURL, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return body, nil
}

// FetchDocument is Fetch followed by an HTML parse.
func (c *Client) FetchDocument(ctx context.Context, pageURL string, opts FetchOptions) (*goquery.Document, error) {
	body, err := c.Fetch(ctx, pageURL, opts)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}

// FetchRaw retrieves a resource without cookies, authentication or
// politeness delays. It is meant for static assets like generated
// images, where the site applies no per-account accounting.
func (c *Client) FetchRaw(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "FetchRaw")
	defer span.End()
	span.SetAttributes(attribute.String("url", rawURL))

	res, err := c.doWithRetry(ctx, func() (*resty.Response, error) {
		return c.anon.R().SetContext(ctx).Get(rawURL)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res.Body(), nil
}

func (c *Client) fetch(ctx context.Context, pageURL string, opts FetchOptions) (string, error) {
	if opts.Auth && !c.loggedIn {
		if err := c.login(ctx); err != nil {
			return "", err
		}
	}

	body, err := c.request(ctx, pageURL, opts)
	if err != nil {
		return "", err
	}

	if opts.Auth && strings.Contains(body, notSignedInMarker) {
		// the site dropped our session; renew it once and refetch
		slog.Warn("session expired, logging in again", "username", c.username)
		c.loggedIn = false
		if err := c.login(ctx); err != nil {
			return "", err
		}
		body, err = c.request(ctx, pageURL, opts)
		if err != nil {
			return "", err
		}
		if strings.Contains(body, notSignedInMarker) {
			return "", fmt.Errorf("%w: fresh session not accepted by %s", ErrLogin, pageURL)
		}
	}
	return body, nil
}

// request performs one rate-limited, retried round trip. Session traffic
// (opts.Auth) carries the account cookies and counts against the daily
// stats; anything else goes out cookie-less.
func (c *Client) request(ctx context.Context, pageURL string, opts FetchOptions) (string, error) {
	if err := c.limiter.Wait(ctx, opts.Auth); err != nil {
		return "", err
	}

	restyClient := c.anon
	if opts.Auth {
		restyClient = c.session
	}
	res, err := c.doWithRetry(ctx, func() (*resty.Response, error) {
		req := restyClient.R().SetContext(ctx)
		if opts.Data != nil {
			return req.SetFormDataFromValues(opts.Data).Post(pageURL)
		}
		return req.Get(pageURL)
	})
	if err != nil {
		return "", err
	}

	if opts.Auth {
		c.stats = c.store.BumpStats(c.stats)
		c.store.SaveCookies(c.sessionCookies())
	}
	return string(res.Body()), nil
}

// doWithRetry runs one request, sleeping with exponential backoff between
// attempts. Transport errors and server errors are retried; anything the
// server answered below 500 is final. Without an attempt ceiling the loop
// only ends on success or context cancellation.
func (c *Client) doWithRetry(ctx context.Context, do func() (*resty.Response, error)) (*resty.Response, error) {
	delay := initialRetryDelay
	var lastErr error
	for attempt := 1; ; attempt++ {
		res, err := do()
		switch {
		case err != nil:
			lastErr = err
		case res.StatusCode() >= http.StatusInternalServerError:
			lastErr = fmt.Errorf("server error: %s", res.Status())
		default:
			return res, nil
		}

		slog.Error("fetch attempt failed", "attempt", attempt, "err", lastErr)
		if c.maxAttempts > 0 && attempt >= c.maxAttempts {
			return nil, fmt.Errorf("fetch failed after %d attempts: %w", attempt, lastErr)
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay = min(delay*5, maxRetryDelay)
	}
}

// login establishes an authenticated session by replaying the login
// form. Success is decided by the site handing out a userid cookie.
func (c *Client) login(ctx context.Context) error {
	if c.username == "" || c.password == "" {
		return ErrCredentials
	}

	ctx, span := tracer.Start(ctx, "login")
	defer span.End()

	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		slog.Info("logging in to geocaching.com", "username", c.username, "attempt", attempt)
		err := c.loginOnce(ctx)
		if err == nil {
			c.loggedIn = true
			c.store.SaveCookies(c.sessionCookies())
			return nil
		}
		slog.Warn("login attempt failed", "attempt", attempt, "err", err)
		// a stale session can poison the form replay
		c.clearCookies()
	}

	span.SetStatus(codes.Error, "login failed")
	return ErrLogin
}

func (c *Client) loginOnce(ctx context.Context) error {
	// login traffic is session traffic: it must carry the jar and it
	// counts against the politeness budget like any account request
	page, err := c.request(ctx, c.loginURL, FetchOptions{Auth: true})
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return fmt.Errorf("parse login page: %w", err)
	}

	// replay every hidden field the form carries, the server rejects
	// submissions with a missing or stale state token
	form := url.Values{}
	doc.Find("input[type=hidden]").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok {
			return
		}
		value, _ := input.Attr("value")
		form.Set(name, value)
	})
	form.Set("ctl00$ContentBody$tbUsername", c.username)
	form.Set("ctl00$ContentBody$tbPassword", c.password)
	form.Set("ctl00$ContentBody$btnSignIn", "Login")
	form.Set("ctl00$ContentBody$cbRememberMe", "on")

	if _, err := c.request(ctx, c.loginURL, FetchOptions{Auth: true, Data: form}); err != nil {
		return err
	}
	for _, cookie := range c.sessionCookies() {
		if cookie.Name == "userid" {
			return nil
		}
	}
	return fmt.Errorf("userid cookie not granted")
}

// sessionCookies snapshots the cookies the jar would send to the site.
func (c *Client) sessionCookies() []*http.Cookie {
	jar := c.session.GetClient().Jar
	site, err := url.Parse(c.loginURL)
	if jar == nil || err != nil {
		return nil
	}
	return jar.Cookies(site)
}

func (c *Client) seedCookies(cookies []*http.Cookie) {
	jar := c.session.GetClient().Jar
	site, err := url.Parse(c.loginURL)
	if jar == nil || err != nil {
		return
	}
	jar.SetCookies(site, cookies)
}

func (c *Client) clearCookies() {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return
	}
	c.session.SetCookieJar(jar)
}
