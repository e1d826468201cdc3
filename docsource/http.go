package docsource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/shelfwatch/extract"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultUserAgent identifies shelfwatch to the sites it samples.
const DefaultUserAgent = "shelfwatch/1.0 (product price tracker)"

// DefaultTimeout bounds a single fetch.
const DefaultTimeout = 10 * time.Second

// HTTPOptions configures an HTTPProvider. Zero values take defaults; a zero
// RatePerSecond disables rate limiting.
type HTTPOptions struct {
	UserAgent     string
	Timeout       time.Duration
	URLTemplate   string
	RatePerSecond float64
	Client        *http.Client
	Logger        logrus.FieldLogger
}

// HTTPProvider fetches pages over HTTP, one request at a time per host when
// rate limited.
type HTTPProvider struct {
	client      *http.Client
	userAgent   string
	urlTemplate string
	limit       rate.Limit
	log         logrus.FieldLogger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPProvider creates a provider from opts.
func NewHTTPProvider(opts HTTPOptions) *HTTPProvider {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	template := opts.URLTemplate
	if template == "" {
		template = DefaultURLTemplate
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}

	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &HTTPProvider{
		client:      client,
		userAgent:   userAgent,
		urlTemplate: template,
		limit:       limit,
		log:         log,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Address returns the URL that Fetch would request for target.
func (p *HTTPProvider) Address(target Target) string {
	if target.URL != "" {
		return target.URL
	}
	return ExpandTemplate(p.urlTemplate, target.Identifier)
}

// Fetch downloads and parses the page for target.
func (p *HTTPProvider) Fetch(ctx context.Context, target Target) (*extract.Page, error) {
	address := p.Address(target)
	if address == "" {
		return nil, unavailable(target, "no address", nil)
	}

	parsed, err := url.Parse(address)
	if err != nil || parsed.Host == "" {
		return nil, unavailable(target, "invalid address", err)
	}

	if err := p.limiter(parsed.Host).Wait(ctx); err != nil {
		return nil, unavailable(target, "rate limit wait", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return nil, unavailable(target, "failed to create request", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	p.log.WithFields(logrus.Fields{"url": address}).Debug("fetching document")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, unavailable(target, "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unavailable(target, fmt.Sprintf("HTTP error: %s", resp.Status), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, unavailable(target, "failed to parse HTML", err)
	}

	// Redirects may land on the canonical detail address, which carries the
	// identifier.
	final := address
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}

	return extract.NewPage(final, doc), nil
}

func (p *HTTPProvider) limiter(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[host]
	if !ok {
		l = rate.NewLimiter(p.limit, 1)
		p.limiters[host] = l
	}
	return l
}
