package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"price-checker/internal/config"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoScraper is returned when no registered scraper can handle a URL.
// It is surfaced at product-add time; tracked products always resolve.
var ErrNoScraper = errors.New("no scraper can handle this URL")

// FetchError indicates the product page could not be retrieved
// (network failure, timeout or non-2xx response).
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError indicates the page was retrieved but the product data
// could not be extracted from it.
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failed for %s: %s", e.URL, e.Reason)
}

// Result holds the product data extracted from a page. A nil field means
// the scraper could not produce that value for this page.
type Result struct {
	Name      string
	Available *bool
	Price     *float64
	Currency  string
}

// Scraper extracts product data from a supported site
type Scraper interface {
	CanHandle(url string) bool
	Scrape(ctx context.Context, url string) (*Result, error)
}

// Registry holds all registered scrapers in registration order
type Registry struct {
	scrapers []Scraper
}

// NewRegistry creates a registry with all built-in site scrapers
func NewRegistry(cfg *config.ScrapeConfig) *Registry {
	client := newClient(cfg.Timeout)
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Registry{
		scrapers: []Scraper{
			NewUIStoreScraper(client, userAgent),
			NewAmazonScraper(client, userAgent),
			NewDellScraper(client, userAgent),
		},
	}
}

// Register appends a scraper to the registry. Scrapers are tried in
// registration order, first match wins.
func (r *Registry) Register(s Scraper) {
	r.scrapers = append(r.scrapers, s)
}

// Resolve finds the scraper for a URL or returns ErrNoScraper
func (r *Registry) Resolve(url string) (Scraper, error) {
	for _, s := range r.scrapers {
		if s.CanHandle(url) {
			return s, nil
		}
	}
	return nil, ErrNoScraper
}

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func newClient(timeout string) *http.Client {
	d, err := time.ParseDuration(timeout)
	if err != nil || d <= 0 {
		d = 30 * time.Second
	}
	return &http.Client{Timeout: d}
}

// fetchDocument retrieves a page and parses it. Network and HTTP status
// failures are wrapped in *FetchError.
func fetchDocument(ctx context.Context, client *http.Client, url, userAgent string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("status code %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &ParseError{URL: url, Reason: err.Error()}
	}

	return doc, nil
}

var priceRe = regexp.MustCompile(`[\d,]+\.?\d*`)

// parsePrice extracts a numeric price from display text like "$1,299.00"
func parsePrice(text string) *float64 {
	match := priceRe.FindString(text)
	if match == "" {
		return nil
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &value
}

func boolPtr(b bool) *bool {
	return &b
}
