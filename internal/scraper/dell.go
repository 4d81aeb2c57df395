package scraper

import (
	"context"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var dellPattern = regexp.MustCompile(`dell\.com`)

// DellScraper scrapes Dell product pages (servers and other products)
type DellScraper struct {
	client    *http.Client
	userAgent string
}

// NewDellScraper creates a new Dell scraper
func NewDellScraper(client *http.Client, userAgent string) *DellScraper {
	return &DellScraper{client: client, userAgent: userAgent}
}

// CanHandle reports whether the URL points at dell.com
func (s *DellScraper) CanHandle(url string) bool {
	return dellPattern.MatchString(url)
}

// Scrape extracts product data from a Dell page. Dell renders most
// product pages client-side, so JSON-LD and meta tags are the only
// reliable sources; pages that carry neither produce a parse error.
func (s *DellScraper) Scrape(ctx context.Context, url string) (*Result, error) {
	doc, err := fetchDocument(ctx, s.client, url, s.userAgent)
	if err != nil {
		return nil, err
	}

	if data := extractJSONLD(doc); data != nil {
		return parseJSONLDProduct(data), nil
	}

	return s.parseMeta(doc, url)
}

func (s *DellScraper) parseMeta(doc *goquery.Document, url string) (*Result, error) {
	result := &Result{Currency: "USD"}

	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		result.Name = strings.TrimSpace(title)
	}
	if result.Name == "" {
		result.Name = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	if amount, ok := doc.Find(`meta[property="og:price:amount"], meta[property="product:price:amount"]`).Attr("content"); ok {
		result.Price = parsePrice(amount)
	}
	if currency, ok := doc.Find(`meta[property="og:price:currency"], meta[property="product:price:currency"]`).Attr("content"); ok && currency != "" {
		result.Currency = currency
	}

	if avail, ok := doc.Find(`meta[property="product:availability"]`).Attr("content"); ok {
		result.Available = boolPtr(isInStock(avail))
	}

	if result.Price == nil && result.Available == nil {
		log.Printf("Dell scraper could not extract data from %s (page likely requires JS, scripts=%d)",
			url, doc.Find("script").Length())
		return nil, &ParseError{URL: url, Reason: "no structured product data in page"}
	}

	return result, nil
}
