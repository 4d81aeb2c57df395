package scraper

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var amazonPattern = regexp.MustCompile(`amazon\.(com|co\.uk|ca|de|fr|it|es|co\.jp|com\.au)`)

// AmazonScraper scrapes Amazon product pages
type AmazonScraper struct {
	client    *http.Client
	userAgent string
}

// NewAmazonScraper creates a new Amazon scraper
func NewAmazonScraper(client *http.Client, userAgent string) *AmazonScraper {
	return &AmazonScraper{client: client, userAgent: userAgent}
}

// CanHandle reports whether the URL points at an Amazon storefront
func (s *AmazonScraper) CanHandle(url string) bool {
	return amazonPattern.MatchString(url)
}

// Scrape extracts product data from an Amazon product page. Structured
// JSON-LD data is preferred; the well-known page elements are the fallback.
func (s *AmazonScraper) Scrape(ctx context.Context, url string) (*Result, error) {
	doc, err := fetchDocument(ctx, s.client, url, s.userAgent)
	if err != nil {
		return nil, err
	}

	if data := extractJSONLD(doc); data != nil {
		return parseJSONLDProduct(data), nil
	}

	return s.parseHTML(doc, url)
}

func (s *AmazonScraper) parseHTML(doc *goquery.Document, url string) (*Result, error) {
	result := &Result{Currency: "USD"}

	result.Name = strings.TrimSpace(doc.Find("#productTitle").First().Text())

	// Amazon renders the displayed price in .a-price .a-offscreen
	if priceText := doc.Find(".a-price .a-offscreen").First().Text(); priceText != "" {
		result.Price = parsePrice(priceText)
	}

	availText := strings.ToLower(strings.TrimSpace(doc.Find("#availability").First().Text()))
	switch {
	case strings.Contains(availText, "in stock"):
		result.Available = boolPtr(true)
	case strings.Contains(availText, "unavailable") || strings.Contains(availText, "out of stock"):
		result.Available = boolPtr(false)
	case doc.Find("#add-to-cart-button").Length() > 0:
		result.Available = boolPtr(true)
	}

	if result.Name == "" && result.Price == nil && result.Available == nil {
		return nil, &ParseError{URL: url, Reason: "no product data found in page"}
	}

	return result, nil
}
