package scraper

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var uiStorePattern = regexp.MustCompile(`store\.ui\.com`)

// UIStoreScraper scrapes store.ui.com product pages. UI.com pages include
// JSON-LD structured data with full product information.
type UIStoreScraper struct {
	client    *http.Client
	userAgent string
}

// NewUIStoreScraper creates a new store.ui.com scraper
func NewUIStoreScraper(client *http.Client, userAgent string) *UIStoreScraper {
	return &UIStoreScraper{client: client, userAgent: userAgent}
}

// CanHandle reports whether the URL points at the UI.com store
func (s *UIStoreScraper) CanHandle(url string) bool {
	return uiStorePattern.MatchString(url)
}

// Scrape extracts product data from a UI.com store page
func (s *UIStoreScraper) Scrape(ctx context.Context, url string) (*Result, error) {
	doc, err := fetchDocument(ctx, s.client, url, s.userAgent)
	if err != nil {
		return nil, err
	}

	if data := extractJSONLD(doc); data != nil {
		return parseJSONLDProduct(data), nil
	}

	// Fallback: parse the page directly
	return s.parseHTML(doc, url)
}

var outOfStockRe = regexp.MustCompile(`(?i)out of stock|sold out|unavailable`)

func (s *UIStoreScraper) parseHTML(doc *goquery.Document, url string) (*Result, error) {
	result := &Result{Currency: "USD"}

	result.Name = strings.TrimSpace(doc.Find("h1").First().Text())

	doc.Find(`[class*="price"]`).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if price := parsePrice(sel.Text()); price != nil {
			result.Price = price
			return false
		}
		return true
	})

	// An enabled add-to-cart button means in stock; explicit out-of-stock
	// text overrides it
	available := false
	doc.Find("button, a").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(sel.Text()), "add to cart") {
			_, disabled := sel.Attr("disabled")
			available = !disabled
			return false
		}
		return true
	})
	if outOfStockRe.MatchString(doc.Text()) {
		available = false
	}
	result.Available = boolPtr(available)

	if result.Name == "" && result.Price == nil {
		return nil, &ParseError{URL: url, Reason: "no product data found in page"}
	}

	return result, nil
}
