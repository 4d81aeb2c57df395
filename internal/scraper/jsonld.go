package scraper

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// schema.org availability values that indicate in-stock
var inStockValues = []string{
	"instock",
	"in_stock",
	"instoreonly",
	"limitedavailability",
	"onlineonly",
	"presale",
}

// extractJSONLD finds schema.org Product data in the page's
// application/ld+json script tags. Returns nil if none is present.
func extractJSONLD(doc *goquery.Document) map[string]interface{} {
	var product map[string]interface{}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		var data interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}

		switch v := data.(type) {
		case []interface{}:
			for _, item := range v {
				if obj, ok := item.(map[string]interface{}); ok && isProductType(obj) {
					product = obj
					return false
				}
			}
		case map[string]interface{}:
			if isProductType(v) {
				product = v
				return false
			}
		}
		return true
	})

	return product
}

func isProductType(obj map[string]interface{}) bool {
	t, _ := obj["@type"].(string)
	return t == "Product" || t == "ProductGroup"
}

// parseJSONLDProduct converts schema.org Product data into a Result
func parseJSONLDProduct(data map[string]interface{}) *Result {
	result := &Result{Currency: "USD"}

	if name, ok := data["name"].(string); ok {
		result.Name = name
	}

	offers := firstObject(data["offers"])
	if offers == nil {
		return result
	}

	price := numericValue(offers["price"])
	currency, _ := offers["priceCurrency"].(string)

	// Some sites nest price under priceSpecification instead
	if price == nil || currency == "" {
		if spec := firstObject(offers["priceSpecification"]); spec != nil {
			if price == nil {
				price = numericValue(spec["price"])
			}
			if currency == "" {
				currency, _ = spec["priceCurrency"].(string)
			}
		}
	}

	result.Price = price
	if currency != "" {
		result.Currency = currency
	}

	if availability, ok := offers["availability"].(string); ok {
		result.Available = boolPtr(isInStock(availability))
	}

	return result
}

// firstObject unwraps a value that may be an object or a list of objects
func firstObject(v interface{}) map[string]interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return t
	case []interface{}:
		if len(t) > 0 {
			if obj, ok := t[0].(map[string]interface{}); ok {
				return obj
			}
		}
	}
	return nil
}

// numericValue reads a price that may be encoded as a number or a string
func numericValue(v interface{}) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		return parsePrice(t)
	}
	return nil
}

func isInStock(availability string) bool {
	lower := strings.ToLower(availability)
	for _, v := range inStockValues {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}
