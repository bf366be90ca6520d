// Package extraction derives structured product facts from raw message text.
// It is pure: no I/O, no state, identical input always yields identical output.
package extraction

import (
	"strconv"
	"strings"
)

// OtherCategory is the fallback label for text matching no product rule.
// Ranked reports exclude it.
const OtherCategory = "OTHER"

const (
	priceMarker = "Price"
	// The price window starts 6 bytes past the marker start and spans 10
	// bytes. This mirrors the warehouse's original extraction exactly,
	// including its quirks (first marker wins, mid-word markers match).
	priceOffset = 6
	priceWindow = 10
)

type rule struct {
	pattern  string
	category string
}

// Rule order is significant: patterns may overlap and the first match wins.
var rules = []rule{
	{"NIDO", "NIDO"},
	{"VITAMIN", "VITAMIN"},
	{"OLIVE OIL", "OLIVE OIL"},
	{"COCONUT", "COCONUT OIL"},
	{"MELATONIN", "MELATONIN"},
	{"Ashwagandha", "ASHWAGANDHA"},
}

// Fact is the derived (category, price) pair for one message text.
// Price is nil when no usable price was found.
type Fact struct {
	Category string
	Price    *int
}

// Extract derives the product category and price for the given text.
func Extract(text string) Fact {
	return Fact{
		Category: Categorize(text),
		Price:    ExtractPrice(text),
	}
}

// Categorize returns the first matching category, or OtherCategory.
// Matching is a case-insensitive substring test.
func Categorize(text string) string {
	upper := strings.ToUpper(text)
	for _, r := range rules {
		if strings.Contains(upper, strings.ToUpper(r.pattern)) {
			return r.category
		}
	}
	return OtherCategory
}

// ExtractPrice parses the leading integer of a fixed window following the
// first occurrence of the case-sensitive marker "Price". A missing marker,
// an out-of-bounds window, a non-numeric prefix, or a value of zero all
// count as "no price".
func ExtractPrice(text string) *int {
	idx := strings.Index(text, priceMarker)
	if idx < 0 {
		return nil
	}

	start := idx + priceOffset
	if start >= len(text) {
		return nil
	}
	end := start + priceWindow
	if end > len(text) {
		end = len(text)
	}
	window := strings.TrimLeft(text[start:end], " \t\r\n")

	digits := 0
	for digits < len(window) && window[digits] >= '0' && window[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return nil
	}

	price, err := strconv.Atoi(window[:digits])
	if err != nil || price == 0 {
		return nil
	}
	return &price
}
