package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SanitizeHTML strips script, style, noscript and iframe elements from an
// HTML fragment. Descriptions are stored and re-rendered downstream, so
// executable content has no business surviving extraction.
func SanitizeHTML(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	doc.Find("script, style, noscript, iframe").Remove()
	out, err := doc.Find("body").Html()
	if err != nil {
		return fragment
	}
	return strings.TrimSpace(out)
}

// TextFromHTML renders an HTML fragment down to its visible text.
func TextFromHTML(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return NormalizeWhitespace(fragment)
	}
	return NormalizeWhitespace(doc.Text())
}

// NormalizeWhitespace collapses all runs of whitespace to single spaces and
// trims the ends.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
