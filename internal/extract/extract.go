// Package extract turns fetched listing and detail markup into detail links
// and normalized records. Record extraction is two-tiered: embedded JSON-LD
// job postings first, then per-field selector cascades for whatever the
// structured data left empty.
package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"jobhound/internal/crawler"
)

// DefaultDetailPatterns match the href shapes job boards use for detail
// pages. Matching is a case-insensitive substring test.
var DefaultDetailPatterns = []string{"/job/", "/jdp/", "/jd/", "/j/", "redirect?"}

// Config controls link recognition and the heuristic tier.
type Config struct {
	// DetailPatterns overrides DefaultDetailPatterns when non-empty.
	DetailPatterns []string
	// Selectors overrides individual field cascades; empty fields keep
	// their defaults.
	Selectors FieldSelectors
}

// Extractor implements crawler.LinkExtractor and crawler.RecordExtractor.
type Extractor struct {
	patterns  []string
	selectors compiledSelectors
	logger    *zap.Logger
}

// New builds an Extractor. Selectors that fail to compile are skipped with a
// warning so one bad configured selector cannot take the whole cascade down.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	patterns := cfg.DetailPatterns
	if len(patterns) == 0 {
		patterns = DefaultDetailPatterns
	}
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	return &Extractor{
		patterns:  lowered,
		selectors: compileSelectors(cfg.Selectors.withDefaults(), logger),
		logger:    logger,
	}
}

// Links collects anchors whose href matches a detail pattern, resolved
// against baseURL, normalized, and deduplicated in document order.
func (e *Extractor) Links(body []byte, baseURL string) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Debug("parse listing markup", zap.Error(err))
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || !e.matchesDetailPattern(href) {
			return
		}
		abs, err := crawler.ResolveLink(baseURL, href)
		if err != nil {
			return
		}
		normalized, err := crawler.NormalizeURL(abs)
		if err != nil {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	})
	return links
}

// Record maps detail markup to a Record. Tier 1 reads JSON-LD job postings;
// tier 2 fills remaining fields from selector cascades and never overwrites
// a tier-1 value. The caller applies the title-required gate.
func (e *Extractor) Record(body []byte, sourceURL string) crawler.Record {
	rec := crawler.Record{SourceURL: sourceURL}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Debug("parse detail markup", zap.Error(err), zap.String("url", sourceURL))
		return rec
	}

	e.applyStructured(body, doc, &rec)
	e.applyHeuristics(doc, &rec)

	if rec.DescriptionHTML != "" {
		rec.DescriptionHTML = SanitizeHTML(rec.DescriptionHTML)
		if rec.DescriptionText == "" {
			rec.DescriptionText = TextFromHTML(rec.DescriptionHTML)
		}
	}
	rec.DescriptionText = NormalizeWhitespace(rec.DescriptionText)
	return rec
}

func (e *Extractor) matchesDetailPattern(href string) bool {
	lowered := strings.ToLower(href)
	for _, p := range e.patterns {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}
