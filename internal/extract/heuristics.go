package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"

	"jobhound/internal/crawler"
)

// FieldSelectors holds the CSS cascades tried, in order, for each record
// field that structured data left empty. Empty slices fall back to the
// built-in cascades; boards with stable markup can override per field.
type FieldSelectors struct {
	Title        []string
	Company      []string
	Location     []string
	Compensation []string
	PostedAt     []string
	Category     []string
	Description  []string
}

func (f FieldSelectors) withDefaults() FieldSelectors {
	or := func(own, fallback []string) []string {
		if len(own) > 0 {
			return own
		}
		return fallback
	}
	return FieldSelectors{
		Title: or(f.Title, []string{
			`h1`,
			`div[class*="position"]`,
			`a[data-qa*="vacancy-title"]`,
			`h2 a`,
		}),
		Company: or(f.Company, []string{
			`span[class*="company-name"]`,
			`div[data-test="company_name"]`,
			`div[class*="company"]`,
			`a[data-qa*="vacancy-company-name"]`,
			`span[data-qa*="company"]`,
		}),
		Location: or(f.Location, []string{
			`span[class*="location"]`,
			`div[class*="location"]`,
			`span[data-qa*="location"]`,
		}),
		Compensation: or(f.Compensation, []string{
			`div[class*="salary"]`,
			`span[class*="salary"]`,
			`span[data-qa*="salary"]`,
		}),
		PostedAt: or(f.PostedAt, []string{
			`span[class*="date"]`,
			`time`,
		}),
		Category: or(f.Category, []string{
			`span[class*="type"]`,
			`a[class*="tag"]`,
			`span[class*="tag"]`,
			`span[data-qa*="employment"]`,
			`span[data-qa*="schedule"]`,
		}),
		Description: or(f.Description, []string{
			`div[class*="description"]`,
			`div[class*="desc"]`,
			`div[data-qa*="vacancy-snippet"]`,
			`article`,
		}),
	}
}

type compiledSelectors struct {
	title        []cascadia.Selector
	company      []cascadia.Selector
	location     []cascadia.Selector
	compensation []cascadia.Selector
	postedAt     []cascadia.Selector
	category     []cascadia.Selector
	description  []cascadia.Selector
}

// compileSelectors compiles every cascade up front so a bad selector in
// config surfaces once at startup instead of panicking mid-crawl. Invalid
// entries are logged and skipped.
func compileSelectors(fs FieldSelectors, logger *zap.Logger) compiledSelectors {
	compile := func(field string, raw []string) []cascadia.Selector {
		out := make([]cascadia.Selector, 0, len(raw))
		for _, expr := range raw {
			sel, err := cascadia.Compile(expr)
			if err != nil {
				logger.Warn("skipping invalid selector",
					zap.String("field", field),
					zap.String("selector", expr),
					zap.Error(err),
				)
				continue
			}
			out = append(out, sel)
		}
		return out
	}
	return compiledSelectors{
		title:        compile("title", fs.Title),
		company:      compile("company", fs.Company),
		location:     compile("location", fs.Location),
		compensation: compile("compensation", fs.Compensation),
		postedAt:     compile("posted_at", fs.PostedAt),
		category:     compile("category", fs.Category),
		description:  compile("description", fs.Description),
	}
}

// applyHeuristics fills any field the structured tier left empty. Fields
// already populated are never overwritten.
func (e *Extractor) applyHeuristics(doc *goquery.Document, rec *crawler.Record) {
	if rec.Title == "" {
		rec.Title = firstText(doc, e.selectors.title)
	}
	if rec.Company == "" {
		rec.Company = firstText(doc, e.selectors.company)
	}
	if rec.Location == "" {
		rec.Location = firstText(doc, e.selectors.location)
	}
	if rec.Compensation == "" {
		rec.Compensation = firstText(doc, e.selectors.compensation)
	}
	if rec.PostedAt == "" {
		rec.PostedAt = firstText(doc, e.selectors.postedAt)
	}
	if rec.Category == "" {
		rec.Category = firstText(doc, e.selectors.category)
	}
	if rec.DescriptionHTML == "" {
		rec.DescriptionHTML = firstHTML(doc, e.selectors.description)
	}
}

// firstText returns the normalized text of the first element matched by the
// cascade, skipping matches whose text collapses to nothing.
func firstText(doc *goquery.Document, cascade []cascadia.Selector) string {
	for _, sel := range cascade {
		var found string
		doc.FindMatcher(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if text := NormalizeWhitespace(s.Text()); text != "" {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// firstHTML returns the inner HTML of the first non-empty match.
func firstHTML(doc *goquery.Document, cascade []cascadia.Selector) string {
	for _, sel := range cascade {
		var found string
		doc.FindMatcher(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			markup, err := s.Html()
			if err != nil || strings.TrimSpace(markup) == "" {
				return true
			}
			found = markup
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}
