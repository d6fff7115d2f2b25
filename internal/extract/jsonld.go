package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobhound/internal/crawler"
)

// jobPosting mirrors the schema.org JobPosting fields we consume. Fields the
// site leaves out unmarshal to zero values and are simply skipped.
type jobPosting struct {
	Type               anyString     `json:"@type"`
	Graph              []jobPosting  `json:"@graph"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	DatePosted         string        `json:"datePosted"`
	EmploymentType     anyString     `json:"employmentType"`
	HiringOrganization *organization `json:"hiringOrganization"`
	JobLocation        anyPlaces     `json:"jobLocation"`
	BaseSalary         *salary       `json:"baseSalary"`
}

type organization struct {
	Name string `json:"name"`
}

type place struct {
	Address *address `json:"address"`
}

type address struct {
	AddressLocality string `json:"addressLocality"`
	AddressRegion   string `json:"addressRegion"`
	AddressCountry  string `json:"addressCountry"`
}

type salary struct {
	Currency string       `json:"currency"`
	Value    *salaryValue `json:"value"`
}

type salaryValue struct {
	Value    json.Number `json:"value"`
	MinValue json.Number `json:"minValue"`
	MaxValue json.Number `json:"maxValue"`
	UnitText string      `json:"unitText"`
}

// applyStructured scans ld+json blocks for JobPosting objects and maps the
// first match into rec. Structured values win over anything tier 2 would
// find later.
func (e *Extractor) applyStructured(body []byte, doc *goquery.Document, rec *crawler.Record) {
	applied := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}
		posting, ok := decodeJobPosting([]byte(raw))
		if !ok {
			return true
		}
		mapPosting(posting, rec)
		applied = true
		return false
	})
	if applied {
		return
	}
	// Publishers sometimes leave an unescaped </script> inside a JSON-LD
	// string value; the HTML tokenizer then ends the script element there and
	// the DOM hands back truncated JSON. The raw bytes still carry the intact
	// value, so rescan them before giving up on tier 1.
	if posting, ok := decodeRawJSONLD(body); ok {
		mapPosting(posting, rec)
	}
}

const ldJSONType = "application/ld+json"

// decodeRawJSONLD walks the unparsed markup for ld+json script elements and
// decodes the first JobPosting it finds.
func decodeRawJSONLD(body []byte) (jobPosting, bool) {
	rest := body
	for {
		idx := bytes.Index(rest, []byte(ldJSONType))
		if idx < 0 {
			return jobPosting{}, false
		}
		rest = rest[idx+len(ldJSONType):]
		gt := bytes.IndexByte(rest, '>')
		if gt < 0 {
			return jobPosting{}, false
		}
		if p, ok := decodeJobPosting(rest[gt+1:]); ok {
			return p, true
		}
	}
}

// decodeJobPosting accepts a bare object, an array of objects, or a @graph
// wrapper, and returns the first JobPosting-typed entry. Trailing bytes after
// the JSON value (a closing script tag, the rest of the document) are
// ignored.
func decodeJobPosting(raw []byte) (jobPosting, bool) {
	var single jobPosting
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&single); err == nil {
		if p, ok := findPosting(single); ok {
			return p, true
		}
	}
	var many []jobPosting
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&many); err == nil {
		for _, entry := range many {
			if p, ok := findPosting(entry); ok {
				return p, true
			}
		}
	}
	return jobPosting{}, false
}

func findPosting(p jobPosting) (jobPosting, bool) {
	if p.Type.contains("JobPosting") {
		return p, true
	}
	for _, nested := range p.Graph {
		if nested.Type.contains("JobPosting") {
			return nested, true
		}
	}
	return jobPosting{}, false
}

func mapPosting(p jobPosting, rec *crawler.Record) {
	if title := NormalizeWhitespace(p.Title); title != "" {
		rec.Title = title
	}
	if p.HiringOrganization != nil {
		if name := NormalizeWhitespace(p.HiringOrganization.Name); name != "" {
			rec.Company = name
		}
	}
	if loc := p.JobLocation.display(); loc != "" {
		rec.Location = loc
	}
	if p.BaseSalary != nil {
		if comp := p.BaseSalary.display(); comp != "" {
			rec.Compensation = comp
		}
	}
	if posted := strings.TrimSpace(p.DatePosted); posted != "" {
		rec.PostedAt = posted
	}
	if kinds := p.EmploymentType.join("/"); kinds != "" {
		rec.Category = kinds
	}
	if desc := strings.TrimSpace(p.Description); desc != "" {
		rec.DescriptionHTML = desc
	}
}

func (s *salary) display() string {
	if s == nil || s.Value == nil {
		return ""
	}
	v := s.Value
	var amount string
	switch {
	case v.MinValue != "" && v.MaxValue != "":
		amount = string(v.MinValue) + "-" + string(v.MaxValue)
	case v.Value != "":
		amount = string(v.Value)
	case v.MinValue != "":
		amount = string(v.MinValue)
	case v.MaxValue != "":
		amount = string(v.MaxValue)
	default:
		return ""
	}
	parts := []string{amount}
	if s.Currency != "" {
		parts = append(parts, s.Currency)
	}
	if v.UnitText != "" {
		parts = append(parts, "per "+strings.ToLower(v.UnitText))
	}
	return strings.Join(parts, " ")
}

// anyString tolerates schema.org values that are either a string or an array
// of strings.
type anyString []string

func (a *anyString) UnmarshalJSON(raw []byte) error {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		*a = anyString{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		*a = anyString(many)
		return nil
	}
	// Tolerate unexpected shapes rather than failing the whole block.
	*a = nil
	return nil
}

func (a anyString) contains(want string) bool {
	for _, v := range a {
		if strings.EqualFold(strings.TrimSpace(v), want) {
			return true
		}
	}
	return false
}

func (a anyString) join(sep string) string {
	parts := make([]string, 0, len(a))
	for _, v := range a {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}

// anyPlaces tolerates jobLocation given as one place or an array.
type anyPlaces []place

func (a *anyPlaces) UnmarshalJSON(raw []byte) error {
	var one place
	if err := json.Unmarshal(raw, &one); err == nil && one.Address != nil {
		*a = anyPlaces{one}
		return nil
	}
	var many []place
	if err := json.Unmarshal(raw, &many); err == nil {
		*a = anyPlaces(many)
		return nil
	}
	*a = nil
	return nil
}

func (a anyPlaces) display() string {
	for _, pl := range a {
		if pl.Address == nil {
			continue
		}
		parts := make([]string, 0, 3)
		for _, part := range []string{pl.Address.AddressLocality, pl.Address.AddressRegion, pl.Address.AddressCountry} {
			if part = NormalizeWhitespace(part); part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", ")
		}
	}
	return ""
}
