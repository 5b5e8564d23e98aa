// Package corpus holds the immutable collection of content records the
// retrieval engine searches: articles, guides, pages, case studies and
// glossary terms. Records are loaded once at startup and never mutated.
package corpus

import (
	"fmt"
	"strings"
)

// Kind tags the variant of a Document.
type Kind string

const (
	KindArticle   Kind = "article"
	KindGuide     Kind = "guide"
	KindPage      Kind = "page"
	KindCaseStudy Kind = "case-study"
	KindGlossary  Kind = "glossary-term"
)

// Kinds lists every document kind in display order.
var Kinds = []Kind{KindArticle, KindGlossary, KindCaseStudy, KindGuide, KindPage}

// Case-study attribute names understood by the attribute matcher.
const (
	AttrPropertyType = "property_type"
	AttrCountry      = "country"
	AttrChallenge    = "challenge"
)

// CaseStudyAttributes lists the filterable case-study attributes.
var CaseStudyAttributes = []string{AttrPropertyType, AttrCountry, AttrChallenge}

// ParseKind accepts a kind name or one of the plural category names used by
// the content directories ("articles", "case_studies", ...).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "article", "articles":
		return KindArticle, nil
	case "guide", "guides":
		return KindGuide, nil
	case "page", "pages":
		return KindPage, nil
	case "case-study", "case_study", "case-studies", "case_studies", "casestudy":
		return KindCaseStudy, nil
	case "glossary-term", "glossary", "glossary_term", "term":
		return KindGlossary, nil
	default:
		return "", fmt.Errorf("unknown content kind %q", s)
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// CaseStudy is the structured payload of a case-study document.
type CaseStudy struct {
	PropertyType string   `json:"property_type,omitempty"`
	Country      string   `json:"country,omitempty"`
	Challenges   []string `json:"challenges,omitempty"`
}

// GlossaryEntry is the structured payload of a glossary-term document.
type GlossaryEntry struct {
	Term        string   `json:"term"`
	Synonyms    []string `json:"synonyms,omitempty"`
	Definition  string   `json:"definition"`
	Explanation string   `json:"explanation"`
}

// Document is a single content record. Exactly one of CaseStudy and Glossary
// is set for the corresponding kinds; both are nil otherwise.
type Document struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	URL         string         `json:"url,omitempty"`
	Description string         `json:"description,omitempty"`
	Chunks      []string       `json:"chunks,omitempty"`
	CaseStudy   *CaseStudy     `json:"case_study,omitempty"`
	Glossary    *GlossaryEntry `json:"glossary,omitempty"`
}

// IndexableText is the projection every kind shares for full-text indexing.
// The description stands in for the body when a record has no body text.
func (d *Document) IndexableText() (title, body string) {
	body = d.Body
	if strings.TrimSpace(body) == "" {
		body = d.Description
	}
	return d.Title, body
}

// Attributes returns the filterable attributes of a case study keyed by
// attribute name. Other kinds have none.
func (d *Document) Attributes() map[string][]string {
	if d.CaseStudy == nil {
		return nil
	}
	attrs := make(map[string][]string, len(CaseStudyAttributes))
	if d.CaseStudy.PropertyType != "" {
		attrs[AttrPropertyType] = []string{d.CaseStudy.PropertyType}
	}
	if d.CaseStudy.Country != "" {
		attrs[AttrCountry] = []string{d.CaseStudy.Country}
	}
	if len(d.CaseStudy.Challenges) > 0 {
		attrs[AttrChallenge] = d.CaseStudy.Challenges
	}
	return attrs
}

// Names returns the canonical glossary term followed by its synonyms.
func (d *Document) Names() []string {
	if d.Glossary == nil {
		return nil
	}
	names := make([]string, 0, 1+len(d.Glossary.Synonyms))
	if d.Glossary.Term != "" {
		names = append(names, d.Glossary.Term)
	}
	for _, syn := range d.Glossary.Synonyms {
		if strings.TrimSpace(syn) != "" {
			names = append(names, syn)
		}
	}
	return names
}
