// Package casestudy finds customer case studies by categorical attributes
// (property type, country, challenge) and optional free text.
//
// Scoring: every supplied filter a case study satisfies adds FilterWeight;
// free text adds the cosine similarity of the text against the study in the
// shared TF-IDF index. With at least one filter, studies matching none are
// excluded. With free text only, studies below the similarity floor are
// excluded. With neither, every study is returned with score 0 in id order.
package casestudy

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/errors"
)

const DefaultFilterWeight = 1.0

var attributeAliases = map[string]string{
	"property_type": corpus.AttrPropertyType,
	"propertytype":  corpus.AttrPropertyType,
	"property":      corpus.AttrPropertyType,
	"country":       corpus.AttrCountry,
	"challenge":     corpus.AttrChallenge,
	"challenges":    corpus.AttrChallenge,
}

// Match is one scored case study.
type Match struct {
	Doc            *corpus.Document `json:"-"`
	ID             string           `json:"id"`
	Score          float64          `json:"score"`
	Similarity     float64          `json:"similarity"`
	MatchedFilters []string         `json:"matched_filters"`
}

type Matcher struct {
	studies      []*corpus.Document
	byID         map[string]*corpus.Document
	index        *index.Index
	filterWeight float64
	logger       *slog.Logger
}

// NewMatcher indexes the case studies of store. ix supplies free-text
// similarity and must have been built from the same store.
func NewMatcher(store *corpus.Store, ix *index.Index, filterWeight float64) *Matcher {
	if filterWeight <= 0 {
		filterWeight = DefaultFilterWeight
	}
	studies := store.ByKind(corpus.KindCaseStudy)
	byID := make(map[string]*corpus.Document, len(studies))
	for _, d := range studies {
		byID[d.ID] = d
	}
	return &Matcher{
		studies:      studies,
		byID:         byID,
		index:        ix,
		filterWeight: filterWeight,
		logger:       slog.Default().With("component", "casestudy-matcher"),
	}
}

// NormalizeFilters validates filter names and lower-cases and trims names
// and values. Filters with blank values are dropped.
func NormalizeFilters(filters map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(filters))
	for name, value := range filters {
		key := strings.ToLower(strings.TrimSpace(name))
		attr, ok := attributeAliases[key]
		if !ok {
			return nil, apperrors.InvalidArgument("unknown case study filter %q (supported: %s)",
				name, strings.Join(corpus.CaseStudyAttributes, ", "))
		}
		v := normalizeValue(value)
		if v == "" {
			continue
		}
		out[attr] = v
	}
	return out, nil
}

// IsBrowse reports whether a request carries neither filters nor free text,
// in which case Find returns an unranked listing.
func IsBrowse(filters map[string]string, freeText string) bool {
	for _, v := range filters {
		if normalizeValue(v) != "" {
			return false
		}
	}
	return strings.TrimSpace(freeText) == ""
}

// Find scores case studies against filters and freeText and returns at most
// topK matches ordered by score, then text overlap, then id.
func (m *Matcher) Find(filters map[string]string, freeText string, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, apperrors.InvalidArgument("top_k must be positive, got %d", topK)
	}
	active, err := NormalizeFilters(filters)
	if err != nil {
		return nil, err
	}

	hasText := strings.TrimSpace(freeText) != ""
	var vec index.Vector
	if hasText {
		vec = m.index.Vectorize(freeText)
	}
	floor := m.index.MinSimilarity()

	scored := make([]ranker.Result, 0, len(m.studies))
	matchedBy := make(map[string][]string)
	simBy := make(map[string]float64)
	for _, doc := range m.studies {
		matched := matchFilters(doc, active)
		if len(active) > 0 && len(matched) == 0 {
			continue
		}

		var sim float64
		var overlap int
		if hasText {
			sim, overlap = m.index.Score(vec, doc.ID)
			if sim < floor || sim == 0 {
				if len(active) == 0 {
					continue
				}
				// Below the noise floor the text contributes nothing.
				sim, overlap = 0, 0
			}
		}

		scored = append(scored, ranker.Result{
			DocID:   doc.ID,
			Score:   float64(len(matched))*m.filterWeight + sim,
			Overlap: overlap,
		})
		matchedBy[doc.ID] = matched
		simBy[doc.ID] = sim
	}

	ranked := ranker.Rank(scored, topK)
	out := make([]Match, len(ranked))
	for i, r := range ranked {
		out[i] = Match{
			Doc:            m.byID[r.DocID],
			ID:             r.DocID,
			Score:          ranker.Round(r.Score),
			Similarity:     ranker.Round(simBy[r.DocID]),
			MatchedFilters: matchedBy[r.DocID],
		}
	}
	m.logger.Debug("case studies matched",
		"filters", active,
		"free_text", freeText,
		"candidates", len(scored),
		"returned", len(out),
	)
	return out, nil
}

// Values lists the distinct values of an attribute across all case studies,
// as written in the content, sorted case-insensitively.
func (m *Matcher) Values(attr string) []string {
	seen := make(map[string]string)
	for _, doc := range m.studies {
		for _, v := range doc.Attributes()[attr] {
			if key := normalizeValue(v); key != "" {
				if _, ok := seen[key]; !ok {
					seen[key] = strings.TrimSpace(v)
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

// Len returns the number of case studies.
func (m *Matcher) Len() int {
	return len(m.studies)
}

// matchFilters returns the names of the filters doc satisfies, in
// attribute order.
func matchFilters(doc *corpus.Document, active map[string]string) []string {
	if len(active) == 0 {
		return []string{}
	}
	attrs := doc.Attributes()
	matched := make([]string, 0, len(active))
	for _, name := range corpus.CaseStudyAttributes {
		want, ok := active[name]
		if !ok {
			continue
		}
		for _, have := range attrs[name] {
			if normalizeValue(have) == want {
				matched = append(matched, name)
				break
			}
		}
	}
	return matched
}

func normalizeValue(v string) string {
	return strings.ToLower(strings.Join(strings.Fields(v), " "))
}
