// Package glossary resolves user-supplied term names to glossary entries.
//
// Resolution tries an exact case-insensitive match against every canonical
// term and synonym first, then falls back to a normalized Levenshtein ratio.
// A fuzzy match is accepted only when exactly one entry scores highest and
// that score reaches the fuzzy threshold.
package glossary

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/errors"
)

const (
	DefaultFuzzyThreshold  = 0.75
	DefaultSuggestionFloor = 0.5

	// Scores closer than this are considered tied.
	tieEpsilon = 1e-9
)

// Method records how a name was resolved.
type Method string

const (
	MethodExact Method = "exact"
	MethodFuzzy Method = "fuzzy"
)

type Options struct {
	FuzzyThreshold  float64
	SuggestionFloor float64
}

func DefaultOptions() Options {
	return Options{
		FuzzyThreshold:  DefaultFuzzyThreshold,
		SuggestionFloor: DefaultSuggestionFloor,
	}
}

// Resolution is a successfully resolved glossary entry. MatchedName is the
// term or synonym that produced the match.
type Resolution struct {
	Doc         *corpus.Document
	Method      Method
	Score       float64
	MatchedName string
}

// Candidate is a glossary entry considered during resolution.
type Candidate struct {
	ID    string  `json:"id"`
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// NotFoundError is returned when no entry matches closely enough.
// Suggestion is the closest entry when it scored at least the suggestion
// floor. Available lists every canonical term.
type NotFoundError struct {
	Name       string
	Suggestion *Candidate
	Available  []string
}

func (e *NotFoundError) Error() string {
	if e.Suggestion != nil {
		return fmt.Sprintf("glossary term %q not found (did you mean %q?)", e.Name, e.Suggestion.Term)
	}
	return fmt.Sprintf("glossary term %q not found", e.Name)
}

func (e *NotFoundError) Unwrap() error { return apperrors.ErrNotFound }

// Details is the structured payload transports attach to the error reply.
func (e *NotFoundError) Details() any {
	return map[string]any{
		"suggestion":      e.Suggestion,
		"available_terms": e.Available,
	}
}

// AmbiguousError is returned when several entries match equally well.
type AmbiguousError struct {
	Name       string
	Candidates []Candidate
}

func (e *AmbiguousError) Error() string {
	terms := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		terms[i] = c.Term
	}
	return fmt.Sprintf("glossary term %q is ambiguous: %s", e.Name, strings.Join(terms, ", "))
}

func (e *AmbiguousError) Unwrap() error { return apperrors.ErrAmbiguous }

func (e *AmbiguousError) Details() any {
	return map[string]any{"candidates": e.Candidates}
}

type nameEntry struct {
	name  string
	runes int
	doc   *corpus.Document
}

// Resolver is safe for concurrent use; it is never mutated after
// construction.
type Resolver struct {
	opts      Options
	exact     map[string][]*corpus.Document
	names     []nameEntry
	available []string
	logger    *slog.Logger
}

// NewResolver indexes the names of every glossary-term document in store.
func NewResolver(store *corpus.Store, opts Options) *Resolver {
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if opts.SuggestionFloor <= 0 {
		opts.SuggestionFloor = DefaultSuggestionFloor
	}
	r := &Resolver{
		opts:   opts,
		exact:  make(map[string][]*corpus.Document),
		logger: slog.Default().With("component", "glossary-resolver"),
	}

	for _, doc := range store.ByKind(corpus.KindGlossary) {
		seen := make(map[string]bool)
		for _, name := range doc.Names() {
			key := normalize(name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			r.exact[key] = append(r.exact[key], doc)
			r.names = append(r.names, nameEntry{name: key, runes: utf8.RuneCountInString(key), doc: doc})
		}
		r.available = append(r.available, canonical(doc))
	}
	sort.Slice(r.available, func(i, j int) bool {
		return strings.ToLower(r.available[i]) < strings.ToLower(r.available[j])
	})

	for key, owners := range r.exact {
		if len(owners) > 1 {
			r.logger.Warn("glossary name declared by several entries", "name", key, "entries", len(owners))
		}
	}
	return r
}

// Resolve finds the glossary entry named name.
func (r *Resolver) Resolve(name string) (*Resolution, error) {
	key := normalize(name)
	if key == "" {
		return nil, apperrors.InvalidArgument("glossary term name must not be empty")
	}

	if owners, ok := r.exact[key]; ok {
		if len(owners) == 1 {
			return &Resolution{Doc: owners[0], Method: MethodExact, Score: 1, MatchedName: key}, nil
		}
		cands := make([]Candidate, len(owners))
		for i, doc := range owners {
			cands[i] = Candidate{ID: doc.ID, Term: canonical(doc), Score: 1}
		}
		sortCandidates(cands)
		return nil, &AmbiguousError{Name: name, Candidates: cands}
	}

	ranked, matched := r.fuzzy(key)
	if len(ranked) == 0 {
		return nil, &NotFoundError{Name: name, Available: r.Terms()}
	}
	best := ranked[0]

	if best.Score >= r.opts.FuzzyThreshold {
		tied := []Candidate{best}
		for _, c := range ranked[1:] {
			if math.Abs(c.Score-best.Score) > tieEpsilon {
				break
			}
			tied = append(tied, c)
		}
		if len(tied) > 1 {
			return nil, &AmbiguousError{Name: name, Candidates: tied}
		}
		doc := matched[best.ID]
		r.logger.Debug("glossary fuzzy match", "name", name, "term", best.Term, "score", best.Score)
		return &Resolution{Doc: doc.doc, Method: MethodFuzzy, Score: best.Score, MatchedName: doc.name}, nil
	}

	nf := &NotFoundError{Name: name, Available: r.Terms()}
	if best.Score >= r.opts.SuggestionFloor {
		s := best
		nf.Suggestion = &s
	}
	return nil, nf
}

// fuzzy scores every entry by its best-matching name and returns the
// candidates ordered by score descending, then term and id ascending,
// together with the winning name per entry id.
func (r *Resolver) fuzzy(key string) ([]Candidate, map[string]nameEntry) {
	keyRunes := utf8.RuneCountInString(key)
	best := make(map[string]nameEntry)
	scores := make(map[string]float64)
	for _, e := range r.names {
		s := Ratio(key, keyRunes, e.name, e.runes)
		if cur, ok := scores[e.doc.ID]; !ok || s > cur {
			scores[e.doc.ID] = s
			best[e.doc.ID] = e
		}
	}

	cands := make([]Candidate, 0, len(scores))
	for id, s := range scores {
		cands = append(cands, Candidate{ID: id, Term: canonical(best[id].doc), Score: s})
	}
	sortCandidates(cands)
	return cands, best
}

// Ratio is the normalized Levenshtein similarity 1 - d/max(len) of two
// strings with the given rune counts. Two empty strings are identical.
func Ratio(a string, aLen int, b string, bLen int) float64 {
	longest := aLen
	if bLen > longest {
		longest = bLen
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

// Similarity is Ratio over the normalized forms of a and b.
func Similarity(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	return Ratio(a, utf8.RuneCountInString(a), b, utf8.RuneCountInString(b))
}

// Terms lists the canonical term of every entry, sorted case-insensitively.
func (r *Resolver) Terms() []string {
	out := make([]string, len(r.available))
	copy(out, r.available)
	return out
}

// Len returns the number of glossary entries.
func (r *Resolver) Len() int {
	return len(r.available)
}

func sortCandidates(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		if cands[i].Term != cands[j].Term {
			return cands[i].Term < cands[j].Term
		}
		return cands[i].ID < cands[j].ID
	})
}

func canonical(doc *corpus.Document) string {
	if doc.Glossary != nil && doc.Glossary.Term != "" {
		return doc.Glossary.Term
	}
	return doc.Title
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
