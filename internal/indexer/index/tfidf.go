// Package index implements the build-once TF-IDF index over the corpus.
// An Index is immutable after Build returns and may be queried from any
// number of goroutines without locking.
package index

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/errors"
)

// Defaults for Options. Both are configurable through the ranking section
// of the config.
const (
	// DefaultTitleWeight counts a title occurrence three times.
	DefaultTitleWeight = 3.0
	// DefaultMinSimilarity is an inclusive floor: a score equal to it is kept.
	DefaultMinSimilarity = 0.01
)

// Options tunes term weighting and the query similarity floor.
type Options struct {
	// TitleWeight multiplies every title occurrence of a term.
	TitleWeight float64
	// MinSimilarity is the noise floor below which candidates are dropped.
	MinSimilarity float64
}

// DefaultOptions returns Options set to DefaultTitleWeight and
// DefaultMinSimilarity.
func DefaultOptions() Options {
	return Options{
		TitleWeight:   DefaultTitleWeight,
		MinSimilarity: DefaultMinSimilarity,
	}
}

type docVector struct {
	id      string
	tf      map[string]float64
	weights map[string]float64
	norm    float64
}

// Index holds one L2-normalised TF-IDF vector per indexed document, the
// IDF table and a posting list per term. Documents are addressed by their
// position in docs; byID maps corpus ids to that position.
type Index struct {
	opts     Options
	docs     []docVector
	byID     map[string]int
	idf      map[string]float64
	postings map[string]PostingList
	skipped  int
}

// Stats summarises an index.
type Stats struct {
	Documents int `json:"documents"`
	Skipped   int `json:"skipped"`
	Terms     int `json:"terms"`
	Postings  int `json:"postings"`
}

// Vector is a TF-IDF weighted query vector built against an index's IDF
// table.
type Vector struct {
	terms   []string
	weights map[string]float64
	norm    float64
}

// Empty reports whether the query produced no terms.
func (v Vector) Empty() bool {
	return len(v.terms) == 0
}

// Terms returns the distinct query terms in first-occurrence order.
func (v Vector) Terms() []string {
	return v.terms
}

// Build tokenizes every document, weights title terms, accumulates document
// frequencies and computes the IDF table. Documents whose title and body
// produce no terms are skipped. It returns ErrEmptyCorpus if nothing is left
// to index.
func Build(docs []*corpus.Document, opts Options) (*Index, error) {
	if opts.TitleWeight <= 0 {
		opts.TitleWeight = DefaultTitleWeight
	}
	if opts.MinSimilarity < 0 {
		opts.MinSimilarity = 0
	}
	logger := slog.Default().With("component", "tfidf-index")
	start := time.Now()

	ix := &Index{
		opts:     opts,
		docs:     make([]docVector, 0, len(docs)),
		byID:     make(map[string]int, len(docs)),
		idf:      make(map[string]float64),
		postings: make(map[string]PostingList),
	}
	docFreq := make(map[string]int)

	for _, doc := range docs {
		title, body := doc.IndexableText()
		tf := termVector(title, body, opts.TitleWeight)
		if len(tf) == 0 {
			ix.skipped++
			logger.Warn("document has no indexable terms, skipping", "doc_id", doc.ID)
			continue
		}
		if _, dup := ix.byID[doc.ID]; dup {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrDuplicateID, doc.ID)
		}
		ord := len(ix.docs)
		ix.byID[doc.ID] = ord
		ix.docs = append(ix.docs, docVector{id: doc.ID, tf: tf})
		for term, freq := range tf {
			docFreq[term]++
			ix.postings[term] = append(ix.postings[term], Posting{Doc: ord, Frequency: freq})
		}
	}
	if len(ix.docs) == 0 {
		return nil, apperrors.ErrEmptyCorpus
	}

	n := float64(len(ix.docs))
	for term, df := range docFreq {
		ix.idf[term] = idf(n, df)
	}
	for i := range ix.docs {
		d := &ix.docs[i]
		d.weights = make(map[string]float64, len(d.tf))
		for term, freq := range d.tf {
			if w := freq * ix.idf[term]; w > 0 {
				d.weights[term] = w
			}
		}
		d.norm = ranker.Norm(d.weights)
	}

	logger.Info("index built",
		"documents", len(ix.docs),
		"skipped", ix.skipped,
		"terms", len(ix.idf),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ix, nil
}

// idf is log(N / (1 + df)) floored at zero, so a term present in (nearly)
// every document carries no weight rather than a negative one.
func idf(n float64, df int) float64 {
	return math.Max(0, math.Log(n/(1+float64(df))))
}

func termVector(title, body string, titleWeight float64) map[string]float64 {
	tf := make(map[string]float64)
	for _, tok := range tokenizer.Tokenize(title) {
		tf[tok.Term] += titleWeight
	}
	for _, tok := range tokenizer.Tokenize(body) {
		tf[tok.Term]++
	}
	return tf
}

// Vectorize builds the weighted query vector for text. Terms missing from
// the IDF table contribute no weight but still count as query terms.
func (ix *Index) Vectorize(text string) Vector {
	tokens := tokenizer.Tokenize(text)
	v := Vector{weights: make(map[string]float64, len(tokens))}
	tf := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		if _, seen := tf[tok.Term]; !seen {
			v.terms = append(v.terms, tok.Term)
		}
		tf[tok.Term]++
	}
	for term, freq := range tf {
		if w := freq * ix.idf[term]; w > 0 {
			v.weights[term] = w
		}
	}
	v.norm = ranker.Norm(v.weights)
	return v
}

// Score returns the cosine similarity between v and the document with the
// given id and the number of distinct query terms the document contains.
// Unknown or unindexed ids score zero.
func (ix *Index) Score(v Vector, docID string) (float64, int) {
	ord, ok := ix.byID[docID]
	if !ok {
		return 0, 0
	}
	d := &ix.docs[ord]
	overlap := 0
	for _, term := range v.terms {
		if _, ok := d.tf[term]; ok {
			overlap++
		}
	}
	return ix.similarity(v, d), overlap
}

// similarity sums the dot product in query-term order so repeated calls
// produce identical scores.
func (ix *Index) similarity(v Vector, d *docVector) float64 {
	var dot float64
	for _, term := range v.terms {
		if qw, ok := v.weights[term]; ok {
			dot += qw * d.weights[term]
		}
	}
	return ranker.Cosine(dot, v.norm, d.norm)
}

// Query ranks every document sharing at least one term with text and
// returns at most topK results above the similarity floor.
func (ix *Index) Query(text string, topK int) ([]ranker.Result, error) {
	return ix.QueryFiltered(text, topK, nil)
}

// QueryFiltered is Query restricted to documents accepted by keep. The
// filter runs before truncation, so topK counts kept documents only. A nil
// keep accepts everything.
func (ix *Index) QueryFiltered(text string, topK int, keep func(docID string) bool) ([]ranker.Result, error) {
	if topK <= 0 {
		return nil, apperrors.InvalidArgument("top_k must be positive, got %d", topK)
	}
	v := ix.Vectorize(text)
	if v.Empty() {
		return []ranker.Result{}, nil
	}

	overlap := make(map[int]int)
	for _, term := range v.terms {
		for _, p := range ix.postings[term] {
			overlap[p.Doc]++
		}
	}

	results := make([]ranker.Result, 0, len(overlap))
	for ord, shared := range overlap {
		d := &ix.docs[ord]
		if keep != nil && !keep(d.id) {
			continue
		}
		sim := ix.similarity(v, d)
		if sim < ix.opts.MinSimilarity || sim == 0 {
			continue
		}
		results = append(results, ranker.Result{DocID: d.id, Score: sim, Overlap: shared})
	}
	return ranker.Rank(results, topK), nil
}

// Contains reports whether the document was indexed.
func (ix *Index) Contains(docID string) bool {
	_, ok := ix.byID[docID]
	return ok
}

// IDF returns the inverse document frequency of term and whether the term
// is in the vocabulary.
func (ix *Index) IDF(term string) (float64, bool) {
	w, ok := ix.idf[term]
	return w, ok
}

// MinSimilarity returns the configured similarity floor.
func (ix *Index) MinSimilarity() float64 {
	return ix.opts.MinSimilarity
}

// Stats reports document, vocabulary and posting counts, plus the number
// of documents skipped at build time for having no terms.
func (ix *Index) Stats() Stats {
	st := Stats{Documents: len(ix.docs), Skipped: ix.skipped, Terms: len(ix.idf)}
	for _, pl := range ix.postings {
		st.Postings += len(pl)
	}
	return st
}

// TopTerms returns the n most widespread vocabulary terms, ordered by
// document frequency descending then term ascending.
func (ix *Index) TopTerms(n int) []TermEntry {
	entries := make([]TermEntry, 0, len(ix.postings))
	for term, pl := range ix.postings {
		entries = append(entries, TermEntry{Term: term, DocFreq: len(pl), IDF: ix.idf[term]})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].DocFreq != entries[j].DocFreq {
			return entries[i].DocFreq > entries[j].DocFreq
		}
		return entries[i].Term < entries[j].Term
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
