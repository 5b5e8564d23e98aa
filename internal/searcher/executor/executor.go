// Package executor is the ranking engine behind the search tool. It
// validates requests, queries the TF-IDF index and decorates the ranked ids
// with title, kind, source URL and an excerpt from the corpus store.
package executor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/logger"
)

const (
	DefaultMaxTopK         = 20
	DefaultExcerptMaxRunes = 320
)

type Options struct {
	MaxTopK         int
	ExcerptMaxRunes int
}

type Request struct {
	Query string        `json:"query"`
	TopK  int           `json:"top_k"`
	Kinds []corpus.Kind `json:"kinds,omitempty"`
}

type Hit struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Kind    corpus.Kind `json:"kind"`
	URL     string      `json:"url,omitempty"`
	Excerpt string      `json:"excerpt"`
	Score   float64     `json:"score"`
}

type SearchResult struct {
	Query   string   `json:"query"`
	Terms   []string `json:"terms"`
	Results []Hit    `json:"results"`
}

type Executor struct {
	store  *corpus.Store
	index  *index.Index
	opts   Options
	logger *slog.Logger
}

func New(store *corpus.Store, ix *index.Index, opts Options) *Executor {
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = DefaultMaxTopK
	}
	if opts.ExcerptMaxRunes <= 0 {
		opts.ExcerptMaxRunes = DefaultExcerptMaxRunes
	}
	return &Executor{
		store:  store,
		index:  ix,
		opts:   opts,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Validate checks a request without running it.
func (e *Executor) Validate(req Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return apperrors.InvalidArgument("query must not be empty")
	}
	if req.TopK < 1 || req.TopK > e.opts.MaxTopK {
		return apperrors.InvalidArgument("top_k must be within [1, %d], got %d", e.opts.MaxTopK, req.TopK)
	}
	for _, k := range req.Kinds {
		if !k.Valid() {
			return apperrors.InvalidArgument("unknown content kind %q", k)
		}
	}
	return nil
}

// Search runs a validated query. An empty result list is a successful
// answer, not an error.
func (e *Executor) Search(ctx context.Context, req Request) (*SearchResult, error) {
	if err := e.Validate(req); err != nil {
		return nil, err
	}
	start := time.Now()

	var keep func(string) bool
	if len(req.Kinds) > 0 {
		allowed := make(map[corpus.Kind]struct{}, len(req.Kinds))
		for _, k := range req.Kinds {
			allowed[k] = struct{}{}
		}
		keep = func(id string) bool {
			doc, ok := e.store.Get(id)
			if !ok {
				return false
			}
			_, ok = allowed[doc.Kind]
			return ok
		}
	}

	ranked, err := e.index.QueryFiltered(req.Query, req.TopK, keep)
	if err != nil {
		return nil, err
	}
	terms := e.index.Vectorize(req.Query).Terms()

	hits := make([]Hit, 0, len(ranked))
	for _, r := range ranked {
		doc, ok := e.store.Get(r.DocID)
		if !ok {
			e.logger.Warn("indexed document missing from store", "doc_id", r.DocID)
			continue
		}
		hits = append(hits, Hit{
			ID:      doc.ID,
			Title:   doc.Title,
			Kind:    doc.Kind,
			URL:     doc.URL,
			Excerpt: trimExcerpt(bestPassage(doc, terms), e.opts.ExcerptMaxRunes),
			Score:   ranker.Round(r.Score),
		})
	}

	logger.FromContext(ctx).Debug("query executed",
		"component", "query-executor",
		"query", req.Query,
		"terms", terms,
		"kinds", req.Kinds,
		"results", len(hits),
		"duration_us", time.Since(start).Microseconds(),
	)
	if terms == nil {
		terms = []string{}
	}
	return &SearchResult{
		Query:   req.Query,
		Terms:   terms,
		Results: hits,
	}, nil
}
