// Package tools implements the three content tools an agent calls
// (search, lookup_case_study, lookup_glossary_term) on top of the retrieval
// core, and exposes them over HTTP and JSON RPC. Every call is measured,
// optionally traced, and reported to analytics.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/casestudy"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/glossary"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/tracing"
)

// Core bundles the read-only retrieval components built from one corpus.
type Core struct {
	Store    *corpus.Store
	Index    *index.Index
	Executor *executor.Executor
	Matcher  *casestudy.Matcher
	Resolver *glossary.Resolver
}

// BuildCore indexes store with the configured ranking constants. It fails
// with apperrors.ErrEmptyCorpus when nothing is indexable.
func BuildCore(store *corpus.Store, search config.SearchConfig, ranking config.RankingConfig) (*Core, error) {
	ix, err := index.Build(store.All(), index.Options{
		TitleWeight:   float64(ranking.TitleWeight),
		MinSimilarity: ranking.MinSimilarity,
	})
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	return &Core{
		Store: store,
		Index: ix,
		Executor: executor.New(store, ix, executor.Options{
			MaxTopK:         search.MaxTopK,
			ExcerptMaxRunes: ranking.ExcerptMaxRunes,
		}),
		Matcher: casestudy.NewMatcher(store, ix, ranking.FilterWeight),
		Resolver: glossary.NewResolver(store, glossary.Options{
			FuzzyThreshold:  ranking.FuzzyThreshold,
			SuggestionFloor: ranking.SuggestionFloor,
		}),
	}, nil
}

// Tracker receives one event per tool call. *analytics.Collector
// implements it.
type Tracker interface {
	Track(event analytics.ToolEvent)
}

// Deps are the optional collaborators of a Service. Any of them may be nil.
type Deps struct {
	Cache   *cache.QueryCache
	Tracker Tracker
	Tracer  *tracing.Tracer
	Metrics *metrics.Metrics
}

type Service struct {
	core        *Core
	defaultTopK int
	deps        Deps
	logger      *slog.Logger
}

func NewService(core *Core, defaultTopK int, deps Deps) *Service {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	s := &Service{
		core:        core,
		defaultTopK: defaultTopK,
		deps:        deps,
		logger:      slog.Default().With("component", "tools"),
	}
	if m := deps.Metrics; m != nil {
		st := core.Store.Stats()
		for _, k := range corpus.Kinds {
			m.CorpusDocuments.WithLabelValues(string(k)).Set(float64(st.Counts[k]))
		}
		m.IndexTerms.Set(float64(core.Index.Stats().Terms))
	}
	return s
}

// SearchParams are the inputs of the search tool. A nil TopK selects the
// default.
type SearchParams struct {
	Query string   `json:"query"`
	TopK  *int     `json:"top_k,omitempty"`
	Kinds []string `json:"kinds,omitempty"`
}

// Search runs a ranked full-text search over the whole corpus.
func (s *Service) Search(ctx context.Context, p SearchParams) (*executor.SearchResult, error) {
	c := s.begin(ctx, analytics.ToolSearch, p.Query)
	defer c.span.Finish()

	req := executor.Request{Query: p.Query, TopK: s.topK(p.TopK)}
	var err error
	req.Kinds, err = parseKinds(p.Kinds)
	if err == nil {
		err = s.core.Executor.Validate(req)
	}

	var result *executor.SearchResult
	if err == nil {
		compute := func() (*executor.SearchResult, error) {
			ctx, span := tracing.StartChildSpan(c.ctx, "rank")
			defer span.End()
			res, err := s.core.Executor.Search(ctx, req)
			if res != nil {
				span.SetAttr("results", len(res.Results))
			}
			return res, err
		}
		if s.deps.Cache != nil {
			cctx, span := tracing.StartChildSpan(c.ctx, "cache")
			result, c.cacheHit, err = s.deps.Cache.GetOrCompute(cctx, req, compute)
			span.SetAttr("hit", c.cacheHit)
			span.End()
			c.cacheStatus = cacheStatus(c.cacheHit)
		} else {
			result, err = compute()
		}
	}

	returned := 0
	if result != nil {
		returned = len(result.Results)
	}
	s.finish(c, returned, "", err)
	return result, err
}

// CaseStudyParams are the inputs of the case-study tool. Filters are keyed
// by property_type, country or challenge.
type CaseStudyParams struct {
	Filters       map[string]string `json:"filters,omitempty"`
	FreeText      string            `json:"free_text,omitempty"`
	TopK          *int              `json:"top_k,omitempty"`
	RequireRanked bool              `json:"require_ranked,omitempty"`
}

type CaseStudyHit struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	URL            string              `json:"url,omitempty"`
	Description    string              `json:"description,omitempty"`
	Attributes     map[string][]string `json:"attributes"`
	Score          float64             `json:"score"`
	MatchedFilters []string            `json:"matched_filters"`
}

// CaseStudyResult reports Ranked=false when the request carried neither
// filters nor free text and the results are the id-ordered listing.
type CaseStudyResult struct {
	Ranked  bool           `json:"ranked"`
	Results []CaseStudyHit `json:"results"`
}

// LookupCaseStudy finds case studies by attribute filters and free text.
func (s *Service) LookupCaseStudy(ctx context.Context, p CaseStudyParams) (*CaseStudyResult, error) {
	c := s.begin(ctx, analytics.ToolCaseStudy, describeCaseStudyQuery(p))
	defer c.span.Finish()

	result, err := s.lookupCaseStudy(p)
	returned := 0
	if result != nil {
		returned = len(result.Results)
	}
	s.finish(c, returned, "", err)
	return result, err
}

func (s *Service) lookupCaseStudy(p CaseStudyParams) (*CaseStudyResult, error) {
	// No upper bound: a top_k past the number of case studies returns them all.
	topK := s.topK(p.TopK)
	if topK < 1 {
		return nil, apperrors.InvalidArgument("top_k must be at least 1, got %d", topK)
	}
	browse := casestudy.IsBrowse(p.Filters, p.FreeText)
	if browse && p.RequireRanked {
		return nil, apperrors.InvalidArgument("a ranked lookup needs at least one filter (%s) or free_text",
			strings.Join(corpus.CaseStudyAttributes, ", "))
	}

	matches, err := s.core.Matcher.Find(p.Filters, p.FreeText, topK)
	if err != nil {
		return nil, err
	}
	result := &CaseStudyResult{Ranked: !browse, Results: make([]CaseStudyHit, len(matches))}
	for i, m := range matches {
		result.Results[i] = CaseStudyHit{
			ID:             m.ID,
			Title:          m.Doc.Title,
			URL:            m.Doc.URL,
			Description:    m.Doc.Description,
			Attributes:     m.Doc.Attributes(),
			Score:          m.Score,
			MatchedFilters: m.MatchedFilters,
		}
	}
	return result, nil
}

// GlossaryResult is a resolved glossary entry.
type GlossaryResult struct {
	ID          string          `json:"id"`
	Term        string          `json:"term"`
	Synonyms    []string        `json:"synonyms,omitempty"`
	Definition  string          `json:"definition"`
	Explanation string          `json:"explanation,omitempty"`
	URL         string          `json:"url,omitempty"`
	Method      glossary.Method `json:"method"`
	Score       float64         `json:"score"`
	MatchedName string          `json:"matched_name"`
}

// LookupGlossaryTerm resolves name to a glossary entry. Misses return a
// *glossary.NotFoundError and ties a *glossary.AmbiguousError.
func (s *Service) LookupGlossaryTerm(ctx context.Context, name string) (*GlossaryResult, error) {
	c := s.begin(ctx, analytics.ToolGlossary, name)
	defer c.span.Finish()

	res, err := s.core.Resolver.Resolve(name)
	method := resolutionLabel(res, err)
	if m := s.deps.Metrics; m != nil {
		m.GlossaryResolution.WithLabelValues(method).Inc()
	}
	if err != nil {
		s.finish(c, 0, method, err)
		return nil, err
	}

	doc := res.Doc
	out := &GlossaryResult{
		ID:          doc.ID,
		Term:        doc.Title,
		URL:         doc.URL,
		Method:      res.Method,
		Score:       res.Score,
		MatchedName: res.MatchedName,
	}
	if g := doc.Glossary; g != nil {
		out.Term = g.Term
		out.Synonyms = g.Synonyms
		out.Definition = g.Definition
		out.Explanation = g.Explanation
	}
	s.finish(c, 1, method, nil)
	return out, nil
}

// GlossaryTerms lists every canonical glossary term.
func (s *Service) GlossaryTerms() []string {
	return s.core.Resolver.Terms()
}

// CaseStudyFilters lists the values each case-study attribute takes.
func (s *Service) CaseStudyFilters() map[string][]string {
	out := make(map[string][]string, len(corpus.CaseStudyAttributes))
	for _, attr := range corpus.CaseStudyAttributes {
		out[attr] = s.core.Matcher.Values(attr)
	}
	return out
}

type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

type StatsReport struct {
	Fingerprint   string       `json:"fingerprint"`
	Corpus        corpus.Stats `json:"corpus"`
	Index         index.Stats  `json:"index"`
	GlossaryTerms int          `json:"glossary_terms"`
	CaseStudies   int          `json:"case_studies"`
	Cache         *CacheStats  `json:"cache,omitempty"`
}

// Stats describes the loaded corpus and index.
func (s *Service) Stats() StatsReport {
	st := StatsReport{
		Fingerprint:   s.core.Store.Fingerprint(),
		Corpus:        s.core.Store.Stats(),
		Index:         s.core.Index.Stats(),
		GlossaryTerms: s.core.Resolver.Len(),
		CaseStudies:   s.core.Matcher.Len(),
	}
	if s.deps.Cache != nil {
		hits, misses := s.deps.Cache.Stats()
		st.Cache = &CacheStats{Hits: hits, Misses: misses}
	}
	return st
}

// InvalidateCache drops every cached search result. It reports false when
// caching is disabled.
func (s *Service) InvalidateCache(ctx context.Context) (bool, error) {
	if s.deps.Cache == nil {
		return false, nil
	}
	return true, s.deps.Cache.Invalidate(ctx)
}

// call carries per-call bookkeeping from begin to finish.
type call struct {
	ctx         context.Context
	span        *tracing.Span
	tool        string
	query       string
	start       time.Time
	cacheHit    bool
	cacheStatus string
}

func (s *Service) begin(ctx context.Context, tool, query string) *call {
	ctx, span := s.deps.Tracer.StartSpan(ctx, "tool."+tool, logger.RequestIDFromContext(ctx))
	span.SetAttr("query", query)
	return &call{
		ctx:         ctx,
		span:        span,
		tool:        tool,
		query:       query,
		start:       time.Now(),
		cacheStatus: "none",
	}
}

func (s *Service) finish(c *call, returned int, method string, err error) {
	latency := time.Since(c.start)
	outcome := classify(returned, err)
	c.span.SetAttr("outcome", string(outcome))
	c.span.SetAttr("returned", returned)

	if m := s.deps.Metrics; m != nil {
		m.ToolCallsTotal.WithLabelValues(c.tool, string(outcome)).Inc()
		m.ToolLatency.WithLabelValues(c.tool, c.cacheStatus).Observe(latency.Seconds())
		if err == nil {
			m.ToolResultsCount.WithLabelValues(c.tool).Observe(float64(returned))
		}
	}
	if s.deps.Tracker != nil {
		s.deps.Tracker.Track(analytics.ToolEvent{
			Tool:      c.tool,
			Query:     c.query,
			Outcome:   outcome,
			Returned:  returned,
			LatencyMs: latency.Milliseconds(),
			CacheHit:  c.cacheHit,
			Method:    method,
			RequestID: logger.RequestIDFromContext(c.ctx),
			Timestamp: time.Now().UTC(),
		})
	}

	log := logger.FromContext(c.ctx).With("component", "tools", "tool", c.tool)
	if caller := middleware.CallerName(c.ctx); caller != "" {
		log = log.With("caller", caller)
	}
	switch outcome {
	case analytics.OutcomeError:
		log.Error("tool call failed", "query", c.query, "error", err)
	case analytics.OutcomeInvalidArgument, analytics.OutcomeNotFound, analytics.OutcomeAmbiguous:
		log.Info("tool call rejected", "query", c.query, "outcome", outcome, "error", err)
	default:
		log.Info("tool call completed",
			"query", c.query,
			"returned", returned,
			"cache", c.cacheStatus,
			"latency_ms", latency.Milliseconds(),
		)
	}
}

func (s *Service) topK(v *int) int {
	if v == nil {
		return s.defaultTopK
	}
	return *v
}

func classify(returned int, err error) analytics.Outcome {
	switch {
	case err == nil && returned == 0:
		return analytics.OutcomeEmpty
	case err == nil:
		return analytics.OutcomeOK
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return analytics.OutcomeInvalidArgument
	case errors.Is(err, apperrors.ErrNotFound):
		return analytics.OutcomeNotFound
	case errors.Is(err, apperrors.ErrAmbiguous):
		return analytics.OutcomeAmbiguous
	default:
		return analytics.OutcomeError
	}
}

func resolutionLabel(res *glossary.Resolution, err error) string {
	switch {
	case err == nil:
		return string(res.Method)
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrAmbiguous):
		return "ambiguous"
	default:
		return "invalid"
	}
}

func cacheStatus(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func parseKinds(names []string) ([]corpus.Kind, error) {
	if len(names) == 0 {
		return nil, nil
	}
	kinds := make([]corpus.Kind, 0, len(names))
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			k, err := corpus.ParseKind(part)
			if err != nil {
				return nil, apperrors.InvalidArgument("%v", err)
			}
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// describeCaseStudyQuery renders a lookup as one analytics query string,
// e.g. "country=portugal challenge=seasonality | group bookings".
func describeCaseStudyQuery(p CaseStudyParams) string {
	parts := make([]string, 0, len(p.Filters))
	for k, v := range p.Filters {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, strings.ToLower(strings.TrimSpace(k))+"="+strings.ToLower(v))
		}
	}
	sort.Strings(parts)
	q := strings.Join(parts, " ")
	if text := strings.TrimSpace(p.FreeText); text != "" {
		if q != "" {
			q += " | "
		}
		q += text
	}
	return q
}
