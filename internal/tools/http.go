package tools

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/rpc"
)

// RouterOptions configures the optional middleware of the HTTP API.
type RouterOptions struct {
	Timeout time.Duration
	Limiter *middleware.Limiter
	CORS    *middleware.CORSConfig
	// APIKeys, when set, requires a key on every non-health route.
	APIKeys *middleware.APIKeys
}

// NewRouter builds the HTTP API.
//
// Route table:
//
//	GET    /health/live                   liveness
//	GET    /health/ready                  readiness and dependency checks
//	GET    /api/v1/search                 search tool
//	GET    /api/v1/case-studies           lookup_case_study tool
//	GET    /api/v1/case-studies/filters   known attribute values
//	GET    /api/v1/glossary               canonical glossary terms
//	GET    /api/v1/glossary/{name}        lookup_glossary_term tool
//	GET    /api/v1/stats                  corpus, index and cache stats
//	POST   /api/v1/cache/invalidate       drop cached search results
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → CORS → APIKey → RateLimit → Timeout → handler
func NewRouter(svc *Service, checker *health.Checker, m *metrics.Metrics, opts RouterOptions) http.Handler {
	h := &httpHandler{svc: svc, logger: slog.Default().With("component", "tools-http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if m != nil {
		r.Use(middleware.Metrics(m))
	}
	if opts.CORS != nil {
		r.Use(middleware.CORS(*opts.CORS))
	}
	if opts.APIKeys != nil {
		r.Use(middleware.RequireAPIKey(opts.APIKeys))
	}
	if opts.Limiter != nil {
		r.Use(middleware.RateLimit(opts.Limiter, m))
	}
	if opts.Timeout > 0 {
		r.Use(middleware.Timeout(opts.Timeout))
	}

	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", h.search)
		r.Get("/case-studies", h.caseStudies)
		r.Get("/case-studies/filters", h.caseStudyFilters)
		r.Get("/glossary", h.glossaryTerms)
		r.Get("/glossary/{name}", h.glossaryTerm)
		r.Get("/stats", h.stats)
		r.Post("/cache/invalidate", h.invalidateCache)
	})
	return r
}

type httpHandler struct {
	svc    *Service
	logger *slog.Logger
}

func (h *httpHandler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topK, err := optionalInt(q, "top_k", "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.svc.Search(r.Context(), SearchParams{
		Query: firstOf(q, "q", "query"),
		TopK:  topK,
		Kinds: q["kind"],
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// caseStudyParams are query parameters that are not attribute filters.
var caseStudyParams = map[string]bool{
	"free_text": true, "q": true, "top_k": true, "limit": true, "require_ranked": true,
	middleware.APIKeyQueryParam: true,
}

func (h *httpHandler) caseStudies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topK, err := optionalInt(q, "top_k", "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	requireRanked := false
	if v := q.Get("require_ranked"); v != "" {
		requireRanked, err = strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, r, apperrors.InvalidArgument("require_ranked must be a boolean, got %q", v))
			return
		}
	}
	filters := make(map[string]string)
	for name, values := range q {
		if !caseStudyParams[name] && len(values) > 0 {
			filters[name] = values[0]
		}
	}

	result, err := h.svc.LookupCaseStudy(r.Context(), CaseStudyParams{
		Filters:       filters,
		FreeText:      firstOf(q, "free_text", "q"),
		TopK:          topK,
		RequireRanked: requireRanked,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *httpHandler) caseStudyFilters(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.CaseStudyFilters())
}

func (h *httpHandler) glossaryTerms(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"terms": h.svc.GlossaryTerms()})
}

func (h *httpHandler) glossaryTerm(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.LookupGlossaryTerm(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *httpHandler) stats(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Stats())
}

func (h *httpHandler) invalidateCache(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.svc.InvalidateCache(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !enabled {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "caching is disabled",
			"code":  rpc.CodeUnavailable,
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *httpHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError renders err as {"error", "code"} plus any structured details
// the error carries, such as glossary suggestions or candidates.
func (h *httpHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	body := map[string]any{"error": err.Error(), "code": rpc.CodeFor(err)}
	var de rpc.DetailedError
	if errors.As(err, &de) {
		if details, ok := de.Details().(map[string]any); ok {
			for k, v := range details {
				body[k] = v
			}
		}
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	if status == http.StatusInternalServerError {
		body["error"] = "internal error"
	}
	h.writeJSON(w, status, body)
}

func firstOf(q map[string][]string, names ...string) string {
	for _, n := range names {
		if v := q[n]; len(v) > 0 && strings.TrimSpace(v[0]) != "" {
			return v[0]
		}
	}
	return ""
}

func optionalInt(q map[string][]string, names ...string) (*int, error) {
	raw := firstOf(q, names...)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, apperrors.InvalidArgument("%s must be an integer, got %q", names[0], raw)
	}
	return &n, nil
}
