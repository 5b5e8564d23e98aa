package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ToolCallsTotal.WithLabelValues("search", "ok").Inc()
	m.ToolCallsTotal.WithLabelValues("search", "ok").Inc()
	m.CorpusDocuments.WithLabelValues("article").Set(12)

	if got := testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("search", "ok")); got != 2 {
		t.Errorf("tool_calls_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CorpusDocuments.WithLabelValues("article")); got != 12 {
		t.Errorf("corpus_documents = %v, want 12", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "contenthub_tool_calls_total" {
			found = true
		}
	}
	if !found {
		t.Error("contenthub_tool_calls_total not gathered")
	}
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	New(reg)
}

func TestHandlerFor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.CacheHitsTotal.Inc()

	rr := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "contenthub_cache_hits_total 1") {
		t.Errorf("scrape output missing cache hits:\n%s", rr.Body.String())
	}
}

func TestServerMux(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).ToolCallsTotal.WithLabelValues("search", "ok").Inc()
	mux := newMux(reg)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/metrics" {
		t.Errorf("GET / = %d %q, want redirect to /metrics", rr.Code, rr.Header().Get("Location"))
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "contenthub_tool_calls_total") {
		t.Errorf("GET /metrics = %d, body missing tool calls", rr.Code)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/metrics", http.NoBody))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /metrics = %d, want 405", rr.Code)
	}
}
