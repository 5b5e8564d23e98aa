package tools

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/middleware"
)

func newTestServer(t *testing.T) (*httptest.Server, *health.Checker, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	checker := health.NewChecker()
	svc := NewService(testCore(t), 5, Deps{Metrics: m})
	srv := httptest.NewServer(NewRouter(svc, checker, m, RouterOptions{}))
	t.Cleanup(srv.Close)
	return srv, checker, m
}

func getJSON(t *testing.T, rawURL string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(rawURL)
	if err != nil {
		t.Fatalf("GET %s: %v", rawURL, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", rawURL, err)
		}
	}
	return resp
}

func TestHTTPSearch(t *testing.T) {
	srv, _, m := newTestServer(t)

	var body struct {
		Query   string `json:"query"`
		Results []struct {
			ID    string  `json:"id"`
			Kind  string  `json:"kind"`
			Score float64 `json:"score"`
		} `json:"results"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/search?q=direct+bookings&top_k=1", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Error("response has no request id header")
	}
	if len(body.Results) != 1 || body.Results[0].ID != "article/direct-bookings" {
		t.Errorf("results = %+v", body.Results)
	}

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/search", "200"))
	if got != 1 {
		t.Errorf("http_requests_total{/api/v1/search,200} = %v, want 1", got)
	}
}

func TestHTTPErrors(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		name     string
		path     string
		status   int
		wantCode string
	}{
		{"missing query", "/api/v1/search", http.StatusBadRequest, "invalid_argument"},
		{"non-numeric top_k", "/api/v1/search?q=adr&top_k=ten", http.StatusBadRequest, "invalid_argument"},
		{"unknown kind", "/api/v1/search?q=adr&kind=podcast", http.StatusBadRequest, "invalid_argument"},
		{"unknown filter", "/api/v1/case-studies?budget=low", http.StatusBadRequest, "invalid_argument"},
		{"bad require_ranked", "/api/v1/case-studies?require_ranked=maybe", http.StatusBadRequest, "invalid_argument"},
		{"ranked browse", "/api/v1/case-studies?require_ranked=true", http.StatusBadRequest, "invalid_argument"},
		{"glossary miss", "/api/v1/glossary/" + url.PathEscape("channel manager"), http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]any
			resp := getJSON(t, srv.URL+tt.path, &body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
			}
			if body["error"] == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestHTTPGlossary(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var hit GlossaryResult
	resp := getJSON(t, srv.URL+"/api/v1/glossary/"+url.PathEscape("Average Daily Rate"), &hit)
	if resp.StatusCode != http.StatusOK || hit.ID != "glossary-term/adr" || hit.Method != "exact" {
		t.Errorf("status=%d hit=%+v", resp.StatusCode, hit)
	}

	var miss struct {
		Code       string `json:"code"`
		Suggestion struct {
			Term string `json:"term"`
		} `json:"suggestion"`
		Available []string `json:"available_terms"`
	}
	resp = getJSON(t, srv.URL+"/api/v1/glossary/Occupy", &miss)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if miss.Suggestion.Term != "Occupancy" || len(miss.Available) != 3 {
		t.Errorf("miss = %+v", miss)
	}

	var list struct {
		Terms []string `json:"terms"`
	}
	getJSON(t, srv.URL+"/api/v1/glossary", &list)
	if len(list.Terms) != 3 || list.Terms[0] != "ADR" {
		t.Errorf("terms = %v", list.Terms)
	}
}

func TestHTTPCaseStudies(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var res CaseStudyResult
	resp := getJSON(t, srv.URL+"/api/v1/case-studies?country=Switzerland&free_text=dynamic+pricing", &res)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !res.Ranked || len(res.Results) != 1 || res.Results[0].ID != "case-study/alpine" {
		t.Errorf("result = %+v", res)
	}
	if res.Results[0].Score <= 1 {
		t.Errorf("score = %v, want filter weight plus text similarity", res.Results[0].Score)
	}

	var filters map[string][]string
	getJSON(t, srv.URL+"/api/v1/case-studies/filters", &filters)
	if len(filters["property_type"]) != 2 {
		t.Errorf("filters = %v", filters)
	}
}

func TestHTTPHealthAndCache(t *testing.T) {
	srv, checker, _ := newTestServer(t)

	if resp := getJSON(t, srv.URL+"/health/live", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("live status = %d", resp.StatusCode)
	}
	if resp := getJSON(t, srv.URL+"/health/ready", nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready before MarkReady = %d, want 503", resp.StatusCode)
	}
	checker.MarkReady()
	if resp := getJSON(t, srv.URL+"/health/ready", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("ready after MarkReady = %d, want 200", resp.StatusCode)
	}

	resp, err := http.Post(srv.URL+"/api/v1/cache/invalidate", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("invalidate without cache = %d, want 503", resp.StatusCode)
	}

	var st StatsReport
	getJSON(t, srv.URL+"/api/v1/stats", &st)
	if st.Corpus.Total != 8 {
		t.Errorf("stats = %+v", st)
	}
}

func TestHTTPRequiresAPIKey(t *testing.T) {
	checker := health.NewChecker()
	checker.MarkReady()
	svc := NewService(testCore(t), 5, Deps{})
	srv := httptest.NewServer(NewRouter(svc, checker, nil, RouterOptions{
		APIKeys: middleware.NewAPIKeys(map[string]string{"agent": "k1"}),
	}))
	t.Cleanup(srv.Close)

	if resp := getJSON(t, srv.URL+"/api/v1/glossary/ADR", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("without key: status = %d, want 401", resp.StatusCode)
	}
	if resp := getJSON(t, srv.URL+"/api/v1/glossary/ADR?api_key=k1", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("with key: status = %d, want 200", resp.StatusCode)
	}
	if resp := getJSON(t, srv.URL+"/health/ready", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("health: status = %d, want 200", resp.StatusCode)
	}
}

func TestHTTPCaseStudiesWithQueryAPIKey(t *testing.T) {
	checker := health.NewChecker()
	checker.MarkReady()
	svc := NewService(testCore(t), 5, Deps{})
	srv := httptest.NewServer(NewRouter(svc, checker, nil, RouterOptions{
		APIKeys: middleware.NewAPIKeys(map[string]string{"agent": "k1"}),
	}))
	t.Cleanup(srv.Close)

	for _, path := range []string{
		"/api/v1/search?q=revpar&api_key=k1",
		"/api/v1/case-studies?country=portugal&api_key=k1",
		"/api/v1/case-studies?api_key=k1",
	} {
		if resp := getJSON(t, srv.URL+path, nil); resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status = %d, want 200", path, resp.StatusCode)
		}
	}
}
