package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/metrics"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (p *fakePublisher) events() []kafka.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []kafka.Event
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}

func TestCollectorFlushesOnClose(t *testing.T) {
	pub := &fakePublisher{}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCollector(pub, 16, m)
	c.Start(context.Background())

	c.Track(ToolEvent{Tool: ToolSearch, Query: "revpar", Outcome: OutcomeOK})
	c.Track(ToolEvent{Tool: ToolGlossary, Query: "adr", Outcome: OutcomeOK})
	c.Track(ToolEvent{Tool: ToolCaseStudy, Query: "country=portugal", Outcome: OutcomeEmpty})
	c.Close()

	events := pub.events()
	if len(events) != 3 {
		t.Fatalf("published %d events, want 3", len(events))
	}
	keys := []string{events[0].Key, events[1].Key, events[2].Key}
	if !reflect.DeepEqual(keys, []string{ToolSearch, ToolGlossary, ToolCaseStudy}) {
		t.Errorf("keys = %v", keys)
	}
	if events[0].Schema != EventSchema {
		t.Errorf("schema = %q, want %q", events[0].Schema, EventSchema)
	}
	if ev := events[0].Value.(ToolEvent); ev.Timestamp.IsZero() {
		t.Error("Track did not stamp the event")
	}
	if got := testutil.ToFloat64(m.AnalyticsEventsTotal.WithLabelValues("published")); got != 3 {
		t.Errorf("published counter = %v, want 3", got)
	}
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &fakePublisher{}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCollector(pub, 1, m)

	c.Track(ToolEvent{Tool: ToolSearch, Query: "a"})
	c.Track(ToolEvent{Tool: ToolSearch, Query: "b"})
	if got := testutil.ToFloat64(m.AnalyticsEventsTotal.WithLabelValues("dropped")); got != 1 {
		t.Errorf("dropped counter = %v, want 1", got)
	}

	c.Start(context.Background())
	c.Close()
	if events := pub.events(); len(events) != 1 {
		t.Errorf("published %d events, want 1", len(events))
	}
}

func TestCollectorCountsPublishFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCollector(pub, 4, m)
	c.Start(context.Background())
	c.Track(ToolEvent{Tool: ToolSearch, Query: "a"})
	c.Track(ToolEvent{Tool: ToolSearch, Query: "b"})
	c.Close()

	if got := testutil.ToFloat64(m.AnalyticsEventsTotal.WithLabelValues("failed")); got != 2 {
		t.Errorf("failed counter = %v, want 2", got)
	}
}

func sampleEvents() []ToolEvent {
	return []ToolEvent{
		{Tool: ToolSearch, Query: "RevPAR", Outcome: OutcomeOK, Returned: 3, LatencyMs: 10},
		{Tool: ToolSearch, Query: "revpar ", Outcome: OutcomeOK, Returned: 3, LatencyMs: 2, CacheHit: true},
		{Tool: ToolSearch, Query: "spaceship pricing", Outcome: OutcomeEmpty, LatencyMs: 4},
		{Tool: ToolGlossary, Query: "Occupy", Outcome: OutcomeNotFound, Method: "not_found", LatencyMs: 1},
		{Tool: ToolGlossary, Query: "occupy", Outcome: OutcomeNotFound, Method: "not_found", LatencyMs: 1},
		{Tool: ToolCaseStudy, Query: "country=japan", Outcome: OutcomeEmpty, LatencyMs: 3},
		{Tool: ToolSearch, Query: "", Outcome: OutcomeInvalidArgument, LatencyMs: 0},
	}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	for _, e := range sampleEvents() {
		agg.Record(e)
	}
	st := agg.Stats()

	if st.TotalCalls != 7 {
		t.Errorf("TotalCalls = %d, want 7", st.TotalCalls)
	}
	wantByTool := map[string]int64{ToolSearch: 4, ToolGlossary: 2, ToolCaseStudy: 1}
	if !reflect.DeepEqual(st.CallsByTool, wantByTool) {
		t.Errorf("CallsByTool = %v", st.CallsByTool)
	}
	if st.Outcomes[OutcomeNotFound] != 2 || st.Outcomes[OutcomeEmpty] != 2 || st.Outcomes[OutcomeOK] != 2 {
		t.Errorf("Outcomes = %v", st.Outcomes)
	}
	if st.CacheHits != 1 || st.CacheMisses != 3 {
		t.Errorf("cache hits/misses = %d/%d, want 1/3", st.CacheHits, st.CacheMisses)
	}
	if st.P50LatencyMs != 2 || st.P99LatencyMs != 10 {
		t.Errorf("p50/p99 = %d/%d", st.P50LatencyMs, st.P99LatencyMs)
	}

	wantTop := []QueryCount{{"occupy", 2}, {"revpar", 2}, {"country=japan", 1}, {"spaceship pricing", 1}}
	if !reflect.DeepEqual(st.TopQueries, wantTop) {
		t.Errorf("TopQueries = %v, want %v", st.TopQueries, wantTop)
	}
	wantZero := []QueryCount{{"country=japan", 1}, {"spaceship pricing", 1}}
	if !reflect.DeepEqual(st.ZeroResultQueries, wantZero) {
		t.Errorf("ZeroResultQueries = %v", st.ZeroResultQueries)
	}
	if !reflect.DeepEqual(st.GlossaryMisses, []QueryCount{{"occupy", 2}}) {
		t.Errorf("GlossaryMisses = %v", st.GlossaryMisses)
	}
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)

	value, err := json.Marshal(ToolEvent{Tool: ToolGlossary, Query: "pace", Outcome: OutcomeOK})
	if err != nil {
		t.Fatal(err)
	}
	if err := handle(context.Background(), []byte(ToolGlossary), value); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if err := handle(context.Background(), nil, []byte("{not json")); err != nil {
		t.Fatalf("undecodable message error = %v, want nil", err)
	}
	if got := agg.Stats().TotalCalls; got != 1 {
		t.Errorf("TotalCalls = %d, want 1", got)
	}
}

func TestContentGapsHandler(t *testing.T) {
	agg := NewAggregator()
	for _, e := range sampleEvents() {
		agg.Record(e)
	}
	h := NewHandler(agg)

	rec := httptest.NewRecorder()
	h.ContentGaps(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/gaps?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		ZeroResult     []QueryCount `json:"zero_result_queries"`
		GlossaryMisses []QueryCount `json:"glossary_misses"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.ZeroResult) != 1 || body.ZeroResult[0].Query != "country=japan" {
		t.Errorf("zero_result_queries = %v", body.ZeroResult)
	}
	if len(body.GlossaryMisses) != 1 {
		t.Errorf("glossary_misses = %v", body.GlossaryMisses)
	}

	rec = httptest.NewRecorder()
	h.ContentGaps(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/gaps?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	var st AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil || st.TotalCalls != 7 {
		t.Errorf("stats = %+v, err = %v", st, err)
	}
}
