package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/kafka"
)

const (
	topListSize  = 10
	maxLatencies = 50000
)

// AggregatedStats is the content-gap report: what agents ask for, what
// comes back empty and which glossary terms are missing.
type AggregatedStats struct {
	TotalCalls        int64             `json:"total_calls"`
	CallsByTool       map[string]int64  `json:"calls_by_tool"`
	Outcomes          map[Outcome]int64 `json:"outcomes"`
	CacheHits         int64             `json:"cache_hits"`
	CacheMisses       int64             `json:"cache_misses"`
	AvgLatencyMs      float64           `json:"avg_latency_ms"`
	P50LatencyMs      int64             `json:"p50_latency_ms"`
	P95LatencyMs      int64             `json:"p95_latency_ms"`
	P99LatencyMs      int64             `json:"p99_latency_ms"`
	TopQueries        []QueryCount      `json:"top_queries"`
	ZeroResultQueries []QueryCount      `json:"zero_result_queries"`
	GlossaryMisses    []QueryCount      `json:"glossary_misses"`
	CallsPerMinute    float64           `json:"calls_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds tool events into running totals. It is safe for
// concurrent use.
type Aggregator struct {
	mu                sync.RWMutex
	totalCalls        int64
	callsByTool       map[string]int64
	outcomes          map[Outcome]int64
	cacheHits         int64
	cacheMisses       int64
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	glossaryMisses    map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		callsByTool:       make(map[string]int64),
		outcomes:          make(map[Outcome]int64),
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		glossaryMisses:    make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a Kafka message handler feeding agg. Undecodable
// messages are logged and acknowledged so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ToolEvent](value)
		if err != nil || event.Tool == "" {
			agg.logger.Error("failed to decode tool event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Record adds one event to the totals.
func (a *Aggregator) Record(event ToolEvent) {
	query := normalizeQuery(event.Query)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalCalls++
	a.callsByTool[event.Tool]++
	a.outcomes[event.Outcome]++
	if event.Tool == ToolSearch {
		if event.CacheHit {
			a.cacheHits++
		} else {
			a.cacheMisses++
		}
	}
	if len(a.latencies) < maxLatencies {
		a.latencies = append(a.latencies, event.LatencyMs)
	}
	if query == "" {
		return
	}
	a.queryCounts[query]++
	switch {
	case event.Tool == ToolGlossary && event.Outcome == OutcomeNotFound:
		a.glossaryMisses[query]++
	case event.Outcome == OutcomeEmpty:
		a.zeroResultQueries[query]++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalCalls:  a.totalCalls,
		CallsByTool: make(map[string]int64, len(a.callsByTool)),
		Outcomes:    make(map[Outcome]int64, len(a.outcomes)),
		CacheHits:   a.cacheHits,
		CacheMisses: a.cacheMisses,
	}
	for k, v := range a.callsByTool {
		stats.CallsByTool[k] = v
	}
	for k, v := range a.outcomes {
		stats.Outcomes[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, topListSize)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, topListSize)
	stats.GlossaryMisses = topN(a.glossaryMisses, topListSize)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.CallsPerMinute = float64(stats.TotalCalls) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent queries; equal counts are ordered by
// query text.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
