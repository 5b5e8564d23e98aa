// Command loadtest drives a running content hub with a mix of search,
// case-study and glossary calls and reports latency percentiles.
//
//	go run ./cmd/loadtest -url http://localhost:8787 -duration 30s
//	go run ./cmd/loadtest -rpc localhost:8788 -concurrency 20
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/tools"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/rpc"
)

type Config struct {
	BaseURL     string
	RPCAddr     string
	Concurrency int
	Duration    time.Duration
}

// scenario is one tool call. The same scenario is issued over HTTP as a
// path and over RPC as a method with params.
type scenario struct {
	name   string
	path   string
	method string
	params any
}

func scenarios() []scenario {
	topK := 5
	var out []scenario
	for _, q := range []string{
		"rate parity", "direct bookings", "revpar growth", "overbooking strategy",
		"length of stay restrictions", "channel manager", "pricing for hostels",
		"spaceship pricing",
	} {
		out = append(out, scenario{
			name:   "search",
			path:   "/api/v1/search?q=" + url.QueryEscape(q) + "&top_k=5",
			method: tools.MethodSearch,
			params: tools.SearchParams{Query: q, TopK: &topK},
		})
	}
	for _, f := range []map[string]string{
		{"country": "Spain"},
		{"property_type": "Hostel"},
		{"challenge": "Seasonality", "country": "Portugal"},
	} {
		v := url.Values{}
		for k, val := range f {
			v.Set(k, val)
		}
		out = append(out, scenario{
			name:   "case_study",
			path:   "/api/v1/case-studies?" + v.Encode(),
			method: tools.MethodLookupCaseStudy,
			params: tools.CaseStudyParams{Filters: f, TopK: &topK},
		})
	}
	for _, term := range []string{"ADR", "RevPAR", "occupancy rate", "revpr", "pickup"} {
		out = append(out, scenario{
			name:   "glossary",
			path:   "/api/v1/glossary/" + url.PathEscape(term),
			method: tools.MethodLookupGlossaryTerm,
			params: tools.GlossaryParams{Name: term},
		})
	}
	return out
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	outcomes      map[string]*atomic.Int64
	outcomesMu    sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 100000),
		outcomes:  make(map[string]*atomic.Int64),
	}
}

// RecordRequest counts one call. outcome is an HTTP status or an RPC error
// code; transport failures pass err and no outcome.
func (s *Stats) RecordRequest(tool string, duration time.Duration, outcome string, ok bool, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		outcome = "transport_error"
	} else if ok {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	if err == nil {
		s.latenciesMu.Lock()
		s.latencies = append(s.latencies, duration)
		s.latenciesMu.Unlock()
	}

	key := tool + " " + outcome
	s.outcomesMu.Lock()
	if _, found := s.outcomes[key]; !found {
		s.outcomes[key] = &atomic.Int64{}
	}
	s.outcomes[key].Add(1)
	s.outcomesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8787", "base URL of the tool HTTP API")
	rpcAddr := flag.String("rpc", "", "RPC address; when set, calls go over RPC instead of HTTP")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		RPCAddr:     *rpcAddr,
		Concurrency: *concurrency,
		Duration:    *duration,
	}
	target := cfg.BaseURL
	if cfg.RPCAddr != "" {
		target = "rpc://" + cfg.RPCAddr
	}

	fmt.Println("=== Content Hub Load Test ===")
	fmt.Printf("Target:      %s\n", target)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Scenarios:   %d\n", len(scenarios()))
	fmt.Println()

	stats, err := runLoadTest(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}
	printReport(stats, cfg.Duration)
}

// caller issues one scenario and reports its outcome.
type caller func(ctx context.Context, sc scenario) (outcome string, ok bool, err error)

func httpCaller(baseURL string, concurrency int) caller {
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return func(ctx context.Context, sc scenario) (string, bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+sc.path, nil)
		if err != nil {
			return "", false, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", false, err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		// A glossary miss is a valid answer, not a failure.
		ok := resp.StatusCode < 300 || resp.StatusCode == http.StatusNotFound
		return fmt.Sprint(resp.StatusCode), ok, nil
	}
}

func rpcCaller(client *rpc.Client) caller {
	return func(ctx context.Context, sc scenario) (string, bool, error) {
		err := client.Call(ctx, sc.method, sc.params, nil)
		if err == nil {
			return "ok", true, nil
		}
		var ce *rpc.CallError
		if errors.As(err, &ce) {
			return ce.Code, ce.Code == rpc.CodeNotFound, nil
		}
		return "", false, err
	}
}

func runLoadTest(cfg Config) (*Stats, error) {
	call := httpCaller(cfg.BaseURL, cfg.Concurrency)
	if cfg.RPCAddr != "" {
		client, err := rpc.Dial(cfg.RPCAddr)
		if err != nil {
			return nil, fmt.Errorf("dialing %s: %w", cfg.RPCAddr, err)
		}
		defer client.Close()
		call = rpcCaller(client)
	}

	stats := NewStats()
	all := scenarios()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			idx := workerID
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				sc := all[idx%len(all)]
				idx++

				start := time.Now()
				outcome, ok, err := call(ctx, sc)
				if ctx.Err() != nil {
					return
				}
				stats.RecordRequest(sc.name, time.Since(start), outcome, ok, err)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats, nil
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errCount := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errCount)

	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errCount)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])

		var sumSquared float64
		for _, l := range latencies {
			diff := float64(l) - float64(avg)
			sumSquared += diff * diff
		}
		fmt.Printf("StdDev: %s\n", time.Duration(math.Sqrt(sumSquared/float64(len(latencies)))))
	}

	fmt.Println()
	fmt.Println("=== Outcomes ===")
	stats.outcomesMu.Lock()
	keys := make([]string, 0, len(stats.outcomes))
	for k := range stats.outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-28s %d\n", k, stats.outcomes[k].Load())
	}
	stats.outcomesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
