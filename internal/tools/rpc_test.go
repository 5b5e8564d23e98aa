package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/rpc"
)

func newTestRPC(t *testing.T) *rpc.Client {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := rpc.NewServer()
	RegisterRPC(server, NewService(testCore(t), 5, Deps{}))
	go server.ServeListener(ln)
	t.Cleanup(server.Stop)

	client, err := rpc.Dial(ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRPCTools(t *testing.T) {
	client := newTestRPC(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var sr executor.SearchResult
	if err := client.Call(ctx, MethodSearch, SearchParams{Query: "minimum stay", TopK: intp(3)}, &sr); err != nil {
		t.Fatalf("Search call error = %v", err)
	}
	if len(sr.Results) == 0 || sr.Results[0].ID != "guide/pricing" {
		t.Errorf("search results = %+v", sr.Results)
	}

	var cr CaseStudyResult
	params := CaseStudyParams{Filters: map[string]string{"property_type": "hostel"}}
	if err := client.Call(ctx, MethodLookupCaseStudy, params, &cr); err != nil {
		t.Fatalf("LookupCaseStudy call error = %v", err)
	}
	if len(cr.Results) != 1 || cr.Results[0].ID != "case-study/lisbon" {
		t.Errorf("case studies = %+v", cr.Results)
	}

	var gr GlossaryResult
	if err := client.Call(ctx, MethodLookupGlossaryTerm, GlossaryParams{Name: "adr"}, &gr); err != nil {
		t.Fatalf("LookupGlossaryTerm call error = %v", err)
	}
	if gr.Term != "ADR" || gr.Definition == "" {
		t.Errorf("glossary = %+v", gr)
	}

	var st StatsReport
	if err := client.Call(ctx, MethodStats, nil, &st); err != nil {
		t.Fatalf("Stats call error = %v", err)
	}
	if st.GlossaryTerms != 3 {
		t.Errorf("stats = %+v", st)
	}
}

func TestRPCErrors(t *testing.T) {
	client := newTestRPC(t)
	ctx := context.Background()

	err := client.Call(ctx, MethodLookupGlossaryTerm, GlossaryParams{Name: "Occupy"}, nil)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	var ce *rpc.CallError
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not *rpc.CallError", err)
	}
	var details struct {
		Suggestion struct {
			Term string `json:"term"`
		} `json:"suggestion"`
	}
	if err := json.Unmarshal(ce.Details, &details); err != nil || details.Suggestion.Term != "Occupancy" {
		t.Errorf("details = %s (%v)", ce.Details, err)
	}

	if err := client.Call(ctx, MethodSearch, "not an object", nil); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Errorf("malformed params error = %v, want ErrInvalidArgument", err)
	}
	if err := client.Call(ctx, MethodSearch, SearchParams{}, nil); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Errorf("empty query error = %v, want ErrInvalidArgument", err)
	}
	err = client.Call(ctx, "Tools.Nope", nil, nil)
	if !errors.As(err, &ce) || ce.Code != rpc.CodeUnknownMethod {
		t.Errorf("unknown method error = %v", err)
	}
}
