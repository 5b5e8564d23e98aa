package index

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/errors"
)

func testDocs() []*corpus.Document {
	return []*corpus.Document{
		{ID: "article/adr", Kind: corpus.KindArticle, Title: "Average Daily Rate explained",
			Body: "ADR measures the average rate paid per occupied room at the hotel."},
		{ID: "article/revpar", Kind: corpus.KindArticle, Title: "RevPAR fundamentals",
			Body: "RevPAR combines occupancy and ADR into one hotel metric for revenue managers."},
		{ID: "guide/pricing", Kind: corpus.KindGuide, Title: "Dynamic pricing guide",
			Body: "Dynamic pricing adjusts hotel rates with demand, events and booking pace."},
		{ID: "page/about", Kind: corpus.KindPage, Title: "About us",
			Body: "We help independent hotel owners grow revenue with smarter pricing tools."},
		{ID: "case-study/alpine", Kind: corpus.KindCaseStudy, Title: "Alpine boutique hotel",
			Body: "A boutique hotel in Switzerland improved occupancy during shoulder season."},
	}
}

func buildTestIndex(t testing.TB) *Index {
	t.Helper()
	ix, err := Build(testDocs(), DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return ix
}

func ids(results []ranker.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.DocID
	}
	return out
}

func TestBuildEmptyCorpus(t *testing.T) {
	tests := []struct {
		name string
		docs []*corpus.Document
	}{
		{"no documents", nil},
		{"only stop words", []*corpus.Document{{ID: "page/x", Kind: corpus.KindPage, Title: "The", Body: "and of the"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.docs, DefaultOptions())
			if !errors.Is(err, apperrors.ErrEmptyCorpus) {
				t.Errorf("Build() error = %v, want ErrEmptyCorpus", err)
			}
		})
	}
}

func TestBuildSkipsUnindexableDocuments(t *testing.T) {
	docs := append(testDocs(), &corpus.Document{ID: "page/empty", Kind: corpus.KindPage, Title: "", Body: "a an the"})
	ix, err := Build(docs, DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	st := ix.Stats()
	if st.Documents != 5 || st.Skipped != 1 {
		t.Errorf("Stats() = %+v, want 5 documents and 1 skipped", st)
	}
	if ix.Contains("page/empty") {
		t.Error("unindexable document should not be contained")
	}
}

func TestTermVectorWeightsTitle(t *testing.T) {
	tf := termVector("RevPAR basics", "revpar explained", 3)
	want := map[string]float64{"revpar": 4, "basics": 3, "explained": 1}
	if len(tf) != len(want) {
		t.Fatalf("termVector() = %v, want %v", tf, want)
	}
	for term, w := range want {
		if tf[term] != w {
			t.Errorf("tf[%q] = %v, want %v", term, tf[term], w)
		}
	}
}

func TestIDF(t *testing.T) {
	ix := buildTestIndex(t)
	tests := []struct {
		term  string
		want  float64
		inVoc bool
	}{
		{"revpar", math.Log(5.0 / 2.0), true},
		{"adr", math.Log(5.0 / 3.0), true},
		{"hotel", 0, true},
		{"forecast", 0, false},
	}
	for _, tt := range tests {
		got, ok := ix.IDF(tt.term)
		if ok != tt.inVoc || math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("IDF(%q) = (%v, %v), want (%v, %v)", tt.term, got, ok, tt.want, tt.inVoc)
		}
	}
}

func TestQuery(t *testing.T) {
	ix := buildTestIndex(t)
	tests := []struct {
		name      string
		query     string
		wantFirst string
		wantLen   int
	}{
		{"single rare term", "revpar", "article/revpar", 1},
		{"two documents share term", "ADR", "", 2},
		{"multi term", "dynamic pricing", "guide/pricing", 2},
		{"term in every document", "hotel", "", 0},
		{"unknown term", "forecasting", "", 0},
		{"stop words only", "the and of", "", 0},
		{"empty", "", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ix.Query(tt.query, 10)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if got == nil {
				t.Fatal("Query() returned nil, want empty slice")
			}
			if len(got) != tt.wantLen {
				t.Fatalf("Query(%q) = %v, want %d results", tt.query, ids(got), tt.wantLen)
			}
			if tt.wantFirst != "" && got[0].DocID != tt.wantFirst {
				t.Errorf("Query(%q)[0] = %s, want %s", tt.query, got[0].DocID, tt.wantFirst)
			}
		})
	}
}

func TestQueryInvalidTopK(t *testing.T) {
	ix := buildTestIndex(t)
	for _, k := range []int{0, -1} {
		if _, err := ix.Query("revpar", k); !errors.Is(err, apperrors.ErrInvalidArgument) {
			t.Errorf("Query(topK=%d) error = %v, want ErrInvalidArgument", k, err)
		}
	}
}

func TestQueryOrderingAndFloor(t *testing.T) {
	ix := buildTestIndex(t)
	for _, q := range []string{"occupancy revenue pricing", "boutique hotel occupancy", "adr revpar rate"} {
		got, err := ix.Query(q, 20)
		if err != nil {
			t.Fatalf("Query(%q) error = %v", q, err)
		}
		for i, r := range got {
			if r.Score < ix.MinSimilarity() || r.Score > 1 {
				t.Errorf("Query(%q) %s score %v outside [floor, 1]", q, r.DocID, r.Score)
			}
			if r.Overlap < 1 {
				t.Errorf("Query(%q) %s overlap = %d", q, r.DocID, r.Overlap)
			}
			if i > 0 && ranker.Less(r, got[i-1]) {
				t.Errorf("Query(%q) results out of order at %d: %+v before %+v", q, i, got[i-1], r)
			}
		}
	}
}

func TestQueryDeterministic(t *testing.T) {
	ix := buildTestIndex(t)
	first, _ := ix.Query("occupancy revenue pricing hotel", 20)
	for i := 0; i < 20; i++ {
		got, _ := ix.Query("occupancy revenue pricing hotel", 20)
		if fmt.Sprint(got) != fmt.Sprint(first) {
			t.Fatalf("run %d: %v != %v", i, got, first)
		}
	}
}

func TestQueryTopKBeyondCandidates(t *testing.T) {
	ix := buildTestIndex(t)
	all, _ := ix.Query("occupancy revenue", 20)
	one, _ := ix.Query("occupancy revenue", 1)
	if len(one) != 1 || one[0] != all[0] {
		t.Errorf("Query(topK=1) = %v, want first of %v", one, all)
	}
	seen := make(map[string]bool)
	for _, r := range all {
		if seen[r.DocID] {
			t.Errorf("duplicate result %s", r.DocID)
		}
		seen[r.DocID] = true
	}
	if len(all) != 3 {
		t.Errorf("Query() returned %v, want 3 candidates", ids(all))
	}
}

func TestQueryFiltered(t *testing.T) {
	ix := buildTestIndex(t)
	keep := func(id string) bool { return id != "guide/pricing" }
	got, err := ix.QueryFiltered("pricing", 1, keep)
	if err != nil {
		t.Fatalf("QueryFiltered() error = %v", err)
	}
	if len(got) != 1 || got[0].DocID != "page/about" {
		t.Errorf("QueryFiltered() = %v, want [page/about]", ids(got))
	}
}

func TestMinSimilarityBoundary(t *testing.T) {
	ix := buildTestIndex(t)
	got, _ := ix.Query("pricing", 10)
	if len(got) != 2 {
		t.Fatalf("Query() = %v, want 2 results", ids(got))
	}
	// Query rounds scores, so the floor comes from the raw similarity.
	lowest, _ := ix.Score(ix.Vectorize("pricing"), got[len(got)-1].DocID)

	opts := DefaultOptions()
	opts.MinSimilarity = lowest
	atFloor, err := Build(testDocs(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if res, _ := atFloor.Query("pricing", 10); len(res) != 2 {
		t.Errorf("score equal to floor should be kept, got %v", ids(res))
	}

	opts.MinSimilarity = math.Nextafter(lowest, 1)
	aboveFloor, err := Build(testDocs(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if res, _ := aboveFloor.Query("pricing", 10); len(res) != 1 {
		t.Errorf("score below floor should be dropped, got %v", ids(res))
	}
}

func TestScore(t *testing.T) {
	ix := buildTestIndex(t)
	v := ix.Vectorize("boutique occupancy")
	sim, overlap := ix.Score(v, "case-study/alpine")
	if sim <= 0 || overlap != 2 {
		t.Errorf("Score() = (%v, %d), want positive similarity and overlap 2", sim, overlap)
	}
	if sim, overlap := ix.Score(v, "missing/doc"); sim != 0 || overlap != 0 {
		t.Errorf("Score(unknown) = (%v, %d), want (0, 0)", sim, overlap)
	}
}

func TestTopTerms(t *testing.T) {
	ix := buildTestIndex(t)
	top := ix.TopTerms(1)
	if len(top) != 1 || top[0].Term != "hotel" || top[0].DocFreq != 5 {
		t.Errorf("TopTerms(1) = %+v, want hotel with doc freq 5", top)
	}
}

func syntheticDocs(n int) []*corpus.Document {
	docs := make([]*corpus.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, &corpus.Document{
			ID:    fmt.Sprintf("article/%04d", i),
			Kind:  corpus.KindArticle,
			Title: fmt.Sprintf("Revenue note %d", i),
			Body:  fmt.Sprintf("occupancy pricing forecast segment%d channel%d demand", i%37, i%11),
		})
	}
	return docs
}

func BenchmarkBuild(b *testing.B) {
	for _, n := range []int{100, 1000, 5000} {
		docs := syntheticDocs(n)
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Build(docs, DefaultOptions()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkQuery(b *testing.B) {
	ix, err := Build(syntheticDocs(2000), DefaultOptions())
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ix.Query("pricing segment7 channel3", 10)
	}
}

func BenchmarkQueryParallel(b *testing.B) {
	ix := buildTestIndex(b)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = ix.Query("occupancy revenue pricing", 5)
		}
	})
}
