package casestudy

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/errors"
)

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	docs := []corpus.Document{
		{ID: "article/occupancy", Kind: corpus.KindArticle, Title: "Occupancy",
			Body: "Occupancy measures sold rooms divided by available rooms each night."},
		{ID: "case-study/alpine", Kind: corpus.KindCaseStudy, Title: "Alpine boutique",
			Body:      "A boutique hotel in the Alps filled shoulder season rooms using dynamic pricing.",
			CaseStudy: &corpus.CaseStudy{PropertyType: "Hotel", Country: "Switzerland", Challenges: []string{"Low occupancy", "Seasonality"}}},
		{ID: "case-study/lisbon", Kind: corpus.KindCaseStudy, Title: "Lisbon hostel",
			Body:      "A city hostel in Lisbon smoothed seasonality with length of stay controls and group offers.",
			CaseStudy: &corpus.CaseStudy{PropertyType: "Hostel", Country: "Portugal", Challenges: []string{"seasonality"}}},
		{ID: "case-study/miami", Kind: corpus.KindCaseStudy, Title: "Miami beach resort",
			Body:      "A beach resort fixed rate parity issues and grew direct bookings through its website.",
			CaseStudy: &corpus.CaseStudy{PropertyType: "Resort", Country: "United States", Challenges: []string{"Rate parity", "Direct bookings"}}},
		{ID: "case-study/zurich", Kind: corpus.KindCaseStudy, Title: "Zurich business",
			Body:      "A business hotel in Zurich cut distribution costs by renegotiating channel commissions.",
			CaseStudy: &corpus.CaseStudy{PropertyType: "hotel", Country: "switzerland", Challenges: []string{"Distribution costs"}}},
	}
	store, err := corpus.NewStore(docs)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ix, err := index.Build(store.All(), index.DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return NewMatcher(store, ix, DefaultFilterWeight)
}

func matchIDs(ms []Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestFindByFilters(t *testing.T) {
	m := newTestMatcher(t)

	tests := []struct {
		name    string
		filters map[string]string
		want    []string
		scores  []float64
	}{
		{
			name:    "two filters both matched",
			filters: map[string]string{"property_type": "hotel", "country": "Switzerland"},
			want:    []string{"case-study/alpine", "case-study/zurich"},
			scores:  []float64{2, 2},
		},
		{
			name:    "challenge is case and space insensitive",
			filters: map[string]string{"challenge": "  SEASONALITY "},
			want:    []string{"case-study/alpine", "case-study/lisbon"},
			scores:  []float64{1, 1},
		},
		{
			name:    "partial matches rank below full matches",
			filters: map[string]string{"property_type": "resort", "challenge": "rate parity", "country": "switzerland"},
			want:    []string{"case-study/miami", "case-study/alpine", "case-study/zurich"},
			scores:  []float64{2, 1, 1},
		},
		{
			name:    "nothing matches",
			filters: map[string]string{"country": "Japan"},
			want:    []string{},
			scores:  []float64{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Find(tt.filters, "", 10)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if ids := matchIDs(got); !reflect.DeepEqual(ids, tt.want) {
				t.Fatalf("Find() ids = %v, want %v", ids, tt.want)
			}
			for i, s := range tt.scores {
				if got[i].Score != s {
					t.Errorf("score[%d] = %v, want %v", i, got[i].Score, s)
				}
			}
		})
	}
}

func TestFindFiltersAndText(t *testing.T) {
	m := newTestMatcher(t)
	got, err := m.Find(map[string]string{"country": "Switzerland"}, "dynamic pricing in shoulder season", 5)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if ids := matchIDs(got); !reflect.DeepEqual(ids, []string{"case-study/alpine", "case-study/zurich"}) {
		t.Fatalf("Find() ids = %v", ids)
	}
	if got[0].Score <= 1 || got[0].Similarity <= 0 {
		t.Errorf("alpine = %+v, want filter weight plus positive similarity", got[0])
	}
	if got[1].Score != 1 || got[1].Similarity != 0 {
		t.Errorf("zurich = %+v, want score 1 and no similarity", got[1])
	}
	if !reflect.DeepEqual(got[0].MatchedFilters, []string{corpus.AttrCountry}) {
		t.Errorf("matched filters = %v", got[0].MatchedFilters)
	}
}

func TestFindTextOnly(t *testing.T) {
	m := newTestMatcher(t)
	got, err := m.Find(nil, "rate parity", 5)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if ids := matchIDs(got); !reflect.DeepEqual(ids, []string{"case-study/miami"}) {
		t.Errorf("Find() ids = %v, want only miami", ids)
	}

	got, err = m.Find(nil, "spaceship", 5)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("unknown text matched %v", matchIDs(got))
	}
}

func TestFindBrowse(t *testing.T) {
	m := newTestMatcher(t)
	got, err := m.Find(map[string]string{"country": "  "}, " ", 3)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	want := []string{"case-study/alpine", "case-study/lisbon", "case-study/miami"}
	if ids := matchIDs(got); !reflect.DeepEqual(ids, want) {
		t.Errorf("browse ids = %v, want %v", ids, want)
	}
	for _, r := range got {
		if r.Score != 0 {
			t.Errorf("%s score = %v, want 0", r.ID, r.Score)
		}
	}
	if !IsBrowse(map[string]string{"country": "  "}, " ") {
		t.Error("IsBrowse() = false for blank inputs")
	}
	if IsBrowse(map[string]string{"country": "Portugal"}, "") || IsBrowse(nil, "pricing") {
		t.Error("IsBrowse() = true for a request with inputs")
	}
}

func TestFindInvalidArguments(t *testing.T) {
	m := newTestMatcher(t)
	tests := []struct {
		name    string
		filters map[string]string
		topK    int
	}{
		{"unknown filter", map[string]string{"stars": "5"}, 5},
		{"zero top_k", nil, 0},
		{"negative top_k", map[string]string{"country": "Portugal"}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Find(tt.filters, "", tt.topK)
			if !errors.Is(err, apperrors.ErrInvalidArgument) {
				t.Errorf("Find() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestFilterAliases(t *testing.T) {
	got, err := NormalizeFilters(map[string]string{"Challenges": "Rate  Parity", "PropertyType": "Resort"})
	if err != nil {
		t.Fatalf("NormalizeFilters() error = %v", err)
	}
	want := map[string]string{corpus.AttrChallenge: "rate parity", corpus.AttrPropertyType: "resort"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeFilters() = %v, want %v", got, want)
	}
}

func TestValues(t *testing.T) {
	m := newTestMatcher(t)
	if got := m.Values(corpus.AttrCountry); !reflect.DeepEqual(got, []string{"Portugal", "Switzerland", "United States"}) {
		t.Errorf("Values(country) = %v", got)
	}
	if m.Len() != 4 {
		t.Errorf("Len() = %d, want 4", m.Len())
	}
}
