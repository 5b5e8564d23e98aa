package tokenizer

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestTerms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", []string{}},
		{"whitespace only", "   \t\n", []string{}},
		{"lowercases", "RevPAR ADR", []string{"revpar", "adr"}},
		{"strips punctuation", "pricing, forecasting; (demand)!", []string{"pricing", "forecasting", "demand"}},
		{"drops stop words", "what is the best rate for a hotel", []string{"best", "rate", "hotel"}},
		{"drops single characters", "a b c rate x", []string{"rate"}},
		{"keeps digits", "top 10 tips for 2024", []string{"top", "10", "tips", "2024"}},
		{"splits hyphens and slashes", "length-of-stay/no-show", []string{"length", "stay", "show"}},
		{"no stemming", "pricing prices priced", []string{"pricing", "prices", "priced"}},
		{"unicode letters", "Café Zürich", []string{"café", "zürich"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Terms(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Terms(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTokenizePositionsCountKeptTokens(t *testing.T) {
	tokens := Tokenize("The occupancy of the hotel")
	want := []Token{{Term: "occupancy", Position: 0}, {Term: "hotel", Position: 1}}
	if !reflect.DeepEqual(tokens, want) {
		t.Errorf("Tokenize() = %+v, want %+v", tokens, want)
	}
}

func TestTokenizeDeterministic(t *testing.T) {
	text := "Dynamic pricing helps independent hotels grow RevPAR and ADR."
	first := Terms(text)
	for i := 0; i < 10; i++ {
		if got := Terms(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: Terms() = %v, want %v", i, got, first)
		}
	}
}

func TestIsStopWord(t *testing.T) {
	if !IsStopWord("the") {
		t.Error("expected \"the\" to be a stop word")
	}
	if IsStopWord("revenue") {
		t.Error("did not expect \"revenue\" to be a stop word")
	}
}

func BenchmarkTokenize(b *testing.B) {
	text := strings.Repeat(`Revenue management helps hotels set the right price for
        the right guest at the right time. Occupancy, ADR and RevPAR are the core
        metrics every independent hotelier should track each week. `, 20)
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = Tokenize(text)
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := "Dynamic pricing adjusts room rates with demand, local events and booking pace."
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Tokenize(text)
		}
	})
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	base := "hotel revenue occupancy pricing forecast "
	for _, size := range []int{10, 100, 1000, 5000} {
		text := strings.Repeat(base, size/len(base)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}
