package ranker

import (
	"math"
	"sort"
)

// Result is a single scored document. Overlap is the number of distinct
// query terms the document contains.
type Result struct {
	DocID   string  `json:"doc_id"`
	Score   float64 `json:"score"`
	Overlap int     `json:"overlap"`
}

// Less is the total result order: score descending, then overlap
// descending, then document id ascending.
func Less(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Overlap != b.Overlap {
		return a.Overlap > b.Overlap
	}
	return a.DocID < b.DocID
}

// Sort orders results in place by Less.
func Sort(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		return Less(results[i], results[j])
	})
}

// Rank rounds scores with Round, sorts results and truncates them to
// limit. Sorting on the rounded score keeps the returned order consistent
// with the scores callers see. A non-positive limit keeps everything.
func Rank(results []Result, limit int) []Result {
	for i := range results {
		results[i].Score = Round(results[i].Score)
	}
	Sort(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Cosine turns a dot product into a cosine similarity given both vector
// norms. Zero-norm vectors have similarity 0.
func Cosine(dot, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	// Guard against rounding drift above 1.
	return math.Min(dot/(normA*normB), 1)
}

// Norm returns the Euclidean norm of a sparse vector. Terms are summed in
// sorted order so the result is bit-for-bit reproducible.
func Norm(v map[string]float64) float64 {
	terms := make([]string, 0, len(v))
	for term := range v {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	var sum float64
	for _, term := range terms {
		sum += v[term] * v[term]
	}
	return math.Sqrt(sum)
}

// Round rounds a score to four decimal places for presentation.
func Round(score float64) float64 {
	return math.Round(score*10000) / 10000
}
