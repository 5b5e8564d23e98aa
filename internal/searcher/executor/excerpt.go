package executor

import (
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/indexer/tokenizer"
)

const ellipsis = "..."

// bestPassage picks the chunk containing the most distinct query terms,
// breaking ties by total occurrences and then by position. Documents
// without chunks fall back to the body, then the description.
func bestPassage(doc *corpus.Document, terms []string) string {
	if len(doc.Chunks) == 0 {
		if strings.TrimSpace(doc.Body) != "" {
			return doc.Body
		}
		return doc.Description
	}
	want := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		want[t] = struct{}{}
	}

	best, bestDistinct, bestHits := 0, -1, -1
	for i, chunk := range doc.Chunks {
		seen := make(map[string]struct{})
		hits := 0
		for _, tok := range tokenizer.Tokenize(chunk) {
			if _, ok := want[tok.Term]; ok {
				seen[tok.Term] = struct{}{}
				hits++
			}
		}
		if len(seen) > bestDistinct || (len(seen) == bestDistinct && hits > bestHits) {
			best, bestDistinct, bestHits = i, len(seen), hits
		}
	}
	return doc.Chunks[best]
}

// trimExcerpt shortens text to at most maxRunes runes, cutting at the last
// word boundary and appending an ellipsis.
func trimExcerpt(text string, maxRunes int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return text
	}
	limit := maxRunes - len(ellipsis)
	if limit <= 0 {
		return string(runes[:maxRunes])
	}
	cut := limit
	for cut > 0 && !unicode.IsSpace(runes[cut]) {
		cut--
	}
	if cut == 0 {
		cut = limit
	}
	return strings.TrimRightFunc(string(runes[:cut]), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + ellipsis
}
