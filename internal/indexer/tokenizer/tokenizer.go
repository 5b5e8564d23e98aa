// Package tokenizer provides text tokenisation for the content index.
// It lower-cases input, splits on non-alphanumeric boundaries, drops very
// short tokens and stop-words, and keeps surface forms as they are (no
// stemming), so indexing and querying compare exact words.
package tokenizer

import (
	"strings"
	"unicode"
)

// MinTokenLength is the shortest token kept.
const MinTokenLength = 2

var stopWords = map[string]struct{}{
	"an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "from": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"being": {}, "have": {}, "has": {}, "had": {}, "do": {}, "does": {},
	"did": {}, "will": {}, "would": {}, "could": {}, "should": {}, "may": {},
	"might": {}, "shall": {}, "can": {}, "this": {}, "that": {}, "these": {},
	"those": {}, "it": {}, "its": {}, "you": {}, "he": {}, "she": {}, "we": {},
	"they": {}, "me": {}, "him": {}, "her": {}, "us": {}, "them": {}, "my": {},
	"your": {}, "his": {}, "our": {}, "their": {}, "what": {}, "which": {},
	"who": {}, "whom": {}, "where": {}, "when": {}, "why": {}, "how": {},
	"not": {}, "no": {}, "nor": {}, "if": {}, "then": {}, "than": {}, "so": {},
	"as": {}, "up": {}, "out": {}, "about": {}, "into": {}, "through": {},
	"during": {}, "before": {}, "after": {}, "above": {}, "below": {},
	"between": {}, "under": {}, "again": {}, "further": {}, "once": {},
	"here": {}, "there": {}, "all": {}, "each": {}, "every": {}, "both": {},
	"few": {}, "more": {}, "most": {}, "other": {}, "some": {}, "such": {},
	"only": {}, "own": {}, "same": {}, "just": {}, "also": {}, "very": {},
	"too": {}, "quite": {}, "rather": {}, "enough": {},
}

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into lowercased Tokens with short tokens and
// stop-words removed. Positions count kept tokens only.
func Tokenize(text string) []Token {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words)/2)
	pos := 0
	for _, word := range words {
		if len([]rune(word)) < MinTokenLength {
			continue
		}
		if IsStopWord(word) {
			continue
		}
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Terms returns just the terms of Tokenize(text), in order.
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// IsStopWord reports whether the already-lowercased word is ignored.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}
