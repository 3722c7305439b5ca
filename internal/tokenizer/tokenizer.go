// Package tokenizer decomposes track text into index terms. It lower-cases
// and trims the input, then emits the full string, each whitespace-delimited
// word, and every contiguous character window of sizes 2 through 4 inside
// each word. No stemming, no stop-words, no locale-aware casing: the corpus
// is short proper-noun-heavy metadata, so determinism beats linguistics.
package tokenizer

import "strings"

// Window size bounds for character n-grams.
const (
	MinGram = 2
	MaxGram = 4
)

// Tokenize returns the deduplicated term set for text. Empty or
// whitespace-only input yields an empty set. Input shorter than MinGram after
// normalisation yields a single-element set holding the normalised text.
//
// Windowing operates on raw bytes. Multi-byte runes therefore produce
// byte-level windows, which is fine for matching because the query side is
// tokenized identically; the documented assumption is ASCII/Latin-oriented
// metadata.
func Tokenize(text string) map[string]struct{} {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return map[string]struct{}{}
	}
	terms := make(map[string]struct{})
	if len(normalized) < MinGram {
		terms[normalized] = struct{}{}
		return terms
	}
	terms[normalized] = struct{}{}
	for _, word := range strings.Fields(normalized) {
		if len(word) < MinGram {
			continue
		}
		terms[word] = struct{}{}
		for size := MinGram; size <= MaxGram; size++ {
			if size > len(word) {
				break
			}
			for i := 0; i+size <= len(word); i++ {
				terms[word[i:i+size]] = struct{}{}
			}
		}
	}
	return terms
}

// QueryTerms returns the terms a query intersects over. It is deliberately
// narrower than Tokenize: the index only stores the full string and whole
// words of text it has indexed, so requiring those on the query side would
// make every multi-word or long-word query miss. Each word of length at
// least MinGram contributes its windows of sizes MinGram through
// min(MaxGram, len(word)); those windows are guaranteed to be indexed for
// any record whose text contains the word as a substring.
//
// If no word is long enough to window, the normalised input itself is the
// single term, mirroring the short-input rule in Tokenize. The result is
// empty only for empty or whitespace-only input.
func QueryTerms(text string) map[string]struct{} {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return map[string]struct{}{}
	}
	terms := make(map[string]struct{})
	for _, word := range strings.Fields(normalized) {
		if len(word) < MinGram {
			continue
		}
		for size := MinGram; size <= MaxGram && size <= len(word); size++ {
			for i := 0; i+size <= len(word); i++ {
				terms[word[i:i+size]] = struct{}{}
			}
		}
	}
	if len(terms) == 0 {
		terms[normalized] = struct{}{}
	}
	return terms
}

// Normalize applies the same normalisation Tokenize does, without term
// expansion. The planner uses it for the verification substring.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
