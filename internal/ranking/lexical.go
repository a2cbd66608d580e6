package ranking

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LexicalScorerName is reported in Stats.RerankerUsed when lexical scoring was used.
const LexicalScorerName = "lexical"

// minTokenLength is the shortest token kept by Tokenize.
const minTokenLength = 3

// Tokenize lower-cases text and splits it on non-word runes. Letters, digits
// and underscores are word runes. Tokens of two runes or fewer are dropped.
func Tokenize(text string) []string {
	words := splitWords(text)
	tokens := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) >= minTokenLength {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// splitWords lower-cases text and splits it on non-word runes without any
// length filtering.
func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// LexicalScorer is the term-frequency relevance scorer. It has no external
// dependencies and is always available, which makes it the mandatory fallback
// for any other RelevanceScorer.
type LexicalScorer struct{}

// NewLexicalScorer creates a new LexicalScorer.
func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{}
}

// Name returns "lexical".
func (s *LexicalScorer) Name() string {
	return LexicalScorerName
}

// IsAvailable always returns true.
func (s *LexicalScorer) IsAvailable(context.Context) bool {
	return true
}

// Rank implements RelevanceScorer. It never returns an error.
func (s *LexicalScorer) Rank(_ context.Context, query string, candidates []Candidate) ([]ScoredCandidate, error) {
	scores := s.Scores(query, candidates)
	scored := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = ScoredCandidate{Candidate: c, Score: scores[i]}
	}
	return scored, nil
}

// Scores returns one lexical relevance score per candidate, in input order.
//
// For every query token the token's frequency in the candidate's combined text
// (title, snippet and content) divided by the candidate's token count is
// summed; the sum is then divided by the number of query tokens. Repeated query
// tokens count repeatedly.
func (s *LexicalScorer) Scores(query string, candidates []Candidate) []float64 {
	scores := make([]float64, len(candidates))
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return scores
	}

	for i, c := range candidates {
		docTokens := Tokenize(c.text())
		if len(docTokens) == 0 {
			continue
		}

		freq := make(map[string]int, len(docTokens))
		for _, t := range docTokens {
			freq[t]++
		}

		total := float64(len(docTokens))
		var sum float64
		for _, q := range queryTokens {
			sum += float64(freq[q]) / total
		}
		scores[i] = sum / float64(len(queryTokens))
	}
	return scores
}
