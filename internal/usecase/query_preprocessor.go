package usecase

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Compiled regex patterns for query preprocessing
var (
	// Anything that is not a letter, digit or whitespace
	punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

	// Multiple spaces cleanup
	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// queryStopWords carry no signal for full-text matching of product descriptions
var queryStopWords = map[string]bool{
	// Basic English stop words
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "with": true, "by": true, "from": true, "is": true,
	"it": true, "as": true, "be": true, "was": true, "are": true,
	"me": true, "my": true, "some": true, "any": true, "that": true,
	// Conversational filler
	"please": true, "want": true, "need": true, "looking": true, "find": true,
	"show": true, "buy": true, "get": true, "have": true, "do": true,
	"you": true, "i": true, "can": true, "something": true,
	// Generic shop terms
	"product": true, "products": true, "item": true, "items": true,
}

// QueryPreprocessor cleans user search phrases before they reach the catalog or
// the embedding cache
type QueryPreprocessor struct {
	logger *zap.Logger
}

// NewQueryPreprocessor creates a new query preprocessor
func NewQueryPreprocessor(logger *zap.Logger) *QueryPreprocessor {
	return &QueryPreprocessor{logger: logger}
}

// Normalize lower-cases the query, strips punctuation and collapses whitespace.
// Two queries that normalize equally share one cached embedding.
func (p *QueryPreprocessor) Normalize(query string) string {
	cleaned := punctuationPattern.ReplaceAllString(strings.ToLower(query), " ")
	cleaned = multiSpacePattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// CacheKey returns the embedding cache key for query
func (p *QueryPreprocessor) CacheKey(query string) string {
	return "embedding:" + p.Normalize(query)
}

// LexicalQuery reduces query to the keywords used for full-text matching.
// It returns "" when nothing but stop words remain.
func (p *QueryPreprocessor) LexicalQuery(query string) string {
	keywords := p.Keywords(query)
	out := strings.Join(keywords, " ")
	if p.logger != nil {
		p.logger.Debug("lexical query", zap.String("input", query), zap.String("output", out))
	}
	return out
}

// Keywords splits the normalized query and drops stop words and one-letter tokens
func (p *QueryPreprocessor) Keywords(query string) []string {
	words := strings.Fields(p.Normalize(query))

	keywords := make([]string, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, word := range words {
		if len([]rune(word)) <= 1 || queryStopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
	}
	return keywords
}
