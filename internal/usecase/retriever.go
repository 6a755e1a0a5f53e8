package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/healthshop/clerk/internal/domain"
)

// RetrieverConfig tunes reciprocal-rank fusion
type RetrieverConfig struct {
	K              int // RRF damping constant
	CandidateLimit int // depth of each ranking
	ResultLimit    int // default number of fused results
}

// Retriever runs hybrid search: a semantic and a lexical ranking fused by
// reciprocal-rank fusion.
type Retriever struct {
	catalog        domain.CatalogRepository
	embedder       domain.Embedder
	preprocessor   *QueryPreprocessor
	logger         *zap.Logger
	k              int
	candidateLimit int
	resultLimit    int
}

// NewRetriever creates a retriever. Zero config values fall back to k=60, 20 candidates
// and 5 results.
func NewRetriever(catalog domain.CatalogRepository, embedder domain.Embedder, logger *zap.Logger, config RetrieverConfig) *Retriever {
	r := &Retriever{
		catalog:        catalog,
		embedder:       embedder,
		preprocessor:   NewQueryPreprocessor(logger),
		logger:         logger,
		k:              config.K,
		candidateLimit: config.CandidateLimit,
		resultLimit:    config.ResultLimit,
	}
	if r.k <= 0 {
		r.k = 60
	}
	if r.candidateLimit <= 0 {
		r.candidateLimit = 20
	}
	if r.resultLimit <= 0 {
		r.resultLimit = 5
	}
	return r
}

// ResultLimit is the default number of results for a general search
func (r *Retriever) ResultLimit() int {
	return r.resultLimit
}

// Fuse combines rankings with reciprocal-rank fusion: each id scores the sum of
// 1/(k+rank) over the rankings it appears in, rank starting at 1. Output is sorted
// by score descending, ties by id ascending. A repeated id within one ranking
// counts only at its first position.
func Fuse(k int, rankings ...[]int64) []domain.RankedCandidate {
	scores := make(map[int64]float64)
	for _, ranking := range rankings {
		seen := make(map[int64]bool, len(ranking))
		for i, id := range ranking {
			if seen[id] {
				continue
			}
			seen[id] = true
			scores[id] += 1.0 / float64(k+i+1)
		}
	}

	fused := make([]domain.RankedCandidate, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, domain.RankedCandidate{ProductID: id, Score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ProductID < fused[j].ProductID
	})
	return fused
}

// Search returns at most limit products for query, best first. An empty result is
// not an error; embedding or store failures are.
func (r *Retriever) Search(ctx context.Context, query string, filter *domain.PriceFilter, limit int) ([]domain.ScoredProduct, error) {
	if limit <= 0 {
		limit = r.resultLimit
	}

	candidates, err := r.rank(ctx, query, filter)
	if err != nil {
		return nil, err
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	if len(candidates) == 0 {
		return []domain.ScoredProduct{}, nil
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ProductID
	}
	products, err := r.catalog.ProductsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
	}

	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	results := make([]domain.ScoredProduct, 0, len(candidates))
	for _, c := range candidates {
		p, ok := byID[c.ProductID]
		if !ok {
			continue
		}
		results = append(results, domain.ScoredProduct{Product: p, Score: c.Score})
	}

	r.logger.Debug("hybrid search",
		zap.String("query", query),
		zap.Stringer("filter", filter),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// BestMatch resolves query to the single best product, or nil when nothing matches
func (r *Retriever) BestMatch(ctx context.Context, query string) (*domain.Product, error) {
	results, err := r.Search(ctx, query, nil, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0].Product, nil
}

// BestMatchAmong takes the global fused top results for query and returns the best
// one whose id is in ids. The bool is false when none of them is.
func (r *Retriever) BestMatchAmong(ctx context.Context, query string, ids []int64) (int64, bool, error) {
	if len(ids) == 0 {
		return 0, false, nil
	}

	candidates, err := r.rank(ctx, query, nil)
	if err != nil {
		return 0, false, err
	}
	if len(candidates) > r.resultLimit {
		candidates = candidates[:r.resultLimit]
	}

	allowed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		allowed[id] = true
	}
	for _, c := range candidates {
		if allowed[c.ProductID] {
			return c.ProductID, true, nil
		}
	}
	return 0, false, nil
}

func (r *Retriever) rank(ctx context.Context, query string, filter *domain.PriceFilter) ([]domain.RankedCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", domain.ErrInvalidRequest)
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailure, err)
	}

	semantic, err := r.catalog.SemanticRanking(ctx, embedding, filter, r.candidateLimit)
	if errors.Is(err, domain.ErrInvalidPriceFilter) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: semantic ranking: %v", domain.ErrStoreFailure, err)
	}

	var lexical []int64
	if keywords := r.preprocessor.LexicalQuery(query); keywords != "" {
		lexical, err = r.catalog.LexicalRanking(ctx, keywords, filter, r.candidateLimit)
		if err != nil {
			return nil, fmt.Errorf("%w: lexical ranking: %v", domain.ErrStoreFailure, err)
		}
	}

	return Fuse(r.k, semantic, lexical), nil
}

// FormatSearchResults renders products as the markdown source block handed to the oracle
func FormatSearchResults(results []domain.ScoredProduct) string {
	if len(results) == 0 {
		return noMatchedProducts
	}

	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("## %s\n\nprice: $%s\n\ndescription: %s\n\nURL: %s",
			r.Product.Name, r.Product.Price.StringFixed(2), r.Product.Description, r.Product.Link)
	}
	return strings.Join(blocks, "\n\n")
}
