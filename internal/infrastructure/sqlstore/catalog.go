package sqlstore

import (
	"context"
	"fmt"

	"github.com/healthshop/clerk/internal/domain"
)

// SemanticRanking returns product ids ordered by ascending cosine distance to embedding
func (s *Store) SemanticRanking(ctx context.Context, embedding []float32, filter *domain.PriceFilter, limit int) ([]int64, error) {
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("embedding has %d dimensions, store expects %d", len(embedding), s.dims)
	}
	ids, err := s.dialect.semanticRanking(ctx, s.db, embedding, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("semantic ranking: %w", err)
	}
	return ids, nil
}

// LexicalRanking returns ids of products whose description matches text, most relevant first
func (s *Store) LexicalRanking(ctx context.Context, text string, filter *domain.PriceFilter, limit int) ([]int64, error) {
	ids, err := s.dialect.lexicalRanking(ctx, s.db, text, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical ranking: %w", err)
	}
	return ids, nil
}

// ProductsByID loads products by id. Unknown ids are skipped; order is by id.
func (s *Store) ProductsByID(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := s.q(`SELECT id, name, description, price, link FROM product_listing
		WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id`)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Link); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// InsertProduct adds a catalog row and sets p.ID. Catalog rows normally come from an
// external ingestion job; this exists for seeding and tests.
func (s *Store) InsertProduct(ctx context.Context, p *domain.Product) error {
	if p.Embedding != nil && len(p.Embedding) != s.dims {
		return fmt.Errorf("embedding has %d dimensions, store expects %d", len(p.Embedding), s.dims)
	}

	query := s.q(`INSERT INTO product_listing (name, description, price, link, embedding)
		VALUES (?, ?, ?, ?, ?) RETURNING id`)
	err := s.db.QueryRowContext(ctx, query,
		p.Name, p.Description, p.Price.StringFixed(2), p.Link, s.dialect.encodeEmbedding(p.Embedding),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}
