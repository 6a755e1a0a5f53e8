package sqlstore

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/healthshop/clerk/internal/domain"
)

// postgresDialect ranks with pgvector cosine distance and english full-text search
type postgresDialect struct{}

func (postgresDialect) name() string       { return "postgres" }
func (postgresDialect) driverName() string { return "pgx" }
func (postgresDialect) singleWriter() bool { return false }
func (postgresDialect) priceExpr() string  { return "price" }

func (postgresDialect) rebind(query string) string {
	return rebindDollar(query)
}

func (postgresDialect) encodeEmbedding(v []float32) any {
	if v == nil {
		return nil
	}
	return pgvector.NewVector(v)
}

func (postgresDialect) schema(dims int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS product_listing (
			id          BIGSERIAL PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price       NUMERIC(12, 2) NOT NULL,
			link        TEXT NOT NULL DEFAULT '',
			embedding   vector(%d)
		)`, dims),
		`CREATE INDEX IF NOT EXISTS idx_product_listing_description_fts
			ON product_listing USING GIN (to_tsvector('english', description))`,
		`CREATE TABLE IF NOT EXISTS shopping_cart (
			id                     BIGSERIAL PRIMARY KEY,
			user_id                BIGINT NOT NULL,
			product_id             BIGINT NOT NULL REFERENCES product_listing (id),
			quantity               INTEGER NOT NULL,
			status                 TEXT NOT NULL CHECK (status IN ('CART', 'PAID')),
			status_date            DATE,
			estimated_arrival_date DATE
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_shopping_cart_open_line
			ON shopping_cart (user_id, product_id) WHERE status = 'CART'`,
		`CREATE INDEX IF NOT EXISTS idx_shopping_cart_user_status
			ON shopping_cart (user_id, status)`,
	}
}

func (d postgresDialect) semanticRanking(ctx context.Context, q querier, embedding []float32, filter *domain.PriceFilter, limit int) ([]int64, error) {
	clause, filterArgs, err := priceClause(d, filter)
	if err != nil {
		return nil, err
	}

	query := `SELECT id FROM product_listing
		WHERE embedding IS NOT NULL` + clause + `
		ORDER BY embedding <=> ?, id
		LIMIT ?`
	args := append(filterArgs, pgvector.NewVector(embedding), limit)

	rows, err := q.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func (d postgresDialect) lexicalRanking(ctx context.Context, q querier, text string, filter *domain.PriceFilter, limit int) ([]int64, error) {
	clause, filterArgs, err := priceClause(d, filter)
	if err != nil {
		return nil, err
	}

	query := `SELECT id FROM product_listing, plainto_tsquery('english', ?) query
		WHERE to_tsvector('english', description) @@ query` + clause + `
		ORDER BY ts_rank_cd(to_tsvector('english', description), query) DESC, id
		LIMIT ?`
	args := append([]any{text}, filterArgs...)
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}
