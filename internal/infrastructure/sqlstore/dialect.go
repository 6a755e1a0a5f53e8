package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/healthshop/clerk/internal/domain"
)

// dialect isolates what differs between Postgres and SQLite: schema, placeholders,
// and the two retrieval rankings
type dialect interface {
	name() string
	driverName() string
	// singleWriter reports whether the pool must be limited to one connection
	singleWriter() bool
	schema(dims int) []string
	rebind(query string) string
	// priceExpr is the numeric price expression used in filters
	priceExpr() string
	encodeEmbedding(v []float32) any
	semanticRanking(ctx context.Context, q querier, embedding []float32, filter *domain.PriceFilter, limit int) ([]int64, error)
	lexicalRanking(ctx context.Context, q querier, query string, filter *domain.PriceFilter, limit int) ([]int64, error)
}

// priceClause renders " AND <price> <op> ?" for filter, or "" when filter is nil.
// The operator comes from the closed ComparisonOperator set, never from raw input.
func priceClause(d dialect, filter *domain.PriceFilter) (string, []any, error) {
	if filter == nil {
		return "", nil, nil
	}
	op, err := domain.ParseComparisonOperator(string(filter.Operator))
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf(" AND %s %s ?", d.priceExpr(), op), []any{filter.Value.InexactFloat64()}, nil
}

// scanIDs reads a single id column and closes rows
func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
