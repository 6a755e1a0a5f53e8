package sqlstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"

	"github.com/healthshop/clerk/internal/domain"
)

// sqliteDialect ranks with FTS5 bm25 and cosine distance computed in Go over
// embeddings stored as little-endian float32 blobs
type sqliteDialect struct{}

func (sqliteDialect) name() string       { return "sqlite" }
func (sqliteDialect) driverName() string { return "sqlite" }
func (sqliteDialect) singleWriter() bool { return true }
func (sqliteDialect) priceExpr() string  { return "CAST(price AS REAL)" }

func (sqliteDialect) rebind(query string) string {
	return query
}

func (sqliteDialect) encodeEmbedding(v []float32) any {
	if v == nil {
		return nil
	}
	return encodeVector(v)
}

// sqliteDSN enables foreign keys and a busy timeout on every connection
func sqliteDSN(path string) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + params.Encode()
}

func (sqliteDialect) schema(dims int) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS product_listing (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price       TEXT NOT NULL,
			link        TEXT NOT NULL DEFAULT '',
			embedding   BLOB
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS product_fts USING fts5(
			description,
			content='product_listing',
			content_rowid='id',
			tokenize='porter unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS product_listing_ai AFTER INSERT ON product_listing BEGIN
			INSERT INTO product_fts (rowid, description) VALUES (new.id, new.description);
		END`,
		`CREATE TRIGGER IF NOT EXISTS product_listing_ad AFTER DELETE ON product_listing BEGIN
			INSERT INTO product_fts (product_fts, rowid, description) VALUES ('delete', old.id, old.description);
		END`,
		`CREATE TRIGGER IF NOT EXISTS product_listing_au AFTER UPDATE ON product_listing BEGIN
			INSERT INTO product_fts (product_fts, rowid, description) VALUES ('delete', old.id, old.description);
			INSERT INTO product_fts (rowid, description) VALUES (new.id, new.description);
		END`,
		`CREATE TABLE IF NOT EXISTS shopping_cart (
			id                     INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id                INTEGER NOT NULL,
			product_id             INTEGER NOT NULL REFERENCES product_listing (id),
			quantity               INTEGER NOT NULL,
			status                 TEXT NOT NULL CHECK (status IN ('CART', 'PAID')),
			status_date            TEXT,
			estimated_arrival_date TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_shopping_cart_open_line
			ON shopping_cart (user_id, product_id) WHERE status = 'CART'`,
		`CREATE INDEX IF NOT EXISTS idx_shopping_cart_user_status
			ON shopping_cart (user_id, status)`,
	}
}

func (d sqliteDialect) semanticRanking(ctx context.Context, q querier, embedding []float32, filter *domain.PriceFilter, limit int) ([]int64, error) {
	clause, args, err := priceClause(d, filter)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `SELECT id, embedding FROM product_listing WHERE embedding IS NOT NULL`+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scored struct {
		id       int64
		distance float64
	}
	var candidates []scored
	for rows.Next() {
		var (
			id   int64
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", id, err)
		}
		candidates = append(candidates, scored{id: id, distance: cosineDistance(embedding, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].id < candidates[j].id
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	return ids, nil
}

func (d sqliteDialect) lexicalRanking(ctx context.Context, q querier, text string, filter *domain.PriceFilter, limit int) ([]int64, error) {
	match := ftsMatchExpr(text)
	if match == "" {
		return []int64{}, nil
	}
	clause, filterArgs, err := priceClause(d, filter)
	if err != nil {
		return nil, err
	}

	query := `SELECT p.id FROM product_fts f
		JOIN product_listing p ON p.id = f.rowid
		WHERE product_fts MATCH ?` + clause + `
		ORDER BY bm25(product_fts), p.id
		LIMIT ?`
	args := append([]any{match}, filterArgs...)
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

// ftsMatchExpr quotes every term so user text cannot inject FTS5 syntax.
// Adjacent quoted terms are an implicit AND, like plainto_tsquery.
func ftsMatchExpr(text string) string {
	terms := strings.Fields(text)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

// cosineDistance is 1 - cosine similarity, matching pgvector's <=> operator.
// Vectors of different length or zero norm are maximally distant.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
