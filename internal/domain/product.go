package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is a catalog row. Rows are maintained by an external ingestion process.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Link        string          `json:"link,omitempty"`
	Embedding   []float32       `json:"-"`
}

// RankedCandidate is a product id with its fused retrieval score
type RankedCandidate struct {
	ProductID int64   `json:"productId"`
	Score     float64 `json:"score"`
}

// ScoredProduct pairs a resolved product with its fused score
type ScoredProduct struct {
	Product Product `json:"product"`
	Score   float64 `json:"score"`
}

// ComparisonOperator is the closed set of operators a price filter may use
type ComparisonOperator string

const (
	OpGreater      ComparisonOperator = ">"
	OpLess         ComparisonOperator = "<"
	OpGreaterEqual ComparisonOperator = ">="
	OpLessEqual    ComparisonOperator = "<="
	OpEqual        ComparisonOperator = "="
)

// ParseComparisonOperator validates s against the supported operators
func ParseComparisonOperator(s string) (ComparisonOperator, error) {
	switch op := ComparisonOperator(strings.TrimSpace(s)); op {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpEqual:
		return op, nil
	case "==":
		return OpEqual, nil
	default:
		return "", fmt.Errorf("%w: unsupported comparison operator %q", ErrInvalidPriceFilter, s)
	}
}

// PriceFilter restricts retrieval to products whose price compares to Value
type PriceFilter struct {
	Operator ComparisonOperator `json:"comparisonOperator"`
	Value    decimal.Decimal    `json:"value"`
}

// Matches reports whether price satisfies the filter. A nil filter matches everything.
func (f *PriceFilter) Matches(price decimal.Decimal) bool {
	if f == nil {
		return true
	}
	switch f.Operator {
	case OpGreater:
		return price.GreaterThan(f.Value)
	case OpLess:
		return price.LessThan(f.Value)
	case OpGreaterEqual:
		return price.GreaterThanOrEqual(f.Value)
	case OpLessEqual:
		return price.LessThanOrEqual(f.Value)
	case OpEqual:
		return price.Equal(f.Value)
	}
	return false
}

// String renders the filter the way it is shown to the oracle and in logs
func (f *PriceFilter) String() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("price %s %s", f.Operator, f.Value.String())
}
