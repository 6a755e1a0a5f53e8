package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CatalogRepository produces the two independent rankings the retriever fuses.
// Rankings are product ids in rank order (index 0 is rank 1).
type CatalogRepository interface {
	SemanticRanking(ctx context.Context, embedding []float32, filter *PriceFilter, limit int) ([]int64, error)
	LexicalRanking(ctx context.Context, query string, filter *PriceFilter, limit int) ([]int64, error)
	ProductsByID(ctx context.Context, ids []int64) ([]Product, error)
}

// CartRepository is row-level access to cart lines keyed by (user, product, status)
type CartRepository interface {
	// CartItems returns the user's in-cart lines joined with their products
	CartItems(ctx context.Context, userID int64) ([]CartItem, error)
	// AddQuantity increments the in-cart line or inserts it atomically
	AddQuantity(ctx context.Context, userID, productID int64, quantity int) (AddOutcome, error)
	// RemoveLine deletes the in-cart line and reports whether one existed
	RemoveLine(ctx context.Context, userID, productID int64) (bool, error)
	// SetQuantity overwrites the quantity of the in-cart line
	SetQuantity(ctx context.Context, userID, productID int64, quantity int) (bool, error)
	// Checkout moves every in-cart line to paid when at least one has quantity > 0.
	// It returns the number of lines transitioned.
	Checkout(ctx context.Context, userID int64, paidOn, arrival time.Time) (int64, error)
	// OrderLines returns lines of any status joined with product names
	OrderLines(ctx context.Context, userID int64) ([]OrderLine, error)
}

// Embedder turns text into a fixed-length vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Oracle is the external LLM: function-calling completion, streaming and embeddings
type Oracle interface {
	Embedder
	Complete(ctx context.Context, req CompletionRequest) (*Decision, error)
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamToken, error)
}
