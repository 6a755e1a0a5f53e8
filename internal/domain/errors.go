package domain

import "errors"

var (
	// ErrProductNotFound is returned when a product id does not exist in the catalog
	ErrProductNotFound = errors.New("product not found in catalog")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidPriceFilter is returned when a price filter carries an unsupported operator or value
	ErrInvalidPriceFilter = errors.New("invalid price filter")

	// ErrUnknownOperation is returned when the oracle asks for an operation outside the menu
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrInvalidArguments is returned when a known operation carries malformed arguments
	ErrInvalidArguments = errors.New("invalid operation arguments")

	// ErrOracleFailure is returned when a completion request to the oracle fails
	ErrOracleFailure = errors.New("oracle request failed")

	// ErrEmbeddingFailure is returned when the oracle cannot embed a query
	ErrEmbeddingFailure = errors.New("embedding request failed")

	// ErrStoreFailure is returned when the catalog or cart store fails
	ErrStoreFailure = errors.New("store request failed")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")
)
