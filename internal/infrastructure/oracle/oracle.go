// Package oracle adapts hosted LLM providers to domain.Oracle: function-calling
// completion, streamed completion and query embeddings.
package oracle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/healthshop/clerk/internal/domain"
)

// Options configures a provider client
type Options struct {
	Provider          string // "openai" or "gemini"
	APIKey            string
	BaseURL           string
	ChatModel         string
	EmbeddingModel    string
	Dimensions        int
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration // per non-streaming request
}

// New builds the client for opts.Provider
func New(ctx context.Context, opts Options, logger *zap.Logger) (domain.Oracle, error) {
	switch opts.Provider {
	case "openai":
		return NewOpenAIClient(opts, logger), nil
	case "gemini":
		return NewGeminiClient(ctx, opts, logger)
	}
	return nil, fmt.Errorf("unsupported oracle provider %q", opts.Provider)
}

// newLimiter returns a token bucket shared by every request of one client.
// A non-positive rate disables limiting.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func waitTurn(ctx context.Context, limiter *rate.Limiter) error {
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	}
	return nil
}

// withTimeout bounds a non-streaming request unless ctx already has a deadline
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// tokenSender delivers stream tokens until ctx is cancelled
type tokenSender struct {
	ctx context.Context
	out chan<- domain.StreamToken
}

func (s tokenSender) send(tok domain.StreamToken) bool {
	select {
	case s.out <- tok:
		return true
	case <-s.ctx.Done():
		return false
	}
}
