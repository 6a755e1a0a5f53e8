package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/healthshop/clerk/config"
	"github.com/healthshop/clerk/internal/domain"
	"github.com/healthshop/clerk/internal/infrastructure/cache"
	"github.com/healthshop/clerk/internal/infrastructure/oracle"
	"github.com/healthshop/clerk/internal/infrastructure/sqlstore"
	"github.com/healthshop/clerk/internal/usecase"
)

// app is the wired service graph shared by serve and chat
type app struct {
	store     *sqlstore.Store
	cache     *cache.MemoryCache
	retriever *usecase.Retriever
	cart      *usecase.CartService
	router    *usecase.Router
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	llm, err := oracle.New(ctx, oracle.Options{
		Provider:          cfg.Oracle.Provider,
		APIKey:            cfg.Oracle.APIKey,
		BaseURL:           cfg.Oracle.BaseURL,
		ChatModel:         cfg.Oracle.ChatModel,
		EmbeddingModel:    cfg.Oracle.EmbeddingModel,
		Dimensions:        cfg.Oracle.EmbeddingDimensions,
		RequestsPerSecond: cfg.Oracle.RequestsPerSecond,
		Burst:             cfg.Oracle.Burst,
		Timeout:           cfg.Oracle.Timeout,
	}, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{store: store}

	var embedder domain.Embedder = llm
	if cfg.Cache.Type == "memory" {
		a.cache = cache.NewMemoryCache()
		embedder = usecase.NewCachedEmbedder(llm, a.cache, cfg.Cache.TTL, logger)
	}

	a.retriever = usecase.NewRetriever(store, embedder, logger, usecase.RetrieverConfig{
		K:              cfg.Retrieval.RRFK,
		CandidateLimit: cfg.Retrieval.CandidateLimit,
		ResultLimit:    cfg.Retrieval.ResultLimit,
	})
	a.cart = usecase.NewCartService(store, store, a.retriever, logger, usecase.CartServiceConfig{
		DeliveryDays: cfg.Shop.DeliveryDays,
	})
	a.router = usecase.NewRouter(llm, a.retriever, a.cart, logger, usecase.RouterConfig{
		ShopName:    cfg.Shop.Name,
		ResultLimit: cfg.Retrieval.ResultLimit,
	})
	return a, nil
}

// Close releases the store and stops the cache sweeper
func (a *app) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
	a.store.Close()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sqlstore.Store, error) {
	store, err := sqlstore.Open(ctx, sqlstore.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN(),
		Path:         cfg.Database.Path,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		Dimensions:   cfg.Oracle.EmbeddingDimensions,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}
