package main

import (
	"fmt"

	"github.com/continuity-labs/cce/internal/config"
	"github.com/continuity-labs/cce/internal/embedding"
	"github.com/continuity-labs/cce/internal/graph"
	"github.com/continuity-labs/cce/internal/predict"
	"github.com/continuity-labs/cce/internal/privacy"
	"github.com/continuity-labs/cce/internal/store"
)

// engine bundles the collaborators CLI commands query directly, matching
// what the MCP server wires up at startup.
type engine struct {
	cfg     *config.Config
	db      *store.DB
	graph   *graph.DB
	embed   embedding.Provider
	predict *predict.Predictor
	filter  *privacy.Filter
}

func openEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.DatabasePath(), store.Options{
		Collection:   cfg.Vector.Collection,
		EmbeddingDim: cfg.Vector.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrNoDatabase, err)
	}

	g := graph.NewDB(db.Conn(), graph.Params{
		MaxNodes:    cfg.Graph.MaxNodes,
		DecayFactor: cfg.Graph.DecayFactor,
	})
	if err := g.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("graph schema: %w", err)
	}

	provider, err := embedding.NewProvider(embedding.ProviderConfig{
		Provider:   cfg.Vector.Provider,
		Model:      cfg.Vector.Model,
		APIKey:     cfg.Vector.APIKey,
		BaseURL:    cfg.Vector.BaseURL,
		Dimensions: cfg.Vector.Dimensions,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	cached, err := embedding.WithCache(provider, 0)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("embedding cache: %w", err)
	}

	filter, err := privacy.New(cfg.BlacklistPath(), cfg.Privacy.BlacklistedApps, cfg.Privacy.BlacklistedDirectories)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("privacy filter: %w", err)
	}

	return &engine{
		cfg:   cfg,
		db:    db,
		graph: g,
		embed: cached,
		predict: predict.New(db, cached, g, predict.Options{
			PredictionWindow: cfg.Prediction.PredictionWindow,
			MinConfidence:    cfg.Prediction.MinConfidence,
			Allow:            filter.Allows,
		}),
		filter: filter,
	}, nil
}

func (e *engine) Close() error {
	return e.db.Close()
}
