// Package mcp implements the MCP query server for the Context Continuity
// Engine. It owns tool dispatch and privacy enforcement; the engine daemon
// owns the data stores it reads.
package mcp

import (
	"context"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/continuity-labs/cce/internal/config"
	"github.com/continuity-labs/cce/internal/embedding"
	"github.com/continuity-labs/cce/internal/graph"
	"github.com/continuity-labs/cce/internal/predict"
	"github.com/continuity-labs/cce/internal/privacy"
	"github.com/continuity-labs/cce/internal/store"
)

// Version is set by the caller (main) before calling Serve.
var Version = "dev"

// Server holds the long-lived handles to the engine's stores and injects
// them into tool handlers. Built once at startup; read-only afterwards.
type Server struct {
	cfg     *config.Config
	db      *store.DB
	embed   embedding.Provider
	graph   *graph.DB
	predict *predict.Predictor
	filter  *privacy.Filter
}

// NewServer wires the external collaborators into a Server.
func NewServer(cfg *config.Config, db *store.DB, embed embedding.Provider, g *graph.DB, pred *predict.Predictor, filter *privacy.Filter) *Server {
	return &Server{
		cfg:     cfg,
		db:      db,
		embed:   embed,
		graph:   g,
		predict: pred,
		filter:  filter,
	}
}

// Serve initializes all collaborators from config and runs the MCP server
// on stdio until the input stream closes or ctx is cancelled. Initialization
// failures are fatal; per-request failures never are.
func Serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.DatabasePath(), store.Options{
		Collection:   cfg.Vector.Collection,
		EmbeddingDim: cfg.Vector.Dimensions,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrNoDatabase, err)
	}
	defer db.Close()

	g := graph.NewDB(db.Conn(), graph.Params{
		MaxNodes:    cfg.Graph.MaxNodes,
		DecayFactor: cfg.Graph.DecayFactor,
	})
	if err := g.Migrate(); err != nil {
		return fmt.Errorf("graph schema: %w", err)
	}

	provider, err := embedding.NewProvider(embedding.ProviderConfig{
		Provider:   cfg.Vector.Provider,
		Model:      cfg.Vector.Model,
		APIKey:     cfg.Vector.APIKey,
		BaseURL:    cfg.Vector.BaseURL,
		Dimensions: cfg.Vector.Dimensions,
	})
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}
	cached, err := embedding.WithCache(provider, 0)
	if err != nil {
		return fmt.Errorf("embedding cache: %w", err)
	}

	filter, err := privacy.New(cfg.BlacklistPath(), cfg.Privacy.BlacklistedApps, cfg.Privacy.BlacklistedDirectories)
	if err != nil {
		return fmt.Errorf("privacy filter: %w", err)
	}

	pred := predict.New(db, cached, g, predict.Options{
		PredictionWindow: cfg.Prediction.PredictionWindow,
		MinConfidence:    cfg.Prediction.MinConfidence,
		Allow:            filter.Allows,
	})

	s := NewServer(cfg, db, cached, g, pred, filter)

	// Keep the blacklist in sync if the engine daemon rewrites it.
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	go func() {
		if err := filter.Watch(watchCtx); err != nil && watchCtx.Err() == nil {
			fmt.Fprintf(os.Stderr, "cce: blacklist watcher stopped: %v\n", err)
		}
	}()

	fmt.Fprintf(os.Stderr, "cce: query server v%s (db=%s, embeddings=%s/%s)\n",
		Version, cfg.DatabasePath(), cached.Name(), cached.Model())

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "context-continuity",
		Version: Version,
	}, nil)
	s.registerTools(server)

	return server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "context_recent_activities",
		Description: "Get recently tracked activities from the Context Continuity Engine, newest first.\n\nArgs:\n  hours: Look back this many hours (default 24; 0 returns nothing)\n  limit: Max activities to return (default 50)\n\nReturns the activities with app, window title, and file path, privacy-filtered.",
	}, s.handleRecentActivities)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "context_search",
		Description: "Semantic search across tracked activities using embeddings.\n\nArgs:\n  query: Natural language search query (required)\n  limit: Max results (default 10)\n\nReturns activities ranked by similarity, best first.",
	}, s.handleSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "context_predict",
		Description: "Predict which past activities are relevant to what the user is doing now.\n\nArgs:\n  activity_description: Description of the current activity (required)\n  max_results: Max predictions (default 5)\n\nReturns predictions ranked by confidence; results below the engine's confidence floor are excluded.",
	}, s.handlePredict)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "context_suggestions",
		Description: "Get actionable context suggestions (related files, apps, likely next actions) for an activity description.\n\nArgs:\n  activity_description: Description of the current activity (required)\n\nReturns three lists: files, apps, next_actions. Any of them may be empty.",
	}, s.handleSuggestions)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "context_related",
		Description: "Find activities related to a given activity through the temporal graph.\n\nArgs:\n  activity_id: Activity to start from (required)\n  max_depth: Max graph hops (default 2, clamped to the engine ceiling)\n\nReturns related activities with hop distance and the relation path.",
	}, s.handleRelated)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "context_stats",
		Description: "Get statistics from all Context Continuity Engine components (activity store, embedding index, temporal graph, privacy filter). A store that cannot be reached is reported as unavailable without failing the call.",
	}, s.handleStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "context_list_contexts",
		Description: "List tracked work contexts ordered by last activity.\n\nArgs:\n  limit: Max contexts to return (default 20)",
	}, s.handleListContexts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "context_cleanup",
		Description: "Remove activity data older than the retention window.\n\nArgs:\n  days: Retain data for this many days (default 90)\n\nReturns the number of removed records. Idempotent on unchanged data.",
	}, s.handleCleanup)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "context_privacy_blacklist",
		Description: "Add or remove privacy blacklist entries for apps or directories. Blacklisted apps never appear in results; paths under blacklisted directories are filtered.\n\nArgs:\n  type: \"app\" or \"directory\"\n  value: App name or directory path\n  action: \"add\" or \"remove\"\n\nRedundant adds/removes are no-ops. Returns the updated blacklist.",
	}, s.handlePrivacyBlacklist)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "context_create_context",
		Description: "Create or update a named work context. If the name exists, provided fields are merged into the existing record instead of creating a duplicate.\n\nArgs:\n  name: Context name (required)\n  description: Context description\n  tags: Tags for the context",
	}, s.handleCreateContext)
}
