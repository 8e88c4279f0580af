package mcp

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/continuity-labs/cce/internal/graph"
	"github.com/continuity-labs/cce/internal/predict"
	"github.com/continuity-labs/cce/internal/privacy"
	"github.com/continuity-labs/cce/internal/store"
)

// Tool input types. Hours and Days are pointers so an explicit 0 is
// distinguishable from an omitted parameter.

type recentActivitiesInput struct {
	Hours *int `json:"hours,omitempty" jsonschema:"Look back this many hours (default 24)"`
	Limit int  `json:"limit,omitempty" jsonschema:"Max activities to return (default 50)"`
}

type searchInput struct {
	Query string `json:"query" jsonschema:"Natural language search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max results (default 10)"`
}

type predictInput struct {
	ActivityDescription string `json:"activity_description" jsonschema:"Description of the current activity"`
	MaxResults          int    `json:"max_results,omitempty" jsonschema:"Max predictions (default 5)"`
}

type suggestionsInput struct {
	ActivityDescription string `json:"activity_description" jsonschema:"Description of the current activity"`
}

type relatedInput struct {
	ActivityID string `json:"activity_id" jsonschema:"Activity ID to find relations for"`
	MaxDepth   int    `json:"max_depth,omitempty" jsonschema:"Max graph depth (default 2)"`
}

type listContextsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Max contexts to return (default 20)"`
}

type cleanupInput struct {
	Days *int `json:"days,omitempty" jsonschema:"Retain data for this many days (default 90)"`
}

type blacklistInput struct {
	Type   string `json:"type" jsonschema:"Blacklist entry type: app or directory"`
	Value  string `json:"value" jsonschema:"App name or directory path"`
	Action string `json:"action" jsonschema:"add or remove"`
}

type createContextInput struct {
	Name        string   `json:"name" jsonschema:"Context name"`
	Description string   `json:"description,omitempty" jsonschema:"Context description"`
	Tags        []string `json:"tags,omitempty" jsonschema:"Tags for the context"`
}

type emptyInput struct{}

// Tool handlers. Every app- or path-bearing record passes the privacy
// filter before it is serialized; denied records are dropped, and an
// emptied list is still a success.

func (s *Server) handleRecentActivities(ctx context.Context, req *mcp.CallToolRequest, input recentActivitiesInput) (*mcp.CallToolResult, any, error) {
	hours := 24
	if input.Hours != nil {
		hours = *input.Hours
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	return s.runWithBudget(ctx, "context_recent_activities", func(ctx context.Context) (any, error) {
		activities, err := s.db.RecentActivities(hours, limit)
		if err != nil {
			return nil, storeFailure("activity", err)
		}
		activities = s.filterActivities(activities)
		return map[string]any{
			"status":     "success",
			"count":      len(activities),
			"activities": activities,
		}, nil
	}), nil, nil
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input searchInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Query) == "" {
		return errorResult(errInvalidParams, "query must not be empty"), nil, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	return s.runWithBudget(ctx, "context_search", func(ctx context.Context) (any, error) {
		queryVec, err := s.embed.GetQueryEmbedding(input.Query)
		if err != nil {
			return nil, storeFailure("embedding", err)
		}
		results, err := s.db.SearchSimilar(queryVec, limit)
		if err != nil {
			return nil, storeFailure("embedding", err)
		}
		results = s.filterSimilar(results)
		return map[string]any{
			"status":  "success",
			"count":   len(results),
			"results": results,
		}, nil
	}), nil, nil
}

func (s *Server) handlePredict(ctx context.Context, req *mcp.CallToolRequest, input predictInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.ActivityDescription) == "" {
		return errorResult(errInvalidParams, "activity_description must not be empty"), nil, nil
	}
	maxResults := input.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	return s.runWithBudget(ctx, "context_predict", func(ctx context.Context) (any, error) {
		predictions, err := s.predict.PredictContext(input.ActivityDescription, maxResults)
		if err != nil {
			return nil, storeFailure("prediction", err)
		}
		predictions = s.filterPredictions(predictions)
		return map[string]any{
			"status":         "success",
			"count":          len(predictions),
			"min_confidence": s.predict.MinConfidence(),
			"predictions":    predictions,
		}, nil
	}), nil, nil
}

func (s *Server) handleSuggestions(ctx context.Context, req *mcp.CallToolRequest, input suggestionsInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.ActivityDescription) == "" {
		return errorResult(errInvalidParams, "activity_description must not be empty"), nil, nil
	}

	return s.runWithBudget(ctx, "context_suggestions", func(ctx context.Context) (any, error) {
		suggestions, err := s.predict.GetSuggestions(input.ActivityDescription)
		if err != nil {
			return nil, storeFailure("prediction", err)
		}
		s.filterSuggestions(suggestions)
		return map[string]any{
			"status":      "success",
			"suggestions": suggestions,
		}, nil
	}), nil, nil
}

func (s *Server) handleRelated(ctx context.Context, req *mcp.CallToolRequest, input relatedInput) (*mcp.CallToolResult, any, error) {
	if input.ActivityID == "" {
		return errorResult(errInvalidParams, "activity_id must not be empty"), nil, nil
	}
	maxDepth := input.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 2
	}
	// Ceiling clamps, never rejects.
	if ceiling := s.cfg.GraphDepthCeiling(); maxDepth > ceiling {
		maxDepth = ceiling
	}
	depth := maxDepth

	return s.runWithBudget(ctx, "context_related", func(ctx context.Context) (any, error) {
		if _, err := s.db.GetActivity(input.ActivityID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, notFound("unknown activity: %s", input.ActivityID)
			}
			return nil, storeFailure("activity", err)
		}

		related, err := s.graph.Related(input.ActivityID, depth)
		if err != nil {
			return nil, storeFailure("graph", err)
		}
		enriched, err := s.enrichRelated(related)
		if err != nil {
			return nil, storeFailure("activity", err)
		}
		return map[string]any{
			"status":    "success",
			"count":     len(enriched),
			"max_depth": depth,
			"related":   enriched,
		}, nil
	}), nil, nil
}

func (s *Server) handleStats(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	return s.runWithBudget(ctx, "context_stats", func(ctx context.Context) (any, error) {
		return map[string]any{
			"status": "success",
			"stats": map[string]sourceStats{
				"activities": statsOf(func() (any, error) { return s.db.GetStats() }),
				"embeddings": statsOf(func() (any, error) {
					return map[string]any{
						"provider":   s.embed.Name(),
						"model":      s.embed.Model(),
						"dimensions": s.embed.Dimensions(),
					}, nil
				}),
				"graph":   statsOf(func() (any, error) { return s.graph.GetStats() }),
				"privacy": statsOf(func() (any, error) { return s.filter.GetStats(), nil }),
			},
		}, nil
	}), nil, nil
}

// sourceStats is the per-store variant in the stats aggregate: either the
// store's own stats or an explicit unavailable marker. One unreachable
// store never fails the whole call.
type sourceStats struct {
	Status string `json:"status"` // "ok" or "unavailable"
	Error  string `json:"error,omitempty"`
	Stats  any    `json:"stats,omitempty"`
}

func statsOf(fn func() (any, error)) sourceStats {
	stats, err := fn()
	if err != nil {
		return sourceStats{Status: "unavailable", Error: err.Error()}
	}
	return sourceStats{Status: "ok", Stats: stats}
}

func (s *Server) handleListContexts(ctx context.Context, req *mcp.CallToolRequest, input listContextsInput) (*mcp.CallToolResult, any, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	return s.runWithBudget(ctx, "context_list_contexts", func(ctx context.Context) (any, error) {
		contexts, err := s.db.ListContexts(limit)
		if err != nil {
			return nil, storeFailure("activity", err)
		}
		return map[string]any{
			"status":   "success",
			"count":    len(contexts),
			"contexts": contexts,
		}, nil
	}), nil, nil
}

func (s *Server) handleCleanup(ctx context.Context, req *mcp.CallToolRequest, input cleanupInput) (*mcp.CallToolResult, any, error) {
	days := 90
	if input.Days != nil {
		days = *input.Days
	}
	if days < 0 {
		return errorResult(errInvalidParams, "days must be non-negative"), nil, nil
	}

	return s.runWithBudget(ctx, "context_cleanup", func(ctx context.Context) (any, error) {
		deleted, err := s.db.Cleanup(days)
		if err != nil {
			return nil, storeFailure("activity", err)
		}
		return map[string]any{
			"status":          "success",
			"deleted_records": deleted,
			"retention_days":  days,
		}, nil
	}), nil, nil
}

func (s *Server) handlePrivacyBlacklist(ctx context.Context, req *mcp.CallToolRequest, input blacklistInput) (*mcp.CallToolResult, any, error) {
	if input.Type == "" || input.Value == "" || input.Action == "" {
		return errorResult(errInvalidParams, "type, value, and action are required"), nil, nil
	}
	if input.Type != privacy.KindApp && input.Type != privacy.KindDirectory {
		return errorResult(errInvalidParams, "unknown type: "+input.Type+" (use \"app\" or \"directory\")"), nil, nil
	}
	if input.Action != privacy.ActionAdd && input.Action != privacy.ActionRemove {
		return errorResult(errInvalidParams, "unknown action: "+input.Action+" (use \"add\" or \"remove\")"), nil, nil
	}

	return s.runWithBudget(ctx, "context_privacy_blacklist", func(ctx context.Context) (any, error) {
		snapshot, err := s.filter.Edit(input.Type, input.Value, input.Action)
		if err != nil {
			return nil, storeFailure("privacy", err)
		}
		return map[string]any{
			"status":    "success",
			"message":   input.Action + "ed " + input.Type + " blacklist entry: " + input.Value,
			"blacklist": snapshot,
			"stats":     s.filter.GetStats(),
		}, nil
	}), nil, nil
}

func (s *Server) handleCreateContext(ctx context.Context, req *mcp.CallToolRequest, input createContextInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Name) == "" {
		return errorResult(errInvalidParams, "name must not be empty"), nil, nil
	}

	return s.runWithBudget(ctx, "context_create_context", func(ctx context.Context) (any, error) {
		record, err := s.db.CreateOrUpdateContext(input.Name, input.Description, input.Tags)
		if err != nil {
			return nil, storeFailure("activity", err)
		}
		return map[string]any{
			"status":  "success",
			"context": record,
		}, nil
	}), nil, nil
}

// Privacy enforcement over result shapes.

func (s *Server) filterActivities(activities []store.Activity) []store.Activity {
	filtered := activities[:0]
	for _, a := range activities {
		if !s.filter.Allows(a.AppName, a.FilePath) {
			continue
		}
		a.WindowTitle = privacy.SanitizeText(a.WindowTitle)
		filtered = append(filtered, a)
	}
	return filtered
}

func (s *Server) filterSimilar(results []store.SimilarResult) []store.SimilarResult {
	filtered := results[:0]
	for _, r := range results {
		if !s.filter.Allows(r.AppName, r.FilePath) {
			continue
		}
		r.WindowTitle = privacy.SanitizeText(r.WindowTitle)
		filtered = append(filtered, r)
	}
	return filtered
}

func (s *Server) filterPredictions(predictions []predict.Prediction) []predict.Prediction {
	filtered := predictions[:0]
	for _, p := range predictions {
		if !s.filter.Allows(p.AppName, p.FilePath) {
			continue
		}
		p.WindowTitle = privacy.SanitizeText(p.WindowTitle)
		filtered = append(filtered, p)
	}
	return filtered
}

func (s *Server) filterSuggestions(sug *predict.Suggestions) {
	files := sug.Files[:0]
	for _, f := range sug.Files {
		if s.filter.AllowsPath(f) {
			files = append(files, f)
		}
	}
	sug.Files = files

	apps := sug.Apps[:0]
	for _, a := range sug.Apps {
		if s.filter.AllowsApp(a) {
			apps = append(apps, a)
		}
	}
	sug.Apps = apps

	actions := sug.NextActions[:0]
	for _, a := range sug.NextActions {
		actions = append(actions, privacy.SanitizeText(a))
	}
	sug.NextActions = actions
}

// relatedActivity joins a graph traversal hit with its activity record.
type relatedActivity struct {
	graph.RelatedActivity
	Activity *store.Activity `json:"activity,omitempty"`
}

// enrichRelated attaches activity records to traversal results and drops
// hits whose activity is blacklisted. Hits whose record has been cleaned up
// keep their id and distance with no activity body; any other store error
// aborts the whole result.
func (s *Server) enrichRelated(related []graph.RelatedActivity) ([]relatedActivity, error) {
	enriched := []relatedActivity{}
	for _, rel := range related {
		a, err := s.db.GetActivity(rel.ActivityID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				enriched = append(enriched, relatedActivity{RelatedActivity: rel})
				continue
			}
			return nil, err
		}
		if !s.filter.Allows(a.AppName, a.FilePath) {
			continue
		}
		a.WindowTitle = privacy.SanitizeText(a.WindowTitle)
		enriched = append(enriched, relatedActivity{RelatedActivity: rel, Activity: a})
	}
	return enriched, nil
}
