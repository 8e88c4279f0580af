package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/continuity-labs/cce/internal/graph"
)

func intp(n int) *int { return &n }

func TestRecentActivitiesDefaults(t *testing.T) {
	s, embed := newTestServer(t)
	seedActivity(t, s, embed, "vscode", "main.go", "/p/main.go", 0, 10*time.Minute)
	seedActivity(t, s, embed, "browser", "docs", "", 1, 30*time.Hour) // outside 24h default

	res, _, err := s.handleRecentActivities(context.Background(), nil, recentActivitiesInput{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	payload := wantSuccess(t, res)
	if payload["count"] != float64(1) {
		t.Errorf("count = %v, want 1 within the default window", payload["count"])
	}
}

func TestRecentActivitiesExplicitZeroHours(t *testing.T) {
	s, embed := newTestServer(t)
	seedActivity(t, s, embed, "vscode", "main.go", "", 0, 10*time.Minute)

	res, _, err := s.handleRecentActivities(context.Background(), nil, recentActivitiesInput{Hours: intp(0)})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	payload := wantSuccess(t, res)
	if payload["count"] != float64(0) {
		t.Errorf("count = %v, want 0 for an explicit zero-hour window", payload["count"])
	}
	if payload["activities"] == nil {
		t.Error("activities must be an empty list, not null")
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	s, _ := newTestServer(t)

	res, _, err := s.handleSearch(context.Background(), nil, searchInput{Query: "   "})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	wantError(t, res, errInvalidParams)
}

func TestSearchReturnsRankedResults(t *testing.T) {
	s, embed := newTestServer(t)
	embed.axes["api handlers"] = 0

	match := seedActivity(t, s, embed, "vscode", "handlers.go", "/p/handlers.go", 0, time.Hour)
	seedActivity(t, s, embed, "browser", "news", "", 1, time.Hour)

	res, _, err := s.handleSearch(context.Background(), nil, searchInput{Query: "api handlers"})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	payload := wantSuccess(t, res)
	results := payload["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	first := results[0].(map[string]any)
	if first["activity_id"] != match.ActivityID {
		t.Errorf("expected semantic match first, got %v", first["window_title"])
	}
}

func TestSearchEmbeddingFailure(t *testing.T) {
	s, _ := newTestServer(t)

	// No stub vector registered: the provider errors, which surfaces as a
	// handler failure, not a crash.
	res, _, err := s.handleSearch(context.Background(), nil, searchInput{Query: "unmapped"})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	wantError(t, res, errHandlerFailure)
}

func TestPredictEmptyDescription(t *testing.T) {
	s, _ := newTestServer(t)

	res, _, err := s.handlePredict(context.Background(), nil, predictInput{ActivityDescription: ""})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	wantError(t, res, errInvalidParams)
}

func TestPredictReturnsFloor(t *testing.T) {
	s, embed := newTestServer(t)
	embed.axes["current work"] = 0
	seedActivity(t, s, embed, "vscode", "work.go", "", 0, 10*time.Minute)

	res, _, err := s.handlePredict(context.Background(), nil, predictInput{ActivityDescription: "current work"})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	payload := wantSuccess(t, res)
	if payload["min_confidence"] != 0.3 {
		t.Errorf("min_confidence = %v, want 0.3", payload["min_confidence"])
	}
	if payload["count"].(float64) < 1 {
		t.Error("expected at least one prediction")
	}
}

func TestSuggestionsEmptyGroupsStillSuccess(t *testing.T) {
	s, embed := newTestServer(t)
	embed.axes["nothing similar"] = 5

	res, _, err := s.handleSuggestions(context.Background(), nil, suggestionsInput{ActivityDescription: "nothing similar"})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	payload := wantSuccess(t, res)
	sug := payload["suggestions"].(map[string]any)
	for _, group := range []string{"files", "apps", "next_actions"} {
		if sug[group] == nil {
			t.Errorf("%s must be an empty list, not null", group)
		}
	}
}

func TestSuggestionsExcludeBlacklistedNextActions(t *testing.T) {
	s, embed := newTestServer(t)
	embed.axes["reviewing finances"] = 0

	a := seedActivity(t, s, embed, "vscode", "budget.md", "/home/u/budget.md", 0, time.Hour)
	b := seedActivity(t, s, embed, "BankApp", "account 12345", "", 1, time.Hour)
	if _, err := s.graph.UpsertEdge(&graph.Edge{
		SourceID: a.ActivityID,
		TargetID: b.ActivityID,
		Relation: graph.RelFollows,
	}); err != nil {
		t.Fatal(err)
	}

	res, _, err := s.handlePrivacyBlacklist(context.Background(), nil,
		blacklistInput{Type: "app", Value: "BankApp", Action: "add"})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	wantSuccess(t, res)

	res, _, err = s.handleSuggestions(context.Background(), nil,
		suggestionsInput{ActivityDescription: "reviewing finances"})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	payload := wantSuccess(t, res)
	sug := payload["suggestions"].(map[string]any)
	for _, group := range []string{"apps", "next_actions"} {
		for _, entry := range sug[group].([]any) {
			text := entry.(string)
			if strings.Contains(text, "BankApp") || strings.Contains(text, "account 12345") {
				t.Errorf("blacklisted app surfaced in %s: %q", group, text)
			}
		}
	}
}

func TestRelatedUnknownActivity(t *testing.T) {
	s, _ := newTestServer(t)

	res, _, err := s.handleRelated(context.Background(), nil, relatedInput{ActivityID: "ghost"})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	wantError(t, res, errNotFound)
}

func TestRelatedEmptyID(t *testing.T) {
	s, _ := newTestServer(t)

	res, _, err := s.handleRelated(context.Background(), nil, relatedInput{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	wantError(t, res, errInvalidParams)
}

func TestRelatedDepthClamped(t *testing.T) {
	s, embed := newTestServer(t)
	a := seedActivity(t, s, embed, "vscode", "a", "", 0, time.Hour)

	res, _, err := s.handleRelated(context.Background(), nil, relatedInput{ActivityID: a.ActivityID, MaxDepth: 99})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	payload := wantSuccess(t, res)
	if payload["max_depth"] != float64(s.cfg.GraphDepthCeiling()) {
		t.Errorf("max_depth = %v, want clamped to ceiling %d", payload["max_depth"], s.cfg.GraphDepthCeiling())
	}
}

func TestRelatedTraversal(t *testing.T) {
	s, embed := newTestServer(t)
	a := seedActivity(t, s, embed, "vscode", "a", "", 0, time.Hour)
	b := seedActivity(t, s, embed, "terminal", "b", "", 1, time.Hour)
	if _, err := s.graph.UpsertEdge(&graph.Edge{
		SourceID: a.ActivityID,
		TargetID: b.ActivityID,
		Relation: graph.RelFollows,
	}); err != nil {
		t.Fatal(err)
	}

	res, _, err := s.handleRelated(context.Background(), nil, relatedInput{ActivityID: a.ActivityID})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	payload := wantSuccess(t, res)
	if payload["count"] != float64(1) {
		t.Fatalf("count = %v, want 1", payload["count"])
	}
	hit := payload["related"].([]any)[0].(map[string]any)
	if hit["activity_id"] != b.ActivityID {
		t.Errorf("related hit = %v, want %s", hit["activity_id"], b.ActivityID)
	}
	if hit["activity"] == nil {
		t.Error("expected the activity record attached to the hit")
	}
}

func TestEnrichRelatedSurfacesStoreErrors(t *testing.T) {
	s, embed := newTestServer(t)
	a := seedActivity(t, s, embed, "vscode", "a", "", 0, time.Hour)

	if _, err := s.db.Conn().Exec("DROP TABLE activities"); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	_, err := s.enrichRelated([]graph.RelatedActivity{{ActivityID: a.ActivityID}})
	if err == nil {
		t.Fatal("expected enrichment to surface the store error, got nil")
	}
}

func TestStatsAllStores(t *testing.T) {
	s, _ := newTestServer(t)

	res, _, err := s.handleStats(context.Background(), nil, emptyInput{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	payload := wantSuccess(t, res)
	stats := payload["stats"].(map[string]any)
	for _, source := range []string{"activities", "embeddings", "graph", "privacy"} {
		entry, ok := stats[source].(map[string]any)
		if !ok {
			t.Fatalf("missing stats for %s", source)
		}
		if entry["status"] != "ok" {
			t.Errorf("%s status = %v, want ok", source, entry["status"])
		}
	}
}

func TestStatsDegradedSuccess(t *testing.T) {
	s, _ := newTestServer(t)
	s.db.Close() // activity and graph stores share the connection

	res, _, err := s.handleStats(context.Background(), nil, emptyInput{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	payload := wantSuccess(t, res)
	stats := payload["stats"].(map[string]any)

	activities := stats["activities"].(map[string]any)
	if activities["status"] != "unavailable" {
		t.Errorf("activities status = %v, want unavailable", activities["status"])
	}
	if activities["error"] == nil {
		t.Error("unavailable store must carry an error message")
	}
	// Stores that don't touch the database still report.
	if stats["privacy"].(map[string]any)["status"] != "ok" {
		t.Error("privacy stats should remain ok")
	}
}

func TestCleanupNegativeDays(t *testing.T) {
	s, _ := newTestServer(t)

	res, _, err := s.handleCleanup(context.Background(), nil, cleanupInput{Days: intp(-1)})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	wantError(t, res, errInvalidParams)
}

func TestCleanupDefaults(t *testing.T) {
	s, embed := newTestServer(t)
	seedActivity(t, s, embed, "vscode", "old", "", 0, 200*24*time.Hour)
	seedActivity(t, s, embed, "vscode", "new", "", 1, time.Hour)

	res, _, err := s.handleCleanup(context.Background(), nil, cleanupInput{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	payload := wantSuccess(t, res)
	if payload["retention_days"] != float64(90) {
		t.Errorf("retention_days = %v, want default 90", payload["retention_days"])
	}
	if payload["deleted_records"] != float64(1) {
		t.Errorf("deleted_records = %v, want 1", payload["deleted_records"])
	}

	// Second run on unchanged data removes nothing.
	res, _, err = s.handleCleanup(context.Background(), nil, cleanupInput{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	payload = wantSuccess(t, res)
	if payload["deleted_records"] != float64(0) {
		t.Errorf("second cleanup deleted %v records, want 0", payload["deleted_records"])
	}
}

func TestListContexts(t *testing.T) {
	s, _ := newTestServer(t)
	if _, err := s.db.CreateOrUpdateContext("proj", "desc", []string{"x"}); err != nil {
		t.Fatal(err)
	}

	res, _, err := s.handleListContexts(context.Background(), nil, listContextsInput{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	payload := wantSuccess(t, res)
	if payload["count"] != float64(1) {
		t.Errorf("count = %v, want 1", payload["count"])
	}
}

func TestCreateContextValidation(t *testing.T) {
	s, _ := newTestServer(t)

	res, _, err := s.handleCreateContext(context.Background(), nil, createContextInput{Name: "  "})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	wantError(t, res, errInvalidParams)
}

func TestCreateContextUpsert(t *testing.T) {
	s, _ := newTestServer(t)

	res, _, err := s.handleCreateContext(context.Background(), nil, createContextInput{
		Name: "refactor-api",
		Tags: []string{"backend"},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	first := wantSuccess(t, res)["context"].(map[string]any)

	res, _, err = s.handleCreateContext(context.Background(), nil, createContextInput{
		Name:        "refactor-api",
		Description: "updated",
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	second := wantSuccess(t, res)["context"].(map[string]any)

	if second["id"] != first["id"] {
		t.Error("upsert must not create a duplicate context")
	}
	if second["description"] != "updated" {
		t.Errorf("description = %v, want updated", second["description"])
	}
	tags := second["tags"].([]any)
	if len(tags) != 1 || tags[0] != "backend" {
		t.Errorf("tags = %v, want preserved [backend]", tags)
	}
}

func TestPrivacyBlacklistValidation(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name  string
		input blacklistInput
	}{
		{"missing fields", blacklistInput{Type: "app"}},
		{"bad type", blacklistInput{Type: "process", Value: "x", Action: "add"}},
		{"bad action", blacklistInput{Type: "app", Value: "x", Action: "toggle"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, err := s.handlePrivacyBlacklist(context.Background(), nil, tt.input)
			if err != nil {
				t.Fatalf("handler error: %v", err)
			}
			wantError(t, res, errInvalidParams)
		})
	}
}

func TestPrivacyBlacklistEnforcement(t *testing.T) {
	s, embed := newTestServer(t)
	seedActivity(t, s, embed, "Signal", "private chat", "", 0, time.Hour)
	seedActivity(t, s, embed, "vscode", "main.go", "/home/u/private/main.go", 1, time.Hour)
	seedActivity(t, s, embed, "vscode", "ok.go", "/home/u/work/ok.go", 2, time.Hour)

	for _, entry := range []blacklistInput{
		{Type: "app", Value: "Signal", Action: "add"},
		{Type: "directory", Value: "/home/u/private", Action: "add"},
	} {
		res, _, err := s.handlePrivacyBlacklist(context.Background(), nil, entry)
		if err != nil {
			t.Fatalf("handler error: %v", err)
		}
		wantSuccess(t, res)
	}

	res, _, err := s.handleRecentActivities(context.Background(), nil, recentActivitiesInput{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	payload := wantSuccess(t, res)
	if payload["count"] != float64(1) {
		t.Fatalf("count = %v, want only the unblacklisted activity", payload["count"])
	}
	remaining := payload["activities"].([]any)[0].(map[string]any)
	if remaining["app_name"] != "vscode" || remaining["file_path"] != "/home/u/work/ok.go" {
		t.Errorf("wrong survivor: %v", remaining)
	}
}

func TestPrivacyBlacklistIdempotentAdd(t *testing.T) {
	s, _ := newTestServer(t)

	input := blacklistInput{Type: "app", Value: "Signal", Action: "add"}
	res, _, err := s.handlePrivacyBlacklist(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	first := wantSuccess(t, res)

	res, _, err = s.handlePrivacyBlacklist(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	second := wantSuccess(t, res)

	firstApps := first["blacklist"].(map[string]any)["blacklisted_apps"].([]any)
	secondApps := second["blacklist"].(map[string]any)["blacklisted_apps"].([]any)
	if len(firstApps) != 1 || len(secondApps) != 1 {
		t.Errorf("duplicate add changed the blacklist: %v vs %v", firstApps, secondApps)
	}
}
