package mcp

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/continuity-labs/cce/internal/config"
	"github.com/continuity-labs/cce/internal/graph"
	"github.com/continuity-labs/cce/internal/predict"
	"github.com/continuity-labs/cce/internal/privacy"
	"github.com/continuity-labs/cce/internal/store"
)

// stubEmbedder returns axis-aligned vectors keyed by exact text so search
// results are deterministic without a live embedding daemon.
type stubEmbedder struct {
	axes map[string]int
}

func (s *stubEmbedder) axisVec(axis int) []float32 {
	v := make([]float32, store.DefaultEmbeddingDim)
	v[axis] = 1
	return v
}

func (s *stubEmbedder) GetEmbedding(text, _ string) ([]float32, error) {
	axis, ok := s.axes[text]
	if !ok {
		return nil, fmt.Errorf("no stub vector for %q", text)
	}
	return s.axisVec(axis), nil
}

func (s *stubEmbedder) GetDocumentEmbedding(text string) ([]float32, error) {
	return s.GetEmbedding(text, "document")
}

func (s *stubEmbedder) GetQueryEmbedding(text string) ([]float32, error) {
	return s.GetEmbedding(text, "query")
}

func (s *stubEmbedder) Name() string    { return "stub" }
func (s *stubEmbedder) Model() string   { return "stub-model" }
func (s *stubEmbedder) Dimensions() int { return store.DefaultEmbeddingDim }

// newTestServer builds a Server over in-memory stores.
func newTestServer(t *testing.T) (*Server, *stubEmbedder) {
	t.Helper()

	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	g := graph.NewDB(db.Conn(), graph.Params{})
	if err := g.Migrate(); err != nil {
		t.Fatalf("graph migrate: %v", err)
	}

	filter, err := privacy.New(filepath.Join(t.TempDir(), "blacklist.json"), nil, nil)
	if err != nil {
		t.Fatalf("privacy.New: %v", err)
	}

	embed := &stubEmbedder{axes: map[string]int{}}
	cfg := config.DefaultConfig()
	pred := predict.New(db, embed, g, predict.Options{Allow: filter.Allows})

	return NewServer(cfg, db, embed, g, pred, filter), embed
}

// seedActivity inserts an activity with an embedding on the given axis.
func seedActivity(t *testing.T, s *Server, embed *stubEmbedder, app, title, filePath string, axis int, age time.Duration) *store.Activity {
	t.Helper()
	a := &store.Activity{
		Timestamp:   time.Now().Add(-age).Unix(),
		AppName:     app,
		WindowTitle: title,
		FilePath:    filePath,
	}
	if _, err := s.db.InsertActivity(a); err != nil {
		t.Fatalf("InsertActivity: %v", err)
	}
	if err := s.db.UpsertEmbedding(a.RowID, embed.axisVec(axis)); err != nil {
		t.Fatalf("UpsertEmbedding: %v", err)
	}
	return a
}

// decodeResult unpacks a tool result's JSON text payload.
func decodeResult(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected 1 content block, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Fatalf("result payload is not JSON: %v\n%s", err, text.Text)
	}
	return payload
}

// wantError asserts a result is a structured error of the given kind.
func wantError(t *testing.T, res *mcp.CallToolResult, kind string) map[string]any {
	t.Helper()
	if !res.IsError {
		t.Fatalf("expected IsError result, got %v", res)
	}
	payload := decodeResult(t, res)
	if payload["status"] != "error" {
		t.Errorf("status = %v, want error", payload["status"])
	}
	if payload["error"] != kind {
		t.Errorf("error kind = %v, want %s", payload["error"], kind)
	}
	return payload
}

// wantSuccess asserts a result is a success payload.
func wantSuccess(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	payload := decodeResult(t, res)
	if res.IsError {
		t.Fatalf("unexpected error result: %v", payload)
	}
	if payload["status"] != "success" {
		t.Errorf("status = %v, want success", payload["status"])
	}
	return payload
}
