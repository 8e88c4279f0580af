// Package predict implements the context predictor: given a description of
// what the user is doing now, it ranks previously recorded activities by how
// likely they are to be relevant, blending semantic similarity, recency
// decay, and temporal-graph adjacency.
package predict

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/continuity-labs/cce/internal/embedding"
	"github.com/continuity-labs/cce/internal/graph"
	"github.com/continuity-labs/cce/internal/store"
)

// Scoring weights. Similarity dominates; recency and graph adjacency are
// tie-breakers, matching the engine daemon's ranking.
const (
	similarityWeight = 0.6
	recencyWeight    = 0.25
	graphWeight      = 0.15

	// candidateFactor controls how many extra search hits to fetch before
	// filtering by window and confidence floor.
	candidateFactor = 3
)

// Options configure a Predictor.
type Options struct {
	// PredictionWindow is how many hours of history are candidates.
	// Activities older than the window are excluded. Default 72.
	PredictionWindow int
	// MinConfidence is the floor below which predictions are dropped.
	// Default 0.3.
	MinConfidence float64
	// Allow vetoes an activity before it enters a suggestion group. Nil
	// allows everything. Graph-followed activities surface in next-action
	// suggestions without passing through the caller's result filtering,
	// so the veto has to happen here.
	Allow func(appName, filePath string) bool
}

// Predictor ranks past activities against a current-activity description.
type Predictor struct {
	db            *store.DB
	embed         embedding.Provider
	graph         *graph.DB
	windowHours   int
	minConfidence float64
	allow         func(appName, filePath string) bool
}

// New creates a Predictor over the given collaborators.
func New(db *store.DB, embed embedding.Provider, g *graph.DB, opts Options) *Predictor {
	if opts.PredictionWindow <= 0 {
		opts.PredictionWindow = 72
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = 0.3
	}
	return &Predictor{
		db:            db,
		embed:         embed,
		graph:         g,
		windowHours:   opts.PredictionWindow,
		minConfidence: opts.MinConfidence,
		allow:         opts.Allow,
	}
}

// MinConfidence returns the configured confidence floor.
func (p *Predictor) MinConfidence() float64 { return p.minConfidence }

// Prediction is one ranked result.
type Prediction struct {
	ActivityID  string  `json:"activity_id"`
	Timestamp   int64   `json:"timestamp"`
	AppName     string  `json:"app_name"`
	WindowTitle string  `json:"window_title"`
	FilePath    string  `json:"file_path,omitempty"`
	ContextID   string  `json:"context_id,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// PredictContext returns up to maxResults predictions for the description,
// ranked by confidence descending. Results below the confidence floor are
// excluded, so the list may be empty.
func (p *Predictor) PredictContext(description string, maxResults int) ([]Prediction, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("activity description is required")
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	queryVec, err := p.embed.GetQueryEmbedding(description)
	if err != nil {
		return nil, fmt.Errorf("embed description: %w", err)
	}

	candidates, err := p.db.SearchSimilar(queryVec, maxResults*candidateFactor)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	windowCutoff := time.Now().Add(-time.Duration(p.windowHours) * time.Hour).Unix()
	predictions := []Prediction{}
	for _, c := range candidates {
		if c.Timestamp < windowCutoff {
			continue
		}
		confidence := p.score(c)
		if confidence < p.minConfidence {
			continue
		}
		predictions = append(predictions, Prediction{
			ActivityID:  c.ActivityID,
			Timestamp:   c.Timestamp,
			AppName:     c.AppName,
			WindowTitle: c.WindowTitle,
			FilePath:    c.FilePath,
			ContextID:   c.ContextID,
			Confidence:  confidence,
		})
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Confidence > predictions[j].Confidence
	})
	if len(predictions) > maxResults {
		predictions = predictions[:maxResults]
	}
	return predictions, nil
}

// score blends similarity, recency decay, and graph adjacency into 0..1.
func (p *Predictor) score(c store.SimilarResult) float64 {
	recency := recencyScore(c.Timestamp, p.windowHours)

	graphBoost := 0.0
	if p.graph != nil {
		if degree, err := p.graph.Degree(c.ActivityID); err == nil && degree > 0 {
			// log2 dampening, saturates at 1.0 around degree 15
			graphBoost = math.Min(1.0, math.Log2(float64(degree)+1)/4)
		}
	}

	confidence := similarityWeight*c.Score + recencyWeight*recency + graphWeight*graphBoost
	return round3(math.Min(1.0, math.Max(0.0, confidence)))
}

// recencyScore decays exponentially with a half-life of half the prediction
// window, so an activity at the window edge scores 0.25.
func recencyScore(timestamp int64, windowHours int) float64 {
	ageHours := time.Since(time.Unix(timestamp, 0)).Hours()
	if ageHours <= 0 {
		return 1.0
	}
	halfLife := float64(windowHours) / 2
	return math.Pow(0.5, ageHours/halfLife)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
