// Package graph provides read access to the engine's temporal activity graph.
// Nodes are activities; edges capture temporal succession and shared-context
// relationships, weighted by how often the transition recurred.
package graph

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"
)

// Relationship types the engine daemon produces.
const (
	RelFollows      = "follows"
	RelSameContext  = "same_context"
	RelSameFile     = "same_file"
	RelSharedEntity = "shared_entity"
)

// Edge is one weighted directed relationship between two activities.
type Edge struct {
	ID        int64   `json:"-"`
	SourceID  string  `json:"source_id"`
	TargetID  string  `json:"target_id"`
	Relation  string  `json:"relation"`
	Weight    float64 `json:"weight"`
	CreatedAt int64   `json:"created_at"`
}

// RelatedActivity is one traversal hit: an activity reachable from the start
// node, the hop distance, and the relation path taken to reach it.
type RelatedActivity struct {
	ActivityID   string   `json:"activity_id"`
	Distance     int      `json:"distance"`
	RelationPath []string `json:"relation_path"`
	Strength     float64  `json:"strength"`
}

// Stats aggregates graph size counts.
type Stats struct {
	TotalNodes  int            `json:"total_nodes"`
	TotalEdges  int            `json:"total_edges"`
	EdgesByType map[string]int `json:"edges_by_relation"`
	AvgDegree   float64        `json:"avg_degree"`
	MaxNodes    int            `json:"max_nodes"`
	DecayFactor float64        `json:"decay_factor"`
}

// DB wraps a *sql.DB for graph operations. It does NOT own the connection —
// the caller (store.DB) owns it; the graph shares the activity database.
type DB struct {
	conn        *sql.DB
	maxNodes    int
	decayFactor float64
}

// Params tune traversal scoring. Zero values fall back to engine defaults.
type Params struct {
	MaxNodes    int
	DecayFactor float64
}

func NewDB(conn *sql.DB, params Params) *DB {
	if params.MaxNodes <= 0 {
		params.MaxNodes = 10000
	}
	if params.DecayFactor <= 0 || params.DecayFactor > 1 {
		params.DecayFactor = 0.95
	}
	return &DB{conn: conn, maxNodes: params.MaxNodes, decayFactor: params.DecayFactor}
}

// Migrate creates the graph tables if they do not exist.
func (db *DB) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS graph_edges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			relation TEXT NOT NULL,
			weight REAL NOT NULL DEFAULT 1.0,
			created_at INTEGER NOT NULL,
			UNIQUE(source_id, target_id, relation)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_graph_edges_source ON graph_edges(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_graph_edges_target ON graph_edges(target_id)`,
	}
	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return fmt.Errorf("graph migration failed: %w", err)
		}
	}
	return nil
}

// UpsertEdge inserts or updates an edge by (source, target, relation).
// The daemon owns this path in production; tests use it to build graphs.
func (db *DB) UpsertEdge(edge *Edge) (int64, error) {
	if edge.Weight == 0 {
		edge.Weight = 1.0
	}
	if edge.CreatedAt == 0 {
		edge.CreatedAt = time.Now().Unix()
	}

	query := `
		INSERT INTO graph_edges (source_id, target_id, relation, weight, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, relation) DO UPDATE SET
			weight = excluded.weight
		RETURNING id`

	var id int64
	err := db.conn.QueryRow(query, edge.SourceID, edge.TargetID, edge.Relation, edge.Weight, edge.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert edge: %w", err)
	}
	return id, nil
}

// Degree returns the number of edges touching the activity, in either
// direction. Zero means the activity is not in the graph.
func (db *DB) Degree(activityID string) (int, error) {
	var n int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM graph_edges
		WHERE source_id = ? OR target_id = ?`, activityID, activityID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// neighbor is one adjacent node with the edge that reaches it.
type neighbor struct {
	id       string
	relation string
	weight   float64
}

// neighbors returns adjacent activities in both edge directions.
func (db *DB) neighbors(activityID string) ([]neighbor, error) {
	rows, err := db.conn.Query(`
		SELECT target_id, relation, weight FROM graph_edges WHERE source_id = ?
		UNION ALL
		SELECT source_id, relation, weight FROM graph_edges WHERE target_id = ?`,
		activityID, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []neighbor
	for rows.Next() {
		var n neighbor
		if err := rows.Scan(&n.id, &n.relation, &n.weight); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Related performs a breadth-first traversal from the start activity out to
// maxDepth hops, both edge directions, cycle-safe. Results are ordered by
// distance then descending strength, where strength decays per hop by the
// configured decay factor. Never returns a node beyond maxDepth.
func (db *DB) Related(activityID string, maxDepth int) ([]RelatedActivity, error) {
	if maxDepth <= 0 {
		maxDepth = 2
	}

	visited := map[string]bool{activityID: true}
	frontier := []RelatedActivity{{ActivityID: activityID, Strength: 1.0}}
	results := []RelatedActivity{}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []RelatedActivity
		for _, cur := range frontier {
			ns, err := db.neighbors(cur.ActivityID)
			if err != nil {
				return nil, fmt.Errorf("traverse depth %d: %w", depth, err)
			}
			for _, n := range ns {
				if visited[n.id] {
					continue
				}
				visited[n.id] = true
				path := make([]string, len(cur.RelationPath), len(cur.RelationPath)+1)
				copy(path, cur.RelationPath)
				rel := RelatedActivity{
					ActivityID:   n.id,
					Distance:     depth,
					RelationPath: append(path, n.relation),
					Strength:     round3(cur.Strength * n.weight * db.decayFactor),
				}
				results = append(results, rel)
				next = append(next, rel)

				if len(results) >= db.maxNodes {
					return results, nil
				}
			}
		}
		frontier = next
	}

	// BFS already yields distance order; break ties by strength descending.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Strength > results[j].Strength
	})
	return results, nil
}

// GetStats returns aggregate graph counts.
func (db *DB) GetStats() (Stats, error) {
	s := Stats{
		EdgesByType: map[string]int{},
		MaxNodes:    db.maxNodes,
		DecayFactor: db.decayFactor,
	}
	if err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT source_id AS id FROM graph_edges
			UNION
			SELECT target_id FROM graph_edges
		)`).Scan(&s.TotalNodes); err != nil {
		return s, fmt.Errorf("count nodes: %w", err)
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM graph_edges`).Scan(&s.TotalEdges); err != nil {
		return s, fmt.Errorf("count edges: %w", err)
	}

	rows, err := db.conn.Query(`SELECT relation, COUNT(*) FROM graph_edges GROUP BY relation`)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var rel string
		var n int
		if err := rows.Scan(&rel, &n); err != nil {
			return s, err
		}
		s.EdgesByType[rel] = n
	}
	if err := rows.Err(); err != nil {
		return s, err
	}

	if s.TotalNodes > 0 {
		s.AvgDegree = round3(2 * float64(s.TotalEdges) / float64(s.TotalNodes))
	}
	return s, nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
