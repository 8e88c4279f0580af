package store

import (
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// SimilarResult is one semantic-search hit, ranked by ascending distance.
type SimilarResult struct {
	ActivityID  string  `json:"activity_id"`
	Timestamp   int64   `json:"timestamp"`
	AppName     string  `json:"app_name"`
	WindowTitle string  `json:"window_title"`
	FilePath    string  `json:"file_path,omitempty"`
	ContextID   string  `json:"context_id,omitempty"`
	Distance    float64 `json:"distance"`
	Score       float64 `json:"score"`
}

// UpsertEmbedding stores the embedding vector for an activity row. The
// daemon owns this path in production; tests use it to seed the index.
func (db *DB) UpsertEmbedding(activityRow int64, vec []float32) error {
	vecData, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return fmt.Errorf("serialize embedding: %w", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec(
		`DELETE FROM `+db.vecTable()+` WHERE activity_row = ?`, activityRow,
	); err != nil {
		return fmt.Errorf("replace embedding: %w", err)
	}
	if _, err := db.conn.Exec(
		`INSERT INTO `+db.vecTable()+` (activity_row, embedding) VALUES (?, ?)`,
		activityRow, vecData,
	); err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

// SearchSimilar performs a KNN search over activity embeddings.
func (db *DB) SearchSimilar(queryVec []float32, limit int) ([]SimilarResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	vecData, err := sqlite_vec.SerializeFloat32(queryVec)
	if err != nil {
		return nil, fmt.Errorf("serialize query: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT v.distance, a.activity_id, a.timestamp, a.app_name, a.window_title, a.file_path, a.context_id
		FROM `+db.vecTable()+` v
		JOIN activities a ON a.id = v.activity_row
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`,
		vecData, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	results := []SimilarResult{}
	for rows.Next() {
		var r SimilarResult
		if err := rows.Scan(&r.Distance, &r.ActivityID, &r.Timestamp, &r.AppName, &r.WindowTitle, &r.FilePath, &r.ContextID); err != nil {
			return nil, err
		}
		r.Score = 1.0 / (1.0 + r.Distance)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
