package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Activity is one tracked activity record as the daemon stores it.
type Activity struct {
	RowID       int64  `json:"-"`
	ActivityID  string `json:"activity_id"`
	Timestamp   int64  `json:"timestamp"`
	AppName     string `json:"app_name"`
	WindowTitle string `json:"window_title"`
	FilePath    string `json:"file_path,omitempty"`
	ContextID   string `json:"context_id,omitempty"`
	Duration    int64  `json:"duration_seconds,omitempty"`
}

// InsertActivity records one activity. The daemon owns this path in
// production; the query layer uses it for tests and backfills.
func (db *DB) InsertActivity(a *Activity) (int64, error) {
	if a.ActivityID == "" {
		a.ActivityID = uuid.NewString()
	}
	if a.Timestamp == 0 {
		a.Timestamp = time.Now().Unix()
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec(`
		INSERT INTO activities (activity_id, timestamp, app_name, window_title, file_path, context_id, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ActivityID, a.Timestamp, a.AppName, a.WindowTitle, a.FilePath, a.ContextID, a.Duration,
	)
	if err != nil {
		return 0, fmt.Errorf("insert activity: %w", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	a.RowID = rowID
	return rowID, nil
}

// RecentActivities returns activities from the last `hours` hours, newest
// first. A non-positive window yields an empty result, not an error.
func (db *DB) RecentActivities(hours, limit int) ([]Activity, error) {
	if hours <= 0 {
		return []Activity{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()
	rows, err := db.conn.Query(`
		SELECT id, activity_id, timestamp, app_name, window_title, file_path, context_id, duration_seconds
		FROM activities
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent activities: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

// GetActivity retrieves one activity by its public id.
func (db *DB) GetActivity(activityID string) (*Activity, error) {
	var a Activity
	err := db.conn.QueryRow(`
		SELECT id, activity_id, timestamp, app_name, window_title, file_path, context_id, duration_seconds
		FROM activities WHERE activity_id = ?`, activityID).Scan(
		&a.RowID, &a.ActivityID, &a.Timestamp, &a.AppName, &a.WindowTitle, &a.FilePath, &a.ContextID, &a.Duration,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Cleanup removes activities strictly older than `days` days, along with
// their embedding rows. Returns the number of activity records removed.
// Running it twice on unchanged data removes nothing the second time.
func (db *DB) Cleanup(days int) (int64, error) {
	if days < 0 {
		return 0, fmt.Errorf("retention days must be non-negative, got %d", days)
	}
	cutoff := time.Now().AddDate(0, 0, -days).Unix()

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec(
		`DELETE FROM `+db.vecTable()+` WHERE activity_row IN (SELECT id FROM activities WHERE timestamp < ?)`,
		cutoff,
	); err != nil {
		return 0, fmt.Errorf("cleanup embeddings: %w", err)
	}

	res, err := db.conn.Exec(`DELETE FROM activities WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup activities: %w", err)
	}
	return res.RowsAffected()
}

func scanActivities(rows *sql.Rows) ([]Activity, error) {
	activities := []Activity{}
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.RowID, &a.ActivityID, &a.Timestamp, &a.AppName, &a.WindowTitle, &a.FilePath, &a.ContextID, &a.Duration); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return activities, nil
}
