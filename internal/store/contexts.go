package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Context is a named work context grouping related activities.
type Context struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	CreatedAt   int64    `json:"created_at"`
	LastActive  int64    `json:"last_active"`
}

// ListContexts returns contexts ordered by last-active descending.
func (db *DB) ListContexts(limit int) ([]Context, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, name, description, tags, created_at, last_active
		FROM contexts
		ORDER BY last_active DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list contexts: %w", err)
	}
	defer rows.Close()

	contexts := []Context{}
	for rows.Next() {
		c, err := scanContext(rows.Scan)
		if err != nil {
			return nil, err
		}
		contexts = append(contexts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contexts, nil
}

// GetContextByName retrieves one context, or sql.ErrNoRows if absent.
func (db *DB) GetContextByName(name string) (*Context, error) {
	row := db.conn.QueryRow(`
		SELECT id, name, description, tags, created_at, last_active
		FROM contexts WHERE name = ?`, name)
	c, err := scanContext(row.Scan)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateOrUpdateContext creates a context, or merges fields into an existing
// one with the same name: empty description and nil tags leave the stored
// values untouched. Either way last_active is bumped.
func (db *DB) CreateOrUpdateContext(name, description string, tags []string) (*Context, error) {
	if name == "" {
		return nil, fmt.Errorf("context name is required")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now().Unix()
	existing, err := db.GetContextByName(name)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("lookup context: %w", err)
	}

	if existing != nil {
		if description != "" {
			existing.Description = description
		}
		if tags != nil {
			existing.Tags = tags
		}
		existing.LastActive = now

		tagsJSON, _ := json.Marshal(existing.Tags)
		_, err := db.conn.Exec(`
			UPDATE contexts SET description = ?, tags = ?, last_active = ?
			WHERE id = ?`,
			existing.Description, string(tagsJSON), now, existing.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("update context: %w", err)
		}
		return existing, nil
	}

	c := &Context{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Tags:        tags,
		CreatedAt:   now,
		LastActive:  now,
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(c.Tags)
	_, err = db.conn.Exec(`
		INSERT INTO contexts (id, name, description, tags, created_at, last_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, string(tagsJSON), c.CreatedAt, c.LastActive,
	)
	if err != nil {
		return nil, fmt.Errorf("create context: %w", err)
	}
	return c, nil
}

func scanContext(scan func(...any) error) (Context, error) {
	var c Context
	var tagsJSON string
	if err := scan(&c.ID, &c.Name, &c.Description, &tagsJSON, &c.CreatedAt, &c.LastActive); err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &c.Tags); err != nil || c.Tags == nil {
		c.Tags = []string{}
	}
	return c, nil
}
