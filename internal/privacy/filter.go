// Package privacy implements the blacklist-enforcement gate applied to every
// result record before it leaves the process.
package privacy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Blacklist entry kinds.
const (
	KindApp       = "app"
	KindDirectory = "directory"
)

// Blacklist edit actions.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// Snapshot is a point-in-time copy of the blacklist, sorted for stable output.
type Snapshot struct {
	Apps        []string `json:"blacklisted_apps"`
	Directories []string `json:"blacklisted_directories"`
}

// Filter evaluates result records against the blacklist. Apps match exactly;
// directories match by path prefix. Edits are serialized under a single
// writer; reads never block each other.
type Filter struct {
	mu   sync.RWMutex
	apps map[string]bool
	dirs map[string]bool
	path string // persistence file; empty = in-memory only (tests)
}

// New creates a filter seeded with the given entries and backed by the
// persistence file at path. Entries already persisted at path are merged in.
func New(path string, apps, dirs []string) (*Filter, error) {
	f := &Filter{
		apps: make(map[string]bool),
		dirs: make(map[string]bool),
		path: path,
	}
	for _, a := range apps {
		if a != "" {
			f.apps[a] = true
		}
	}
	for _, d := range dirs {
		if d = normalizeDir(d); d != "" {
			f.dirs[d] = true
		}
	}

	if path != "" {
		snap, err := loadSnapshot(path)
		if err != nil {
			return nil, fmt.Errorf("load blacklist: %w", err)
		}
		if snap != nil {
			for _, a := range snap.Apps {
				f.apps[a] = true
			}
			for _, d := range snap.Directories {
				if d = normalizeDir(d); d != "" {
					f.dirs[d] = true
				}
			}
		}
	}
	return f, nil
}

// AllowsApp reports whether results for the given app may be emitted.
func (f *Filter) AllowsApp(app string) bool {
	if app == "" {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return !f.apps[app]
}

// AllowsPath reports whether results mentioning the given file path may be
// emitted. A path under any blacklisted directory is denied.
func (f *Filter) AllowsPath(path string) bool {
	if path == "" {
		return true
	}
	clean := normalizeDir(path)
	f.mu.RLock()
	defer f.mu.RUnlock()
	for dir := range f.dirs {
		if clean == dir || strings.HasPrefix(clean, dir+"/") {
			return false
		}
	}
	return true
}

// Allows combines the app and path checks for one record.
func (f *Filter) Allows(app, path string) bool {
	return f.AllowsApp(app) && f.AllowsPath(path)
}

// Snapshot returns a sorted copy of the current blacklist.
func (f *Filter) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshotLocked()
}

func (f *Filter) snapshotLocked() Snapshot {
	snap := Snapshot{
		Apps:        make([]string, 0, len(f.apps)),
		Directories: make([]string, 0, len(f.dirs)),
	}
	for a := range f.apps {
		snap.Apps = append(snap.Apps, a)
	}
	for d := range f.dirs {
		snap.Directories = append(snap.Directories, d)
	}
	sort.Strings(snap.Apps)
	sort.Strings(snap.Directories)
	return snap
}

// Edit adds or removes a blacklist entry and persists the change. Adding an
// existing entry or removing a missing one is a no-op that still succeeds.
// If persistence fails the in-memory mutation is rolled back, so the filter
// never drifts from its durable source of truth.
func (f *Filter) Edit(kind, value, action string) (Snapshot, error) {
	if value == "" {
		return Snapshot{}, fmt.Errorf("blacklist value is required")
	}

	switch kind {
	case KindApp:
	case KindDirectory:
		value = normalizeDir(value)
	default:
		return Snapshot{}, fmt.Errorf("unknown blacklist type: %q (use %q or %q)", kind, KindApp, KindDirectory)
	}
	if action != ActionAdd && action != ActionRemove {
		return Snapshot{}, fmt.Errorf("unknown blacklist action: %q (use %q or %q)", action, ActionAdd, ActionRemove)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	set := f.apps
	if kind == KindDirectory {
		set = f.dirs
	}

	// Idempotent no-ops skip persistence entirely.
	if (action == ActionAdd && set[value]) || (action == ActionRemove && !set[value]) {
		return f.snapshotLocked(), nil
	}

	if action == ActionAdd {
		set[value] = true
	} else {
		delete(set, value)
	}

	if err := f.persistLocked(); err != nil {
		// Roll back so memory matches what is durably stored.
		if action == ActionAdd {
			delete(set, value)
		} else {
			set[value] = true
		}
		return Snapshot{}, fmt.Errorf("persist blacklist: %w", err)
	}
	return f.snapshotLocked(), nil
}

// Stats summarizes the blacklist for the stats tool.
type Stats struct {
	BlacklistedApps        int `json:"blacklisted_apps"`
	BlacklistedDirectories int `json:"blacklisted_directories"`
}

// GetStats returns blacklist entry counts.
func (f *Filter) GetStats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Stats{
		BlacklistedApps:        len(f.apps),
		BlacklistedDirectories: len(f.dirs),
	}
}

// persistLocked writes the snapshot atomically (temp file + rename).
// Caller must hold the write lock.
func (f *Filter) persistLocked() error {
	if f.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(f.snapshotLocked(), "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Reload replaces the snapshot with the persisted file's contents. Used when
// the engine daemon rewrites the blacklist out from under the query layer.
func (f *Filter) Reload() error {
	if f.path == "" {
		return nil
	}
	snap, err := loadSnapshot(f.path)
	if err != nil {
		return fmt.Errorf("reload blacklist: %w", err)
	}
	if snap == nil {
		return nil
	}

	apps := make(map[string]bool, len(snap.Apps))
	for _, a := range snap.Apps {
		apps[a] = true
	}
	dirs := make(map[string]bool, len(snap.Directories))
	for _, d := range snap.Directories {
		if d = normalizeDir(d); d != "" {
			dirs[d] = true
		}
	}

	f.mu.Lock()
	f.apps = apps
	f.dirs = dirs
	f.mu.Unlock()
	return nil
}

// loadSnapshot reads the persisted blacklist, returning nil if absent.
func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &snap, nil
}

// normalizeDir cleans a path to forward slashes with no trailing separator.
func normalizeDir(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return strings.TrimSuffix(filepath.ToSlash(filepath.Clean(p)), "/")
}
