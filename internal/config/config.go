// Package config provides configuration for the cce binary.
// Loads from: env vars > config.toml in the engine directory > built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all cce configuration, loaded once at startup. The query
// layer never hot-reloads it; the engine daemon owns the file.
type Config struct {
	Engine     EngineConfig     `toml:"engine"`
	Storage    StorageConfig    `toml:"storage"`
	Vector     VectorConfig     `toml:"vector"`
	Graph      GraphConfig      `toml:"graph"`
	Prediction PredictionConfig `toml:"prediction"`
	Server     ServerConfig     `toml:"server"`
	Privacy    PrivacyConfig    `toml:"privacy"`
}

// EngineConfig locates the Context Continuity Engine's data directory.
// All relative paths in the other sections resolve against it.
type EngineConfig struct {
	DataDir string `toml:"data_dir"`
}

// StorageConfig holds activity database settings.
type StorageConfig struct {
	DatabasePath string `toml:"database_path"`
}

// VectorConfig holds embedding index settings.
type VectorConfig struct {
	Collection string `toml:"collection"`
	Provider   string `toml:"provider"` // "ollama" (default), "openai", "openai-compatible"
	Model      string `toml:"model"`
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
	Dimensions int    `toml:"dimensions"` // 0 = provider default
}

// GraphConfig holds temporal graph parameters.
type GraphConfig struct {
	MaxNodes    int     `toml:"max_nodes"`
	DecayFactor float64 `toml:"decay_factor"`
	MaxDepth    int     `toml:"max_depth"` // traversal ceiling
}

// PredictionConfig holds predictor tuning parameters.
type PredictionConfig struct {
	PredictionWindow int     `toml:"prediction_window"` // hours of history considered
	MinConfidence    float64 `toml:"min_confidence"`
}

// ServerConfig holds tool-server settings.
type ServerConfig struct {
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
}

// PrivacyConfig seeds the privacy filter. BlacklistPath is where edits are
// persisted; the inline lists are merged into the initial snapshot.
type PrivacyConfig struct {
	BlacklistPath          string   `toml:"blacklist_path"`
	BlacklistedApps        []string `toml:"blacklisted_apps"`
	BlacklistedDirectories []string `toml:"blacklisted_directories"`
}

// DefaultConfig returns a Config with all built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DatabasePath: "activity.db",
		},
		Vector: VectorConfig{
			Collection: "activities",
			Provider:   "ollama",
			Model:      "nomic-embed-text",
		},
		Graph: GraphConfig{
			MaxNodes:    10000,
			DecayFactor: 0.95,
			MaxDepth:    5,
		},
		Prediction: PredictionConfig{
			PredictionWindow: 72,
			MinConfidence:    0.3,
		},
		Server: ServerConfig{
			RequestTimeoutSeconds: 30,
		},
		Privacy: PrivacyConfig{
			BlacklistPath: "privacy_blacklist.json",
		},
	}
}

// Load merges all configuration sources: defaults < TOML file < env vars.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := findConfigFile()
	if configPath != "" {
		meta, err := toml.DecodeFile(configPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
		warnUnknownKeys(meta, configPath)
	}

	applyEnv(cfg)
	return cfg, nil
}

// LoadFrom loads configuration from a specific file path, merging with
// defaults and env vars.
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			meta, err := toml.DecodeFile(configPath, cfg)
			if err != nil {
				return nil, fmt.Errorf("parse config %s: %w", configPath, err)
			}
			warnUnknownKeys(meta, configPath)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CCE_DATA_DIR"); v != "" {
		cfg.Engine.DataDir = v
	}
	if v := os.Getenv("CCE_EMBED_PROVIDER"); v != "" {
		cfg.Vector.Provider = v
	}
	if v := os.Getenv("CCE_EMBED_MODEL"); v != "" {
		cfg.Vector.Model = v
	}
	if v := os.Getenv("CCE_EMBED_BASE_URL"); v != "" {
		cfg.Vector.BaseURL = v
	}
	if v := os.Getenv("CCE_EMBED_API_KEY"); v != "" {
		cfg.Vector.APIKey = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" && cfg.Vector.Provider == "ollama" {
		cfg.Vector.BaseURL = v
	}
	if cfg.Vector.APIKey == "" && (cfg.Vector.Provider == "openai" || cfg.Vector.Provider == "openai-compatible") {
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.Vector.APIKey = v
		}
	}
}

// ConfigOverride is set by the --config global flag.
var ConfigOverride string

// findConfigFile looks for the engine config: --config flag, CCE_CONFIG env,
// then <data dir>/config.toml.
func findConfigFile() string {
	if ConfigOverride != "" {
		return ConfigOverride
	}
	if v := os.Getenv("CCE_CONFIG"); v != "" {
		return v
	}
	p := filepath.Join(rawDataDir(), "config.toml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// rawDataDir resolves the engine data directory without loading the full
// config, to avoid recursion during config loading.
func rawDataDir() string {
	if v := os.Getenv("CCE_DATA_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "cce")
}

// DataDir resolves the engine data directory for this config.
func (c *Config) DataDir() string {
	if c.Engine.DataDir != "" {
		return c.Engine.DataDir
	}
	return rawDataDir()
}

// DatabasePath resolves the activity database path against the data dir.
func (c *Config) DatabasePath() string {
	return c.resolve(c.Storage.DatabasePath)
}

// BlacklistPath resolves the privacy blacklist path against the data dir.
func (c *Config) BlacklistPath() string {
	return c.resolve(c.Privacy.BlacklistPath)
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir(), path)
}

// RequestTimeout returns the per-request handler execution budget.
func (c *Config) RequestTimeout() time.Duration {
	secs := c.Server.RequestTimeoutSeconds
	if secs <= 0 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

// GraphDepthCeiling returns the maximum allowed traversal depth. Requests
// asking for more are clamped, not rejected.
func (c *Config) GraphDepthCeiling() int {
	if c.Graph.MaxDepth <= 0 {
		return 5
	}
	return c.Graph.MaxDepth
}

// MinConfidence returns the predictor's confidence floor.
func (c *Config) MinConfidence() float64 {
	if c.Prediction.MinConfidence <= 0 {
		return 0.3
	}
	return c.Prediction.MinConfidence
}

// configSuggestions maps common wrong keys to the correct TOML key name.
var configSuggestions = map[string]string{
	"db_path":        "database_path",
	"database":       "database_path",
	"apikey":         "api_key",
	"api-key":        "api_key",
	"baseurl":        "base_url",
	"base-url":       "base_url",
	"timeout":        "request_timeout_seconds",
	"confidence":     "min_confidence",
	"window":         "prediction_window",
	"blacklist":      "blacklist_path",
	"blacklist_file": "blacklist_path",
}

// warnUnknownKeys prints warnings for unrecognized config keys.
func warnUnknownKeys(meta toml.MetaData, configPath string) {
	undecoded := meta.Undecoded()
	if len(undecoded) == 0 {
		return
	}
	fname := filepath.Base(configPath)
	for _, key := range undecoded {
		keyStr := key.String()
		lastPart := key[len(key)-1]
		if suggestion, ok := configSuggestions[lastPart]; ok {
			fmt.Fprintf(os.Stderr, "cce: WARNING: unknown key %q in %s — did you mean %q?\n",
				keyStr, fname, suggestion)
		} else {
			fmt.Fprintf(os.Stderr, "cce: WARNING: unknown key %q in %s (will be ignored)\n",
				keyStr, fname)
		}
	}
}

// Generate writes a default config.toml into the data directory.
func Generate(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dataDir, "config.toml")
	return os.WriteFile(path, []byte(generateTOMLContent(dataDir)), 0o600)
}

func generateTOMLContent(dataDir string) string {
	var b strings.Builder
	b.WriteString("# Context Continuity Engine — query server configuration\n")
	b.WriteString("#\n")
	b.WriteString("# Priority: environment variables > this file > built-in defaults\n")
	b.WriteString("# Environment variables: CCE_DATA_DIR, CCE_CONFIG, CCE_EMBED_PROVIDER,\n")
	b.WriteString("#   CCE_EMBED_MODEL, CCE_EMBED_BASE_URL, CCE_EMBED_API_KEY, OLLAMA_URL\n\n")

	b.WriteString("[engine]\n")
	b.WriteString(fmt.Sprintf("data_dir = %q\n\n", dataDir))

	b.WriteString("[storage]\n")
	b.WriteString("database_path = \"activity.db\"\n\n")

	b.WriteString("[vector]\n")
	b.WriteString("collection = \"activities\"\n")
	b.WriteString("# Embedding provider: \"ollama\" (default), \"openai\", \"openai-compatible\"\n")
	b.WriteString("provider = \"ollama\"\n")
	b.WriteString("model = \"nomic-embed-text\"\n")
	b.WriteString("# api_key = \"\"     # required for cloud providers\n")
	b.WriteString("# dimensions = 0   # 0 = provider default\n\n")

	b.WriteString("[graph]\n")
	b.WriteString("max_nodes = 10000\n")
	b.WriteString("decay_factor = 0.95\n")
	b.WriteString("max_depth = 5\n\n")

	b.WriteString("[prediction]\n")
	b.WriteString("prediction_window = 72\n")
	b.WriteString("min_confidence = 0.3\n\n")

	b.WriteString("[server]\n")
	b.WriteString("request_timeout_seconds = 30\n\n")

	b.WriteString("[privacy]\n")
	b.WriteString("blacklist_path = \"privacy_blacklist.json\"\n")
	b.WriteString("# blacklisted_apps = [\"1Password\"]\n")
	b.WriteString("# blacklisted_directories = [\"/home/user/private\"]\n")

	return b.String()
}

// Sentinel errors for consistent messaging across the CLI and server.
var (
	// ErrNoDatabase is returned when the activity database cannot be opened.
	ErrNoDatabase = fmt.Errorf("cannot open activity database — is the engine daemon initialized?")
)
