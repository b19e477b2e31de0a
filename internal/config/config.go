// Package config loads the YAML configuration shared by the API server and the admin CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the animedex configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Generator GeneratorConfig `yaml:"generator"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Reindex   ReindexConfig   `yaml:"reindex"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the Redis / Valkey connection backing the vector index.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// PostgresConfig holds the list store and catalog connection.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

// IndexConfig holds HNSW tuning and upsert batching.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
	BatchSize       int `yaml:"batch_size"`
}

// SearchConfig controls the primary/degraded state machine and the query embedding cache.
type SearchConfig struct {
	ReattemptPolicy      string `yaml:"reattempt_policy"` // sticky (default) | periodic
	ReattemptIntervalSec int    `yaml:"reattempt_interval_sec"`
	FailureThreshold     uint32 `yaml:"failure_threshold"`
	QueryCacheSize       int    `yaml:"query_cache_size"`
}

// TimeoutsConfig bounds calls into the index and the list store.
type TimeoutsConfig struct {
	IndexQueryMs int `yaml:"index_query_ms"`
	StoreTxMs    int `yaml:"store_tx_ms"`
}

// IndexQuery returns the index query timeout.
func (t TimeoutsConfig) IndexQuery() time.Duration {
	return time.Duration(t.IndexQueryMs) * time.Millisecond
}

// StoreTx returns the list store transaction timeout.
func (t TimeoutsConfig) StoreTx() time.Duration {
	return time.Duration(t.StoreTxMs) * time.Millisecond
}

// ReindexConfig throttles embedding batches during a reindex.
type ReindexConfig struct {
	RatePerSec float64 `yaml:"rate_per_sec"` // batches per second, 0 = unlimited
	Burst      int     `yaml:"burst"`
}

// EmbeddingConfig holds embedding settings. Vectorizer names the entry of
// Vectorizers in use; it may be omitted when exactly one is configured.
type EmbeddingConfig struct {
	Vectorizer    string                      `yaml:"vectorizer"`
	CacheTTLHours int                         `yaml:"cache_ttl_hours"` // 0 = keep forever
	Providers     map[string]ProviderConfig   `yaml:"providers"`
	Vectorizers   map[string]VectorizerConfig `yaml:"vectorizers"`
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// VectorizerConfig holds vectorizer settings.
type VectorizerConfig struct {
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	MaxBatch            int    `yaml:"max_batch"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// GeneratorConfig holds the chat completion provider settings.
type GeneratorConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// Active returns the selected vectorizer together with its provider.
func (e *EmbeddingConfig) Active() (string, VectorizerConfig, ProviderConfig, error) {
	name := e.Vectorizer
	if name == "" {
		if len(e.Vectorizers) != 1 {
			return "", VectorizerConfig{}, ProviderConfig{}, fmt.Errorf(
				"embedding.vectorizer is required when %d vectorizers are configured", len(e.Vectorizers))
		}
		for n := range e.Vectorizers {
			name = n
		}
	}
	vc, ok := e.Vectorizers[name]
	if !ok {
		return "", VectorizerConfig{}, ProviderConfig{}, fmt.Errorf(
			"embedding.vectorizer %q not found (have %s)", name, strings.Join(e.vectorizerNames(), ", "))
	}
	pc, ok := e.Providers[vc.Provider]
	if !ok {
		return "", VectorizerConfig{}, ProviderConfig{}, fmt.Errorf(
			"embedding.vectorizers.%s.provider %q is not configured", name, vc.Provider)
	}
	return name, vc, pc, nil
}

func (e *EmbeddingConfig) vectorizerNames() []string {
	names := make([]string, 0, len(e.Vectorizers))
	for n := range e.Vectorizers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands environment variables in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// chat turns wait on the generator
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Postgres.MaxConns <= 0 {
		c.Postgres.MaxConns = 10
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = 100
	}
	if c.Search.ReattemptPolicy == "" {
		c.Search.ReattemptPolicy = "sticky"
	}
	if c.Search.ReattemptIntervalSec <= 0 {
		c.Search.ReattemptIntervalSec = 60
	}
	if c.Search.FailureThreshold == 0 {
		c.Search.FailureThreshold = 1
	}
	if c.Search.QueryCacheSize <= 0 {
		c.Search.QueryCacheSize = 1024
	}
	if c.Timeouts.IndexQueryMs <= 0 {
		c.Timeouts.IndexQueryMs = 2000
	}
	if c.Timeouts.StoreTxMs <= 0 {
		c.Timeouts.StoreTxMs = 5000
	}
	if c.Reindex.Burst <= 0 {
		c.Reindex.Burst = 1
	}
	if c.Generator.Model == "" {
		c.Generator.Model = "llama-3.1-8b-instant"
	}
	if c.Generator.MaxTokens <= 0 {
		c.Generator.MaxTokens = 1024
	}
	if c.Generator.Temperature == 0 {
		c.Generator.Temperature = 0.7
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	switch c.Search.ReattemptPolicy {
	case "sticky", "periodic":
	default:
		return fmt.Errorf("search.reattempt_policy must be \"sticky\" or \"periodic\", got %q", c.Search.ReattemptPolicy)
	}
	if c.Reindex.RatePerSec < 0 {
		return fmt.Errorf("reindex.rate_per_sec must not be negative, got %g", c.Reindex.RatePerSec)
	}
	if len(c.Embedding.Vectorizers) > 0 {
		_, vc, _, err := c.Embedding.Active()
		if err != nil {
			return err
		}
		if vc.Dimensions < 0 {
			return fmt.Errorf("embedding vectorizer dimensions must not be negative, got %d", vc.Dimensions)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
