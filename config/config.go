// Package config holds the runtime configuration for the retrieval core.
//
// Configuration loads from a YAML file, then a .env style overlay
// (COLLECTION_NAME, OLLAMA_HOST, USE_MOCK_CLIENTS, ...) so container
// deployments can override single values without templating the file.
// Load validates once; components receive the validated Config and never
// re-check it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Collection   CollectionConfig   `yaml:"collection"`
	Ingest       IngestConfig       `yaml:"ingest"`
	Query        QueryConfig        `yaml:"query"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Synthesis    SynthesisConfig    `yaml:"synthesis"`
	Bridge       BridgeConfig       `yaml:"bridge"`
	Capabilities CapabilitiesConfig `yaml:"capabilities"`
}

// CollectionConfig fixes the collection identity and schema.
type CollectionConfig struct {
	Name           string `yaml:"name"`
	DenseDimension int    `yaml:"dense_dimension"`
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	BatchSize int    `yaml:"batch_size"`
	WatchDir  string `yaml:"watch_dir"`
	MinChars  int    `yaml:"min_chars"`
	MaxChars  int    `yaml:"max_chars"`
}

// QueryConfig tunes the hybrid query engine.
type QueryConfig struct {
	TopK              int     `yaml:"top_k"`
	DenseWeight       float64 `yaml:"dense_weight"`
	SparseWeight      float64 `yaml:"sparse_weight"`
	BranchTimeoutSecs int     `yaml:"branch_timeout_secs"`
}

// EmbeddingConfig selects and configures the embedding capability.
type EmbeddingConfig struct {
	// Provider is one of "ollama", "openai", "deterministic".
	Provider string `yaml:"provider"`
	// Model overrides the provider's default model when set.
	Model       string             `yaml:"model"`
	TimeoutSecs int                `yaml:"timeout_secs"`
	Ollama      OllamaConfig       `yaml:"ollama"`
	OpenAI      OpenAIClientConfig `yaml:"openai"`
	RateLimit   RateLimitConfig    `yaml:"rate_limit"`
}

// SynthesisConfig configures the synthesis LLM capability.
type SynthesisConfig struct {
	Model       string       `yaml:"model"`
	TimeoutSecs int          `yaml:"timeout_secs"`
	Ollama      OllamaConfig `yaml:"ollama"`
}

// OllamaConfig locates an Ollama endpoint.
type OllamaConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BaseURL renders the endpoint as a URL.
func (c OllamaConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// OpenAIClientConfig configures the OpenAI-compatible embedding client.
// The API key is read from the environment variable named by APIKeyEnv so
// secrets never land in config files.
type OpenAIClientConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// RateLimitConfig bounds outbound capability calls.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxConcurrent     int     `yaml:"max_concurrent"`
}

// BridgeConfig selects the bridge store backend for snapshot replication.
type BridgeConfig struct {
	// Backend is one of "local", "minio", "s3".
	Backend string            `yaml:"backend"`
	Prefix  string            `yaml:"prefix"`
	Local   LocalBridgeConfig `yaml:"local"`
	MinIO   MinIOBridgeConfig `yaml:"minio"`
	S3      S3BridgeConfig    `yaml:"s3"`
}

// LocalBridgeConfig points the bridge at a shared directory.
type LocalBridgeConfig struct {
	Dir string `yaml:"dir"`
}

// MinIOBridgeConfig locates a MinIO endpoint. Credentials come from the
// named environment variables.
type MinIOBridgeConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Secure       bool   `yaml:"secure"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
}

// S3BridgeConfig locates an S3 bucket; credentials come from the ambient
// AWS chain. PointerTable optionally names a DynamoDB table guarding the
// Latest Pointer with conditional writes.
type S3BridgeConfig struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	PointerTable string `yaml:"pointer_table"`
}

// CapabilitiesConfig switches between production and deterministic
// capability implementations.
type CapabilitiesConfig struct {
	// Mock selects the deterministic embedder and static synthesizer, for
	// tests and offline runs.
	Mock bool `yaml:"mock"`
}

// Load reads the YAML file at path (defaults apply if the file does not
// exist), overlays environment variables, fills remaining defaults, and
// validates. An empty path skips the file and loads defaults + environment.
func Load(path string) (*Config, error) {
	// Populate the process environment from .env if present.
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Fall through to defaults.
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnvOverlay(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the validated default configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyEnvOverlay maps the deployment environment onto the config. Only
// variables that are set override file values.
func applyEnvOverlay(cfg *Config) {
	setString(&cfg.Collection.Name, "COLLECTION_NAME")
	setInt(&cfg.Ingest.BatchSize, "INGEST_BATCH_SIZE")
	setString(&cfg.Ingest.WatchDir, "INGEST_WATCH_DIR")
	setString(&cfg.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	setString(&cfg.Embedding.Ollama.Host, "OLLAMA_HOST")
	setInt(&cfg.Embedding.Ollama.Port, "OLLAMA_PORT")
	setString(&cfg.Synthesis.Ollama.Host, "OLLAMA_HOST")
	setInt(&cfg.Synthesis.Ollama.Port, "OLLAMA_PORT")
	setString(&cfg.Synthesis.Model, "OLLAMA_MODEL")
	setBool(&cfg.Capabilities.Mock, "USE_MOCK_CLIENTS")
	setString(&cfg.Bridge.Backend, "BRIDGE_BACKEND")
	setString(&cfg.Bridge.Local.Dir, "BRIDGE_DIR")
	setString(&cfg.Bridge.S3.Bucket, "S3_BUCKET")
	setString(&cfg.Bridge.MinIO.Endpoint, "MINIO_ENDPOINT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Collection.Name == "" {
		cfg.Collection.Name = "brain_os_docs"
	}
	if cfg.Collection.DenseDimension == 0 {
		cfg.Collection.DenseDimension = 384
	}

	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 10
	}
	if cfg.Ingest.WatchDir == "" {
		cfg.Ingest.WatchDir = "/app/documents"
	}
	if cfg.Ingest.MinChars == 0 {
		cfg.Ingest.MinChars = 12
	}
	if cfg.Ingest.MaxChars == 0 {
		cfg.Ingest.MaxChars = 2000
	}

	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 5
	}
	if cfg.Query.DenseWeight == 0 && cfg.Query.SparseWeight == 0 {
		cfg.Query.DenseWeight = 0.7
		cfg.Query.SparseWeight = 0.3
	}
	if cfg.Query.BranchTimeoutSecs == 0 {
		cfg.Query.BranchTimeoutSecs = 10
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Embedding.Ollama.Host == "" {
		cfg.Embedding.Ollama.Host = "localhost"
	}
	if cfg.Embedding.Ollama.Port == 0 {
		cfg.Embedding.Ollama.Port = 11434
	}
	if cfg.Embedding.OpenAI.BaseURL == "" {
		cfg.Embedding.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.OpenAI.APIKeyEnv == "" {
		cfg.Embedding.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.RateLimit.MaxConcurrent == 0 {
		cfg.Embedding.RateLimit.MaxConcurrent = 4
	}

	if cfg.Synthesis.Model == "" {
		cfg.Synthesis.Model = "llama3.2"
	}
	if cfg.Synthesis.TimeoutSecs == 0 {
		cfg.Synthesis.TimeoutSecs = 120
	}
	if cfg.Synthesis.Ollama.Host == "" {
		cfg.Synthesis.Ollama.Host = "localhost"
	}
	if cfg.Synthesis.Ollama.Port == 0 {
		cfg.Synthesis.Ollama.Port = 11434
	}

	if cfg.Bridge.Backend == "" {
		cfg.Bridge.Backend = "local"
	}
	if cfg.Bridge.Prefix == "" {
		cfg.Bridge.Prefix = "bridge"
	}
	if cfg.Bridge.Local.Dir == "" {
		cfg.Bridge.Local.Dir = "/var/lib/brainos/bridge"
	}
	if cfg.Bridge.MinIO.AccessKeyEnv == "" {
		cfg.Bridge.MinIO.AccessKeyEnv = "MINIO_ACCESS_KEY"
	}
	if cfg.Bridge.MinIO.SecretKeyEnv == "" {
		cfg.Bridge.MinIO.SecretKeyEnv = "MINIO_SECRET_KEY"
	}
}

// Validate checks the config once at startup.
func (c *Config) Validate() error {
	if c.Collection.Name == "" {
		return errors.New("config: collection.name must not be empty")
	}
	if c.Collection.DenseDimension <= 0 {
		return fmt.Errorf("config: collection.dense_dimension must be positive, got %d", c.Collection.DenseDimension)
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("config: ingest.batch_size must be >= 1, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.MinChars < 1 {
		return fmt.Errorf("config: ingest.min_chars must be >= 1, got %d", c.Ingest.MinChars)
	}
	if c.Ingest.MaxChars < c.Ingest.MinChars {
		return fmt.Errorf("config: ingest.max_chars %d < min_chars %d", c.Ingest.MaxChars, c.Ingest.MinChars)
	}
	if c.Query.TopK < 1 || c.Query.TopK > 20 {
		return fmt.Errorf("config: query.top_k must be in [1, 20], got %d", c.Query.TopK)
	}
	if c.Query.DenseWeight < 0 || c.Query.SparseWeight < 0 {
		return errors.New("config: query fusion weights must not be negative")
	}
	if c.Query.DenseWeight+c.Query.SparseWeight == 0 {
		return errors.New("config: query fusion weights must not both be zero")
	}
	switch c.Embedding.Provider {
	case "ollama", "openai", "deterministic":
	default:
		return fmt.Errorf("config: unknown embedding.provider %q", c.Embedding.Provider)
	}
	switch c.Bridge.Backend {
	case "local", "minio", "s3":
	default:
		return fmt.Errorf("config: unknown bridge.backend %q", c.Bridge.Backend)
	}
	return nil
}
