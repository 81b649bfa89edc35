package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"docchat/internal/domain"
)

// Ingest modes for re-running ingestion against an existing store.
const (
	IngestReplace = "replace"
	IngestAppend  = "append"
)

// OpenAIConfig holds connection settings shared by the embedding and
// chat clients. The API key is only ever read from the environment.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
	BatchSize   int    `yaml:"batch_size"`
}

// ChunkingConfig configures how documents are split into chunks.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig configures similarity search and answer generation.
type RetrievalConfig struct {
	TopK        int     `yaml:"top_k"`
	Temperature float64 `yaml:"temperature"`
}

// StoreConfig selects and configures the vector store implementation.
type StoreConfig struct {
	Type   string        `yaml:"type"`
	Dir    string        `yaml:"dir"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// Config is the immutable application configuration, constructed once
// at startup and passed by parameter to every component.
type Config struct {
	DocsDir        string          `yaml:"docs_dir"`
	Embedder       string          `yaml:"embedder"`
	EmbeddingModel string          `yaml:"embedding_model"`
	LLMModel       string          `yaml:"llm_model"`
	IngestMode     string          `yaml:"ingest_mode"`
	LogLevel       string          `yaml:"log_level"`
	OpenAI         OpenAIConfig    `yaml:"openai"`
	Chunking       ChunkingConfig  `yaml:"chunking"`
	Retrieval      RetrievalConfig `yaml:"retrieval"`
	Store          StoreConfig     `yaml:"store"`

	// APIKey is resolved from the environment during Load and never
	// serialized back to disk.
	APIKey string `yaml:"-"`
}

// Timeout returns the request timeout for external API calls.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.OpenAI.TimeoutSecs) * time.Second
}

// Load builds the configuration from an optional YAML file at path,
// then applies environment overrides and validates the result. A
// missing file is not an error; the defaults are used.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewError(domain.KindConfiguration,
				fmt.Sprintf("cannot read config file %s", path), err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, domain.NewError(domain.KindConfiguration,
					fmt.Sprintf("cannot parse config file %s", path), err).
					WithHint("check the YAML syntax of the config file")
			}
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.APIKey = os.Getenv(cfg.OpenAI.APIKeyEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and the presence of the API key where the
// OpenAI-backed components are selected. All failures are fatal
// configuration errors carrying a remediation hint.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("chunk size must be a positive integer, got %d", c.Chunking.Size), nil).
			WithHint("set DOCCHAT_CHUNK_SIZE to a value greater than zero")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("chunk overlap must satisfy 0 <= overlap < size, got overlap=%d size=%d",
				c.Chunking.Overlap, c.Chunking.Size), nil).
			WithHint("set DOCCHAT_CHUNK_OVERLAP to a value smaller than the chunk size")
	}
	if c.Retrieval.TopK < 1 {
		return domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("top-K must be at least 1, got %d", c.Retrieval.TopK), nil).
			WithHint("set DOCCHAT_TOP_K to 1 or more")
	}
	if c.Retrieval.Temperature < 0 || c.Retrieval.Temperature > 2 {
		return domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("temperature must be between 0 and 2, got %g", c.Retrieval.Temperature), nil).
			WithHint("set DOCCHAT_TEMPERATURE to a value in [0, 2]")
	}
	switch c.IngestMode {
	case IngestReplace, IngestAppend:
	default:
		return domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("unknown ingest mode %q", c.IngestMode), nil).
			WithHint(`set DOCCHAT_INGEST_MODE to "replace" or "append"`)
	}
	switch c.Embedder {
	case "openai", "tfidf":
	default:
		return domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("unknown embedder %q", c.Embedder), nil).
			WithHint(`set DOCCHAT_EMBEDDER to "openai" or "tfidf"`)
	}
	switch c.Store.Type {
	case "local":
		if c.Store.Dir == "" {
			return domain.NewError(domain.KindConfiguration,
				"vector store directory is empty", nil).
				WithHint("set DOCCHAT_STORE_DIR to a writable directory path")
		}
	case "qdrant":
		if c.Store.Qdrant == nil || c.Store.Qdrant.URL == "" {
			return domain.NewError(domain.KindConfiguration,
				"qdrant store selected but no URL configured", nil).
				WithHint("add a store.qdrant section with a url to the config file")
		}
	default:
		return domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("unknown vector store %q", c.Store.Type), nil).
			WithHint(`set DOCCHAT_STORE to "local" or "qdrant"`)
	}
	if c.Embedder == "openai" {
		if err := validAPIKey(c.APIKey, c.OpenAI.APIKeyEnv); err != nil {
			return err
		}
	}
	return nil
}

// validAPIKey rejects absent and obviously-placeholder keys up front
// so the failure surfaces before any network call.
func validAPIKey(key, envName string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("API key not found in %s", envName), nil).
			WithHint(fmt.Sprintf("create an API key and export %s, or put it in a .env file", envName))
	}
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "your-") || strings.Contains(lower, "changeme") ||
		strings.ContainsAny(trimmed, " \t") {
		return domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("API key in %s looks like a placeholder", envName), nil).
			WithHint(fmt.Sprintf("replace the value of %s with a real API key", envName))
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		DocsDir:        "data/sample_docs",
		Embedder:       "openai",
		EmbeddingModel: "text-embedding-3-small",
		LLMModel:       "gpt-4o-mini",
		IngestMode:     IngestReplace,
		LogLevel:       "info",
		OpenAI: OpenAIConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			TimeoutSecs: 30,
			MaxRetries:  3,
			BatchSize:   32,
		},
		Chunking:  ChunkingConfig{Size: 500, Overlap: 100},
		Retrieval: RetrievalConfig{TopK: 3, Temperature: 0.3},
		Store:     StoreConfig{Type: "local", Dir: "vector_store"},
	}
}

// applyEnv overlays DOCCHAT_* environment variables on top of the file
// values; the environment is the authoritative configuration surface.
// A set-but-unparseable numeric variable is a fatal configuration
// error, never a silent fallback to the default.
func applyEnv(cfg *Config) error {
	setString(&cfg.DocsDir, "DOCCHAT_DOCS_DIR")
	setString(&cfg.Embedder, "DOCCHAT_EMBEDDER")
	setString(&cfg.EmbeddingModel, "DOCCHAT_EMBEDDING_MODEL")
	setString(&cfg.LLMModel, "DOCCHAT_LLM_MODEL")
	setString(&cfg.IngestMode, "DOCCHAT_INGEST_MODE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Store.Type, "DOCCHAT_STORE")
	setString(&cfg.Store.Dir, "DOCCHAT_STORE_DIR")
	setString(&cfg.OpenAI.BaseURL, "DOCCHAT_OPENAI_BASE_URL")
	intVars := []struct {
		dst *int
		key string
	}{
		{&cfg.Chunking.Size, "DOCCHAT_CHUNK_SIZE"},
		{&cfg.Chunking.Overlap, "DOCCHAT_CHUNK_OVERLAP"},
		{&cfg.Retrieval.TopK, "DOCCHAT_TOP_K"},
		{&cfg.OpenAI.TimeoutSecs, "DOCCHAT_REQUEST_TIMEOUT_SECS"},
		{&cfg.OpenAI.MaxRetries, "DOCCHAT_MAX_RETRIES"},
		{&cfg.OpenAI.BatchSize, "DOCCHAT_EMBED_BATCH_SIZE"},
	}
	for _, v := range intVars {
		if err := setInt(v.dst, v.key); err != nil {
			return err
		}
	}
	return setFloat(&cfg.Retrieval.Temperature, "DOCCHAT_TEMPERATURE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("%s must be an integer, got %q", key, v), err).
			WithHint(fmt.Sprintf("set %s to a whole number or unset it", key))
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("%s must be a number, got %q", key, v), err).
			WithHint(fmt.Sprintf("set %s to a number or unset it", key))
	}
	*dst = f
	return nil
}
