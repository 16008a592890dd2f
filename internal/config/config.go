// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool             `yaml:"debug"`
	Environment string           `yaml:"environment"`
	Server      ServerConfig     `yaml:"server"`
	Sources     SourcesConfig    `yaml:"sources"`
	Storage     StorageConfig    `yaml:"storage"`
	Embedding   EmbeddingConfig  `yaml:"embedding"`
	Generation  GenerationConfig `yaml:"generation"`
	Chunking    ChunkingConfig   `yaml:"chunking"`
	Retrieval   RetrievalConfig  `yaml:"retrieval"`
	MCP         MCPConfig        `yaml:"mcp"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SourcesConfig holds the document source directory settings.
type SourcesConfig struct {
	Directory   string `yaml:"directory"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
	Watch       bool   `yaml:"watch"`
}

// MaxUploadBytes returns the upload size limit in bytes.
func (s SourcesConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) * 1024 * 1024
}

// StorageConfig holds the vector index location and backend.
type StorageConfig struct {
	VectorStoreDir string `yaml:"vector_store_dir"`
	Collection     string `yaml:"collection"`
	IndexType      string `yaml:"index_type"`
	ChromaURL      string `yaml:"chroma_url"`
}

// EmbeddingConfig selects the embedding provider. The same provider and model must be
// used for indexing and querying a collection.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// GenerationConfig holds the language model settings. An empty APIKey leaves the
// service without a generator.
type GenerationConfig struct {
	BaseURL        string   `yaml:"base_url"`
	APIKey         string   `yaml:"api_key"`
	Model          string   `yaml:"model"`
	Temperature    *float64 `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Language       string   `yaml:"language"`
}

// TemperatureOrDefault returns the sampling temperature; defaults to 0.2 when unset.
func (g *GenerationConfig) TemperatureOrDefault() float64 {
	if g.Temperature != nil {
		return *g.Temperature
	}
	return defaultTemperature
}

// ChunkingConfig holds the chunk window in characters.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrievalConfig holds query defaults.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// MCPConfig holds the MCP SSE server settings.
type MCPConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the config file at path (a missing file yields defaults), loads .env files,
// applies RAG_* environment overrides and defaults, expands paths, and validates.
func Load(path string) (*Config, error) {
	configDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config dir: %w", err)
	}
	if err := loadDotEnv(filepath.Join(configDir, ".env"), ".env"); err != nil {
		return nil, err
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	cfg.Sources.Directory = expandPath(cfg.Sources.Directory, configDir)
	cfg.Storage.VectorStoreDir = expandPath(cfg.Storage.VectorStoreDir, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would make components unusable.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", models.ErrInvalidConfiguration)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be smaller than chunk_size", models.ErrInvalidConfiguration)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", models.ErrInvalidConfiguration)
	}
	switch c.Storage.IndexType {
	case "sqlite", "chroma":
	default:
		return fmt.Errorf("%w: unknown index_type %q (supported: sqlite, chroma)", models.ErrInvalidConfiguration, c.Storage.IndexType)
	}
	switch c.Embedding.Provider {
	case "hash", "onnx", "openai", "gemini":
	default:
		return fmt.Errorf("%w: unknown embedding provider %q (supported: hash, onnx, openai, gemini)", models.ErrInvalidConfiguration, c.Embedding.Provider)
	}
	return nil
}

func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// expandPath converts a path to absolute. "~/" is relative to the home directory;
// other relative paths are relative to configDir.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return filepath.Join(configDir, path)
}
