package config

import "strings"

const defaultTemperature = 0.2

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Sources.Directory == "" {
		cfg.Sources.Directory = "data/source_documents"
	}
	if cfg.Sources.MaxUploadMB == 0 {
		cfg.Sources.MaxUploadMB = 15
	}
	if cfg.Storage.VectorStoreDir == "" {
		cfg.Storage.VectorStoreDir = "data/vector_store"
	}
	if cfg.Storage.Collection == "" {
		cfg.Storage.Collection = "documents"
	}
	if cfg.Storage.IndexType == "" {
		cfg.Storage.IndexType = "sqlite"
	}
	if cfg.Storage.ChromaURL == "" {
		cfg.Storage.ChromaURL = "http://localhost:8001"
	}
	cfg.Embedding.Provider = strings.ToLower(cfg.Embedding.Provider)
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hash"
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case "openai":
			cfg.Embedding.Model = "text-embedding-3-small"
		case "gemini":
			cfg.Embedding.Model = "text-embedding-004"
		case "onnx":
			cfg.Embedding.Model = "intfloat/multilingual-e5-small"
		default:
			cfg.Embedding.Model = "hash"
		}
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o-mini"
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 512
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = 60
	}
	if cfg.Generation.Language == "" {
		cfg.Generation.Language = "Japanese"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 800
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 200
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.MCP.Addr == "" {
		cfg.MCP.Addr = "localhost:8002"
	}
}
