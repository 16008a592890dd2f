package config

import (
	"fmt"
	"strconv"

	"github.com/hyperjump/kotae/internal/models"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with RAG_* environment variables. RAG_OPENAI_API_KEY also
// serves as the embedding key when the embedding provider is openai and no key is set.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", models.ErrInvalidConfiguration, key, v)
		}
		*dst = n
		return nil
	}

	str("RAG_ENVIRONMENT_NAME", &cfg.Environment)
	str("RAG_SOURCE_DIR", &cfg.Sources.Directory)
	str("RAG_VECTOR_STORE_DIR", &cfg.Storage.VectorStoreDir)
	str("RAG_COLLECTION", &cfg.Storage.Collection)
	str("RAG_INDEX_TYPE", &cfg.Storage.IndexType)
	str("RAG_CHROMA_URL", &cfg.Storage.ChromaURL)
	str("RAG_EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	str("RAG_EMBEDDING_MODEL", &cfg.Embedding.Model)
	str("RAG_EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	str("RAG_OPENAI_API_KEY", &cfg.Generation.APIKey)
	str("RAG_OPENAI_MODEL", &cfg.Generation.Model)
	str("RAG_OPENAI_BASE_URL", &cfg.Generation.BaseURL)
	str("RAG_LANGUAGE", &cfg.Generation.Language)

	for key, dst := range map[string]*int{
		"RAG_CHUNK_SIZE":           &cfg.Chunking.ChunkSize,
		"RAG_CHUNK_OVERLAP":        &cfg.Chunking.ChunkOverlap,
		"RAG_TOP_K":                &cfg.Retrieval.TopK,
		"RAG_MAX_ANSWER_TOKENS":    &cfg.Generation.MaxTokens,
		"RAG_ALLOW_UPLOAD_SIZE_MB": &cfg.Sources.MaxUploadMB,
		"RAG_PORT":                 &cfg.Server.Port,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("RAG_TEMPERATURE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: RAG_TEMPERATURE=%q is not a number", models.ErrInvalidConfiguration, v)
		}
		cfg.Generation.Temperature = &f
	}

	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKey = cfg.Generation.APIKey
	}
	return nil
}
