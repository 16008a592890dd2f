package embedding

import (
	"fmt"

	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/openai"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// NewEmbedder builds the embedder selected by cfg.Provider, wrapped in a
// CachedEmbedder when cfg.CacheSize is positive.
func NewEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "", "hash":
		e = NewHashEmbedder(cfg.Dimensions)
	case "onnx":
		if cfg.ModelPath == "" {
			return nil, fmt.Errorf("%w: embedding.model_path is required for the onnx provider", models.ErrInvalidConfiguration)
		}
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Model, cfg.Dimensions, cfg.MaxTokens)
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: an API key is required for the openai embedding provider", models.ErrInvalidConfiguration)
		}
		ef, efErr := openai.NewOpenAIEmbeddingFunction(cfg.APIKey, openai.WithModel(openai.EmbeddingModel(cfg.Model)))
		if efErr != nil {
			err = efErr
			break
		}
		e = NewFunctionEmbedder(ef, cfg.Model)
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: an API key is required for the gemini embedding provider", models.ErrInvalidConfiguration)
		}
		ef, efErr := gemini.NewGeminiEmbeddingFunction(
			gemini.WithAPIKey(cfg.APIKey),
			gemini.WithDefaultModel(embeddings.EmbeddingModel(cfg.Model)))
		if efErr != nil {
			err = efErr
			break
		}
		e = NewFunctionEmbedder(ef, cfg.Model)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrInvalidConfiguration, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedder: %w", cfg.Provider, err)
	}
	logger.Info("embedder ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", e.Model()),
		zap.Int("dimensions", e.Dimensions()))
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	}
	return e, nil
}

// ChromaFunction returns the chroma-go embedding function behind e, unwrapping caches.
func ChromaFunction(e Embedder) (embeddings.EmbeddingFunction, bool) {
	for {
		switch v := e.(type) {
		case *FunctionEmbedder:
			return v.Function(), true
		case *CachedEmbedder:
			e = v.Unwrap()
		default:
			return nil, false
		}
	}
}
