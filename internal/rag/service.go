// Package rag ties chunking, vector retrieval and answer generation together.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"go.uber.org/zap"
)

// Loader turns file paths into chunks; *indexer.Chunker implements it.
type Loader interface {
	Load(ctx context.Context, paths []string) []models.DocumentChunk
}

// Settings are fixed at construction.
type Settings struct {
	SourceDir      string
	VectorStoreDir string
	TopK           int
	Language       string
	MaxUploadBytes int64
}

// Status summarizes the index for operators.
type Status struct {
	Entries             int    `json:"entries"`
	GeneratorConfigured bool   `json:"generator_configured"`
	SourceDir           string `json:"source_dir"`
	storage.DiskUsage
}

// Service answers questions over the indexed corpus. It holds no mutable state
// besides its collaborators; concurrent calls are safe when the index is.
type Service struct {
	settings  Settings
	loader    Loader
	index     vector.Index
	generator llm.Generator
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu     sync.Mutex
	stamps map[string]fileStamp
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records ingestion and query metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a Service. generator may be nil, in which case Query fails with
// models.ErrNotConfigured while ingestion and retrieval keep working.
func New(settings Settings, loader Loader, index vector.Index, generator llm.Generator, opts ...Option) (*Service, error) {
	if loader == nil || index == nil {
		return nil, fmt.Errorf("%w: loader and index are required", models.ErrInvalidConfiguration)
	}
	if settings.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive", models.ErrInvalidConfiguration)
	}
	if settings.Language == "" {
		settings.Language = DefaultLanguage
	}
	s := &Service{
		settings:  settings,
		loader:    loader,
		index:     index,
		generator: generator,
		logger:    zap.NewNop(),
		stamps:    make(map[string]fileStamp),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// Settings returns the construction settings.
func (s *Service) Settings() Settings {
	return s.settings
}

// GeneratorConfigured reports whether Query can produce answers.
func (s *Service) GeneratorConfigured() bool {
	return s.generator != nil
}

// Retrieve returns the topK chunks nearest to question (the configured default when
// topK <= 0) in index ranking order.
func (s *Service) Retrieve(ctx context.Context, question string, topK int) ([]models.RetrievedResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question must not be empty", models.ErrInvalidInput)
	}
	return s.retrieve(ctx, question, topK)
}

func (s *Service) retrieve(ctx context.Context, question string, topK int) ([]models.RetrievedResult, error) {
	k := topK
	if k <= 0 {
		k = s.settings.TopK
	}
	results, err := s.index.Query(ctx, question, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if results == nil {
		results = []models.RetrievedResult{}
	}
	return results, nil
}

// Query answers question from the retrieved context. It returns the prompt sent to
// the generator alongside the answer and its sources.
func (s *Service) Query(ctx context.Context, question string, topK int) (answer *models.Answer, err error) {
	start := time.Now()
	retrieved := 0
	defer func() {
		s.metrics.ObserveQuery(queryOutcome(answer, err), time.Since(start), retrieved)
	}()

	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question must not be empty", models.ErrInvalidInput)
	}
	if s.generator == nil {
		return nil, fmt.Errorf("%w: set RAG_OPENAI_API_KEY to enable answers", models.ErrNotConfigured)
	}

	results, err := s.retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	retrieved = len(results)
	if len(results) == 0 {
		s.logger.Info("no documents retrieved", zap.String("question", question))
		return &models.Answer{
			Question: question,
			Answer:   NoDocumentsAnswer,
			Prompt:   "",
			Sources:  []models.RetrievedResult{},
		}, nil
	}

	prompt := BuildPrompt(BuildContext(results), question, s.settings.Language)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: generate answer: %w", models.ErrBackend, err)
	}
	s.logger.Debug("question answered",
		zap.String("question", question),
		zap.Int("sources", len(results)),
		zap.Duration("elapsed", time.Since(start)))
	return &models.Answer{
		Question: question,
		Answer:   strings.TrimSpace(text),
		Prompt:   prompt,
		Sources:  results,
	}, nil
}

func queryOutcome(answer *models.Answer, err error) string {
	switch {
	case err == nil && answer != nil && answer.Prompt == "":
		return metrics.OutcomeNoDocuments
	case err == nil:
		return metrics.OutcomeAnswered
	case errors.Is(err, models.ErrInvalidInput):
		return metrics.OutcomeInvalid
	case errors.Is(err, models.ErrNotConfigured):
		return metrics.OutcomeNotConfigured
	default:
		return metrics.OutcomeError
	}
}

// Reset removes every indexed entry.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.index.Reset(ctx); err != nil {
		return err
	}
	s.metrics.SetEntries(0)
	return nil
}

// Stats reports the collection size and disk usage.
func (s *Service) Stats(ctx context.Context) (*Status, error) {
	n, err := s.index.Count(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.SetEntries(n)
	usage, err := storage.MeasureDiskUsage(s.settings.VectorStoreDir, s.settings.SourceDir)
	if err != nil {
		s.logger.Warn("failed to measure disk usage", zap.Error(err))
	}
	return &Status{
		Entries:             n,
		GeneratorConfigured: s.GeneratorConfigured(),
		SourceDir:           s.settings.SourceDir,
		DiskUsage:           usage,
	}, nil
}
