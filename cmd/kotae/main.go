// Package main is the kotae CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "config.yaml"

type rootOptions struct {
	configPath string
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "kotae",
		Short:         "Answer questions from your documents",
		Long:          "kotae indexes PDF, text and Markdown documents and answers questions about them with citations.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newIngestCmd(opts),
		newAskCmd(opts),
		newSearchCmd(opts),
		newStatusCmd(opts),
		newMCPCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("kotae version %s\n", version)
		},
	}
}

// loadConfig loads the config file. When the default path is used and missing from the
// working directory, the per-user config under the user config directory is tried.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); err != nil {
			if dir, dirErr := os.UserConfigDir(); dirErr == nil {
				fallback := filepath.Join(dir, "kotae", "config.yaml")
				if _, statErr := os.Stat(fallback); statErr == nil {
					path = fallback
				}
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	embedder embedding.Embedder
	index    vector.Index
	metrics  *metrics.Metrics
	service  *rag.Service
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, path, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || opts.debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", path), zap.Bool("debug", debug))

	a, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	embedder, err := embedding.NewEmbedder(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	index, err := vector.NewIndex(ctx, vector.Options{
		Type:       vector.IndexType(cfg.Storage.IndexType),
		Dir:        cfg.Storage.VectorStoreDir,
		ChromaURL:  cfg.Storage.ChromaURL,
		Collection: cfg.Storage.Collection,
	}, embedder, logger)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, nil, logger)
	if err != nil {
		_ = index.Close()
		_ = embedder.Close()
		return nil, err
	}
	generator, err := llm.NewGenerator(cfg.Generation, logger)
	if err != nil {
		_ = index.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	m := metrics.New()
	service, err := rag.New(rag.Settings{
		SourceDir:      cfg.Sources.Directory,
		VectorStoreDir: cfg.Storage.VectorStoreDir,
		TopK:           cfg.Retrieval.TopK,
		Language:       cfg.Generation.Language,
		MaxUploadBytes: cfg.Sources.MaxUploadBytes(),
	}, chunker, index, generator, rag.WithLogger(logger), rag.WithMetrics(m))
	if err != nil {
		_ = index.Close()
		_ = embedder.Close()
		return nil, err
	}
	logger.Info("components initialized",
		zap.String("index_type", cfg.Storage.IndexType),
		zap.String("collection", cfg.Storage.Collection),
		zap.String("embedding_model", embedder.Model()),
		zap.Bool("generator_configured", service.GeneratorConfigured()))
	return &app{
		cfg:      cfg,
		logger:   logger,
		embedder: embedder,
		index:    index,
		metrics:  m,
		service:  service,
	}, nil
}

// Close releases the index and embedder and flushes the logger.
func (a *app) Close() {
	if err := a.index.Close(); err != nil {
		a.logger.Warn("failed to close index", zap.Error(err))
	}
	if err := a.embedder.Close(); err != nil {
		a.logger.Warn("failed to close embedder", zap.Error(err))
	}
	_ = a.logger.Sync()
}
