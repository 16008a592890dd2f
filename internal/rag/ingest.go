package rag

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// Ingest chunks and indexes the given files, or every supported file under the source
// directory when paths is empty. Relative paths are resolved against the source
// directory; paths that are not existing regular files are counted as skipped.
// Re-ingesting a file appends a second copy of its chunks.
func (s *Service) Ingest(ctx context.Context, paths []string) (models.IngestionStats, error) {
	targets, skipped, err := s.targets(paths)
	if err != nil {
		return models.IngestionStats{}, err
	}
	claims := s.claim(targets)
	stats, err := s.store(ctx, targets, skipped)
	if err != nil {
		s.release(claims)
		return models.IngestionStats{}, err
	}
	return stats, nil
}

func (s *Service) targets(paths []string) ([]string, int, error) {
	if len(paths) == 0 {
		discovered, err := indexer.Discover(s.settings.SourceDir, s.logger)
		if err != nil {
			return nil, 0, fmt.Errorf("discover documents: %w", err)
		}
		return discovered, 0, nil
	}
	resolved := s.resolve(paths)
	skipped := max(len(paths)-len(resolved), 0)
	var targets []string
	for _, p := range resolved {
		if extract.IsSupported(p) {
			targets = append(targets, p)
		} else {
			s.logger.Debug("ignoring unsupported file", zap.String("path", p))
		}
	}
	return targets, skipped, nil
}

func (s *Service) store(ctx context.Context, targets []string, skipped int) (models.IngestionStats, error) {
	chunks := s.loader.Load(ctx, targets)
	if err := ctx.Err(); err != nil {
		s.logger.Warn("ingestion cancelled before indexing", zap.Int("chunks", len(chunks)))
		return models.IngestionStats{}, err
	}
	stored, err := s.index.Add(ctx, chunks)
	if err != nil {
		return models.IngestionStats{}, fmt.Errorf("index chunks: %w", err)
	}
	stats := models.IngestionStats{
		IngestedFiles:  len(targets),
		IngestedChunks: stored,
		SkippedFiles:   skipped,
	}
	s.metrics.ObserveIngest(stats.IngestedFiles, stats.IngestedChunks, stats.SkippedFiles)
	if n, err := s.index.Count(ctx); err == nil {
		s.metrics.SetEntries(n)
	}
	s.logger.Info("ingestion finished",
		zap.Int("files", stats.IngestedFiles),
		zap.Int("chunks", stats.IngestedChunks),
		zap.Int("skipped", stats.SkippedFiles))
	return stats, nil
}

// fileStamp identifies the version of a file that was last ingested.
type fileStamp struct {
	modTime time.Time
	size    int64
}

func stampOf(info os.FileInfo) fileStamp {
	return fileStamp{modTime: info.ModTime(), size: info.Size()}
}

func (s fileStamp) same(other fileStamp) bool {
	return s.size == other.size && s.modTime.Equal(other.modTime)
}

// stampClaim records the stamp a path had before an ingest claimed a new one.
type stampClaim struct {
	path    string
	claimed fileStamp
	prev    fileStamp
	hadPrev bool
}

// claim records the current version of every path as ingested before any indexing
// starts, so a concurrent IngestChanged sees it as already handled.
func (s *Service) claim(paths []string) []stampClaim {
	s.mu.Lock()
	defer s.mu.Unlock()
	claims := make([]stampClaim, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		claims = append(claims, s.claimLocked(p, stampOf(info)))
	}
	return claims
}

func (s *Service) claimLocked(path string, stamp fileStamp) stampClaim {
	prev, ok := s.stamps[path]
	s.stamps[path] = stamp
	return stampClaim{path: path, claimed: stamp, prev: prev, hadPrev: ok}
}

// release rolls back claims of a failed ingest. A claim that was since replaced by
// another ingest is left alone.
func (s *Service) release(claims []stampClaim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range claims {
		if cur, ok := s.stamps[c.path]; !ok || !cur.same(c.claimed) {
			continue
		}
		if c.hadPrev {
			s.stamps[c.path] = c.prev
		} else {
			delete(s.stamps, c.path)
		}
	}
}

// IngestChanged ingests path unless this service already ingested, or is ingesting,
// the same version of it (same modification time and size). The watcher uses it so
// that uploads, which are ingested directly, are not indexed twice.
func (s *Service) IngestChanged(ctx context.Context, path string) (models.IngestionStats, bool, error) {
	resolved := s.resolve([]string{path})
	if len(resolved) == 0 {
		return models.IngestionStats{}, false, nil
	}
	target := resolved[0]
	if !extract.IsSupported(target) {
		return models.IngestionStats{}, false, nil
	}
	info, err := os.Stat(target)
	if err != nil {
		return models.IngestionStats{}, false, nil
	}
	stamp := stampOf(info)

	s.mu.Lock()
	if prev, ok := s.stamps[target]; ok && prev.same(stamp) {
		s.mu.Unlock()
		s.logger.Debug("file unchanged since last ingest", zap.String("path", target))
		return models.IngestionStats{}, false, nil
	}
	claim := s.claimLocked(target, stamp)
	s.mu.Unlock()

	stats, err := s.store(ctx, []string{target}, 0)
	if err != nil {
		s.release([]stampClaim{claim})
		return models.IngestionStats{}, false, err
	}
	return stats, true, nil
}

func (s *Service) resolve(paths []string) []string {
	var out []string
	for _, p := range paths {
		candidate := p
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(s.settings.SourceDir, candidate)
		}
		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() {
			s.logger.Debug("skipping unresolvable path", zap.String("path", p))
			continue
		}
		if abs, err := filepath.Abs(candidate); err == nil {
			candidate = abs
		}
		out = append(out, filepath.Clean(candidate))
	}
	return out
}

// Upload stores the content of r as <source dir>/<base name of filename> and ingests it.
// size is the declared length, or -1 when unknown.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader, size int64) (models.IngestionStats, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return models.IngestionStats{}, fmt.Errorf("%w: a file name is required", models.ErrInvalidInput)
	}
	if !extract.IsSupported(name) {
		return models.IngestionStats{}, fmt.Errorf("%w: Unsupported file type: %s. Allowed: %s",
			models.ErrInvalidInput, strings.ToLower(filepath.Ext(name)), strings.Join(extract.SupportedExtensions, ", "))
	}
	limit := s.settings.MaxUploadBytes
	if limit > 0 && size > limit {
		return models.IngestionStats{}, fmt.Errorf("%w: File is too large.", models.ErrInvalidInput)
	}

	reader := r
	if limit > 0 {
		reader = io.LimitReader(r, limit+1)
	}
	contents, err := io.ReadAll(reader)
	if err != nil {
		return models.IngestionStats{}, fmt.Errorf("read upload: %w", err)
	}
	if limit > 0 && int64(len(contents)) > limit {
		return models.IngestionStats{}, fmt.Errorf("%w: File is too large.", models.ErrInvalidInput)
	}

	if err := os.MkdirAll(s.settings.SourceDir, 0755); err != nil {
		return models.IngestionStats{}, fmt.Errorf("create source directory: %w", err)
	}
	dest := filepath.Join(s.settings.SourceDir, name)
	if err := os.WriteFile(dest, contents, 0644); err != nil {
		return models.IngestionStats{}, fmt.Errorf("write upload: %w", err)
	}
	s.logger.Info("document uploaded", zap.String("path", dest), zap.Int("bytes", len(contents)))
	return s.Ingest(ctx, []string{dest})
}
