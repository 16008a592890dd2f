package rag

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) Add(ctx context.Context, chunks []models.DocumentChunk) (int, error) {
	args := m.Called(ctx, chunks)
	return args.Int(0), args.Error(1)
}

func (m *mockIndex) Query(ctx context.Context, text string, topK int) ([]models.RetrievedResult, error) {
	args := m.Called(ctx, text, topK)
	res, _ := args.Get(0).([]models.RetrievedResult)
	return res, args.Error(1)
}

func (m *mockIndex) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockIndex) Reset(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockIndex) Close() error {
	return m.Called().Error(0)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func score(v float64) *float64 { return &v }

func result(id, source, index, content string, distance float64) models.RetrievedResult {
	return models.RetrievedResult{
		ID:      id,
		Content: content,
		Metadata: map[string]string{
			models.MetaSource:     source,
			models.MetaPath:       "/docs/" + source,
			models.MetaChunkIndex: index,
		},
		Score: score(distance),
	}
}

func newChunker(t *testing.T) *indexer.Chunker {
	t.Helper()
	c, err := indexer.NewChunker(10, 4, nil, nil)
	require.NoError(t, err)
	return c
}

func newService(t *testing.T, dir string, idx vector.Index, gen *mockGenerator) *Service {
	t.Helper()
	var g llm.Generator
	if gen != nil {
		g = gen
	}
	svc, err := New(Settings{SourceDir: dir, TopK: 5, MaxUploadBytes: 64}, newChunker(t), idx, g, WithMetrics(metrics.New()))
	require.NoError(t, err)
	return svc
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestNew_invalid(t *testing.T) {
	_, err := New(Settings{TopK: 0}, newChunker(t), new(mockIndex), nil)
	assert.ErrorIs(t, err, models.ErrInvalidConfiguration)
	_, err = New(Settings{TopK: 3}, nil, new(mockIndex), nil)
	assert.ErrorIs(t, err, models.ErrInvalidConfiguration)
}

func TestQuery_emptyQuestion(t *testing.T) {
	idx := new(mockIndex)
	svc := newService(t, t.TempDir(), idx, new(mockGenerator))

	for _, q := range []string{"", "   \n\t"} {
		_, err := svc.Query(context.Background(), q, 0)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	}
	idx.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

func TestQuery_notConfigured(t *testing.T) {
	idx := new(mockIndex)
	svc := newService(t, t.TempDir(), idx, nil)

	_, err := svc.Query(context.Background(), "valid question", 0)
	assert.ErrorIs(t, err, models.ErrNotConfigured)
	assert.False(t, svc.GeneratorConfigured())

	_, err = svc.Query(context.Background(), "", 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput, "empty question is checked before the generator")
}

func TestQuery_noDocuments(t *testing.T) {
	idx := new(mockIndex)
	gen := new(mockGenerator)
	svc := newService(t, t.TempDir(), idx, gen)
	idx.On("Query", mock.Anything, "what is the policy?", 5).Return([]models.RetrievedResult{}, nil)

	answer, err := svc.Query(context.Background(), "what is the policy?", 0)
	require.NoError(t, err)
	assert.Equal(t, NoDocumentsAnswer, answer.Answer)
	assert.Equal(t, "", answer.Prompt)
	assert.NotNil(t, answer.Sources)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, "what is the policy?", answer.Question)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestQuery_answers(t *testing.T) {
	idx := new(mockIndex)
	gen := new(mockGenerator)
	svc := newService(t, t.TempDir(), idx, gen)

	retrieved := []models.RetrievedResult{
		result("2", "b.md", "3", "second most relevant? no, most relevant", 0.1),
		result("1", "a.txt", "0", "runner up", 0.4),
	}
	idx.On("Query", mock.Anything, "How many days?", 2).Return(retrieved, nil)
	gen.On("Generate", mock.Anything, mock.AnythingOfType("string")).Return("  20 days [b.md:3]\n", nil)

	answer, err := svc.Query(context.Background(), "How many days?", 2)
	require.NoError(t, err)
	assert.Equal(t, "20 days [b.md:3]", answer.Answer)
	assert.Equal(t, retrieved, answer.Sources)

	wantContext := "[b.md:3] second most relevant? no, most relevant\n[a.txt:0] runner up"
	assert.Contains(t, answer.Prompt, "Context:\n"+wantContext+"\n\nQuestion:\nHow many days?\n\nAnswer:\n")
	assert.Contains(t, answer.Prompt, "Return the answer in Japanese")
	assert.Contains(t, answer.Prompt, "[source:chunk]")

	gen.AssertCalled(t, "Generate", mock.Anything, answer.Prompt)
}

func TestQuery_backendFailure(t *testing.T) {
	idx := new(mockIndex)
	gen := new(mockGenerator)
	svc := newService(t, t.TempDir(), idx, gen)
	idx.On("Query", mock.Anything, "q", 5).Return([]models.RetrievedResult{result("1", "a.txt", "0", "c", 0)}, nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("rate limited"))

	_, err := svc.Query(context.Background(), "q", 0)
	assert.ErrorIs(t, err, models.ErrBackend)
}

func TestQuery_indexFailure(t *testing.T) {
	idx := new(mockIndex)
	svc := newService(t, t.TempDir(), idx, new(mockGenerator))
	idx.On("Query", mock.Anything, "q", 5).Return(nil, models.ErrIndex)

	_, err := svc.Query(context.Background(), "q", 0)
	assert.ErrorIs(t, err, models.ErrIndex)
}

func TestRetrieve(t *testing.T) {
	idx := new(mockIndex)
	svc := newService(t, t.TempDir(), idx, nil)
	idx.On("Query", mock.Anything, "badge", 3).Return(nil, nil)

	res, err := svc.Retrieve(context.Background(), "badge", 3)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)

	_, err = svc.Retrieve(context.Background(), " ", 3)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestIngest_discovery(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "b.txt", "A B C D E F G H I J")
	writeDoc(t, dir, "sub/a.md", "short")
	writeDoc(t, dir, "ignored.csv", "x,y")

	idx := new(mockIndex)
	svc := newService(t, dir, idx, nil)
	var added []models.DocumentChunk
	idx.On("Add", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		added = args.Get(1).([]models.DocumentChunk)
	}).Return(4, nil)
	idx.On("Count", mock.Anything).Return(4, nil)

	stats, err := svc.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.IngestionStats{IngestedFiles: 2, IngestedChunks: 4, SkippedFiles: 0}, stats)

	require.Len(t, added, 4)
	assert.Equal(t, "b.txt:0", added[0].Label())
	assert.Equal(t, "b.txt:2", added[2].Label())
	assert.Equal(t, "a.md:0", added[3].Label())
}

func TestIngest_explicitPaths(t *testing.T) {
	dir := t.TempDir()
	abs := writeDoc(t, dir, "abs.txt", "absolute file")
	writeDoc(t, dir, "rel.md", "relative file")
	writeDoc(t, dir, "table.csv", "a,b")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder"), 0755))

	idx := new(mockIndex)
	svc := newService(t, dir, idx, nil)
	idx.On("Add", mock.Anything, mock.Anything).Return(2, nil)
	idx.On("Count", mock.Anything).Return(2, nil)

	stats, err := svc.Ingest(context.Background(), []string{abs, "rel.md", "missing.txt", "folder", "table.csv"})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.IngestedFiles)
	assert.Equal(t, 2, stats.IngestedChunks)
	assert.Equal(t, 2, stats.SkippedFiles, "missing file and directory are skipped; the unsupported file is neither")
}

func TestIngest_indexFailure(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "content")
	idx := new(mockIndex)
	svc := newService(t, dir, idx, nil)
	idx.On("Add", mock.Anything, mock.Anything).Return(0, models.ErrBackend)

	_, err := svc.Ingest(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrBackend)
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	idx := new(mockIndex)
	svc := newService(t, filepath.Join(dir, "src"), idx, nil)
	idx.On("Add", mock.Anything, mock.Anything).Return(1, nil)
	idx.On("Count", mock.Anything).Return(1, nil)

	stats, err := svc.Upload(context.Background(), "../../notes.md", strings.NewReader("uploaded"), 8)
	require.NoError(t, err)
	assert.Equal(t, models.IngestionStats{IngestedFiles: 1, IngestedChunks: 1}, stats)

	data, err := os.ReadFile(filepath.Join(dir, "src", "notes.md"))
	require.NoError(t, err)
	assert.Equal(t, "uploaded", string(data))
}

func TestUpload_rejects(t *testing.T) {
	idx := new(mockIndex)
	svc := newService(t, t.TempDir(), idx, nil)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "sheet.xlsx", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Unsupported file type: .xlsx")

	big := bytes.Repeat([]byte("a"), 65)
	_, err = svc.Upload(ctx, "big.txt", bytes.NewReader(big), -1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Contains(t, err.Error(), "too large")

	_, err = svc.Upload(ctx, "big.txt", bytes.NewReader(big), 65)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	idx.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
}

func TestStatsAndReset(t *testing.T) {
	idx := new(mockIndex)
	svc := newService(t, t.TempDir(), idx, new(mockGenerator))
	idx.On("Count", mock.Anything).Return(7, nil)
	idx.On("Reset", mock.Anything).Return(nil)

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, st.Entries)
	assert.True(t, st.GeneratorConfigured)

	require.NoError(t, svc.Reset(context.Background()))
	idx.AssertExpectations(t)
}

// End to end over the real SQLite index: duplicates on re-ingest and ranking order
// preserved into the prompt.
func TestService_sqliteIndex(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeDoc(t, src, "handbook.txt", "A B C D E F G H I J")

	idx, err := vector.NewSQLiteIndex(context.Background(),
		vector.Options{Dir: filepath.Join(dir, "store"), Collection: "documents"},
		embedding.NewHashEmbedder(16), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("answer", nil)
	svc := newService(t, src, idx, gen)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, models.IngestionStats{IngestedFiles: 1, IngestedChunks: 3}, first)

	_, err = svc.Ingest(ctx, []string{"handbook.txt"})
	require.NoError(t, err)
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n, "re-ingesting appends a second copy")

	ranked, err := idx.Query(ctx, "G H I J", 4)
	require.NoError(t, err)
	answer, err := svc.Query(ctx, "G H I J", 4)
	require.NoError(t, err)
	require.Len(t, answer.Sources, 4)

	var lastPos int
	for i, r := range ranked {
		assert.Equal(t, r.ID, answer.Sources[i].ID)
		line := "[" + models.CitationLabel(r.Metadata) + "] " + r.Content
		pos := strings.Index(answer.Prompt[lastPos:], line)
		require.GreaterOrEqual(t, pos, 0, "context line %d out of order", i)
		lastPos += pos + len(line)
	}
}

func TestIngestChanged(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "policy.md", "first version")

	idx := new(mockIndex)
	svc := newService(t, dir, idx, nil)
	idx.On("Add", mock.Anything, mock.Anything).Return(2, nil)
	idx.On("Count", mock.Anything).Return(2, nil)
	ctx := context.Background()

	_, ingested, err := svc.IngestChanged(ctx, doc)
	require.NoError(t, err)
	assert.True(t, ingested)

	_, ingested, err = svc.IngestChanged(ctx, doc)
	require.NoError(t, err)
	assert.False(t, ingested, "unchanged file is not re-ingested")

	require.NoError(t, os.WriteFile(doc, []byte("second, longer version"), 0644))
	_, ingested, err = svc.IngestChanged(ctx, doc)
	require.NoError(t, err)
	assert.True(t, ingested)

	_, ingested, err = svc.IngestChanged(ctx, filepath.Join(dir, "gone.md"))
	require.NoError(t, err)
	assert.False(t, ingested)

	idx.AssertNumberOfCalls(t, "Add", 2)
}

func TestUpload_notReingestedByWatcher(t *testing.T) {
	dir := t.TempDir()
	idx := new(mockIndex)
	svc := newService(t, dir, idx, nil)
	idx.On("Add", mock.Anything, mock.Anything).Return(1, nil)
	idx.On("Count", mock.Anything).Return(1, nil)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "faq.txt", strings.NewReader("q and a"), 7)
	require.NoError(t, err)
	_, ingested, err := svc.IngestChanged(ctx, filepath.Join(dir, "faq.txt"))
	require.NoError(t, err)
	assert.False(t, ingested)
	idx.AssertNumberOfCalls(t, "Add", 1)
}

func TestUpload_watcherDuringSlowIndexing(t *testing.T) {
	dir := t.TempDir()
	idx := new(mockIndex)
	svc := newService(t, dir, idx, nil)
	adding := make(chan struct{})
	var once sync.Once
	idx.On("Add", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		once.Do(func() { close(adding) })
		time.Sleep(300 * time.Millisecond)
	}).Return(1, nil)
	idx.On("Count", mock.Anything).Return(1, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Upload(ctx, "faq.txt", strings.NewReader("q and a"), 7)
		done <- err
	}()

	select {
	case <-adding:
	case <-time.After(5 * time.Second):
		t.Fatal("upload never reached the index")
	}
	_, ingested, err := svc.IngestChanged(ctx, filepath.Join(dir, "faq.txt"))
	require.NoError(t, err)
	assert.False(t, ingested, "file being ingested by the upload is left alone")

	require.NoError(t, <-done)
	idx.AssertNumberOfCalls(t, "Add", 1)
}

func TestIngest_failureReleasesVersion(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "manual.txt", "content")
	idx := new(mockIndex)
	svc := newService(t, dir, idx, nil)
	idx.On("Add", mock.Anything, mock.Anything).Return(0, models.ErrBackend).Once()
	idx.On("Add", mock.Anything, mock.Anything).Return(1, nil)
	idx.On("Count", mock.Anything).Return(1, nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, []string{doc})
	require.ErrorIs(t, err, models.ErrBackend)

	_, ingested, err := svc.IngestChanged(ctx, doc)
	require.NoError(t, err)
	assert.True(t, ingested, "a failed ingest does not mark the file as indexed")

	_, ingested, err = svc.IngestChanged(ctx, doc)
	require.NoError(t, err)
	assert.False(t, ingested)
	idx.AssertNumberOfCalls(t, "Add", 2)
}

func TestIngest_cancelledBeforeIndexing(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "alpha")
	writeDoc(t, dir, "b.txt", "beta")
	idx := new(mockIndex)
	svc := newService(t, dir, idx, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Ingest(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	idx.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)

	idx.On("Add", mock.Anything, mock.Anything).Return(2, nil)
	idx.On("Count", mock.Anything).Return(2, nil)
	_, ingested, err := svc.IngestChanged(context.Background(), filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.True(t, ingested, "cancelled ingest leaves files eligible for the watcher")
}
