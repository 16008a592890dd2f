package vector

import (
	"context"
	"fmt"
	"sort"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

const chromaModelKey = "embedding_model"

// chromaMetadataKeys are the chunk metadata keys read back from Chroma results.
var chromaMetadataKeys = []string{models.MetaSource, models.MetaPath, models.MetaChunkIndex}

// queryGroups is the part of a Chroma batch query result the index reads.
type queryGroups interface {
	GetIDGroups() []chroma.DocumentIDs
	GetDocumentsGroups() []chroma.Documents
	GetMetadatasGroups() []chroma.DocumentMetadatas
	GetDistancesGroups() []embeddings.Distances
}

// collection is the narrow view of a Chroma collection used by ChromaIndex.
type collection interface {
	add(ctx context.Context, ids, texts []string, metadatas []map[string]string) error
	query(ctx context.Context, text string, n int) (queryGroups, error)
	count(ctx context.Context) (int, error)
	reset(ctx context.Context) error
	close() error
}

// ChromaIndex stores entries in a Chroma server collection. Embeddings are computed
// by the collection's chroma-go embedding function.
type ChromaIndex struct {
	col    collection
	name   string
	logger *zap.Logger
}

// NewChromaIndex connects to opts.ChromaURL and opens or creates opts.Collection. The
// embedder must be backed by a chroma-go embedding function (openai or gemini provider).
func NewChromaIndex(ctx context.Context, opts Options, embedder embedding.Embedder, logger *zap.Logger) (*ChromaIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ef, ok := embedding.ChromaFunction(embedder)
	if !ok {
		return nil, fmt.Errorf("%w: the chroma index needs the openai or gemini embedding provider", models.ErrInvalidConfiguration)
	}
	model := opts.EmbeddingModel
	if model == "" {
		model = embedder.Model()
	}
	col, err := openChromaCollection(ctx, opts.ChromaURL, opts.Collection, model, ef)
	if err != nil {
		return nil, err
	}
	logger.Info("chroma collection opened",
		zap.String("url", opts.ChromaURL),
		zap.String("collection", opts.Collection),
		zap.String("embedding_model", model))
	return &ChromaIndex{col: col, name: opts.Collection, logger: logger}, nil
}

// Add stores chunks under fresh UUIDs.
func (c *ChromaIndex) Add(ctx context.Context, chunks []models.DocumentChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	metas := make([]map[string]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = uuid.NewString()
		texts[i] = ch.Content
		metas[i] = models.CloneMetadata(ch.Metadata)
	}
	if err := c.col.add(ctx, ids, texts, metas); err != nil {
		return 0, fmt.Errorf("%w: chroma add: %w", models.ErrBackend, err)
	}
	c.logger.Debug("entries added", zap.String("collection", c.name), zap.Int("count", len(ids)))
	return len(ids), nil
}

// Query returns up to topK entries nearest to text.
func (c *ChromaIndex) Query(ctx context.Context, text string, topK int) ([]models.RetrievedResult, error) {
	if topK <= 0 {
		return []models.RetrievedResult{}, nil
	}
	n, err := c.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []models.RetrievedResult{}, nil
	}
	if topK > n {
		topK = n
	}
	qr, err := c.col.query(ctx, text, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: chroma query: %w", models.ErrBackend, err)
	}
	return flattenQuery(qr), nil
}

// flattenQuery returns the first sub-result of a batch query as a ranked list.
func flattenQuery(qr queryGroups) []models.RetrievedResult {
	results := []models.RetrievedResult{}
	idGroups := qr.GetIDGroups()
	if len(idGroups) == 0 {
		return results
	}
	ids := idGroups[0]
	var (
		docs      chroma.Documents
		metas     chroma.DocumentMetadatas
		distances embeddings.Distances
	)
	if g := qr.GetDocumentsGroups(); len(g) > 0 {
		docs = g[0]
	}
	if g := qr.GetMetadatasGroups(); len(g) > 0 {
		metas = g[0]
	}
	if g := qr.GetDistancesGroups(); len(g) > 0 {
		distances = g[0]
	}
	for i, id := range ids {
		r := models.RetrievedResult{ID: string(id), Metadata: map[string]string{}}
		if i < len(docs) && docs[i] != nil {
			r.Content = docs[i].ContentString()
		}
		if i < len(metas) && metas[i] != nil {
			for _, key := range chromaMetadataKeys {
				if v, ok := metas[i].GetString(key); ok {
					r.Metadata[key] = v
				}
			}
		}
		if i < len(distances) {
			d := float64(distances[i])
			r.Score = &d
		}
		results = append(results, r)
	}
	return results
}

// Count returns the number of entries in the collection.
func (c *ChromaIndex) Count(ctx context.Context) (int, error) {
	n, err := c.col.count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: chroma count: %w", models.ErrBackend, err)
	}
	return n, nil
}

// Reset drops and recreates the collection.
func (c *ChromaIndex) Reset(ctx context.Context) error {
	if err := c.col.reset(ctx); err != nil {
		return fmt.Errorf("%w: chroma reset: %w", models.ErrBackend, err)
	}
	c.logger.Info("collection reset", zap.String("collection", c.name))
	return nil
}

// Close releases the HTTP client.
func (c *ChromaIndex) Close() error {
	return c.col.close()
}

// chromaCollection adapts a chroma-go v2 collection to collection.
type chromaCollection struct {
	client chroma.Client
	col    chroma.Collection
	name   string
	model  string
	ef     embeddings.EmbeddingFunction
}

func openChromaCollection(ctx context.Context, baseURL, name, model string, ef embeddings.EmbeddingFunction) (*chromaCollection, error) {
	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("%w: chroma client: %w", models.ErrBackend, err)
	}
	c := &chromaCollection{client: client, name: name, model: model, ef: ef}
	if err := c.open(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return c, nil
}

func (c *chromaCollection) open(ctx context.Context) error {
	col, err := c.client.GetOrCreateCollection(ctx, c.name,
		chroma.WithEmbeddingFunctionCreate(c.ef),
		chroma.WithCollectionMetadataCreate(
			chroma.NewMetadata(chroma.NewStringAttribute(chromaModelKey, c.model)),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: open collection %q: %w", models.ErrBackend, c.name, err)
	}
	if meta := col.Metadata(); meta != nil {
		if stored, ok := meta.GetString(chromaModelKey); ok && stored != c.model {
			return fmt.Errorf("%w: collection %q was built with embedding model %q, not %q",
				models.ErrIndex, c.name, stored, c.model)
		}
	}
	c.col = col
	return nil
}

func (c *chromaCollection) add(ctx context.Context, ids, texts []string, metadatas []map[string]string) error {
	docIDs := make([]chroma.DocumentID, len(ids))
	for i, id := range ids {
		docIDs[i] = chroma.DocumentID(id)
	}
	metas := make([]chroma.DocumentMetadata, len(metadatas))
	for i, m := range metadatas {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs := make([]*chroma.MetaAttribute, 0, len(keys))
		for _, k := range keys {
			attrs = append(attrs, chroma.NewStringAttribute(k, m[k]))
		}
		metas[i] = chroma.NewDocumentMetadata(attrs...)
	}
	return c.col.Add(ctx,
		chroma.WithIDs(docIDs...),
		chroma.WithTexts(texts...),
		chroma.WithMetadatas(metas...),
	)
}

func (c *chromaCollection) query(ctx context.Context, text string, n int) (queryGroups, error) {
	return c.col.Query(ctx,
		chroma.WithQueryTexts(text),
		chroma.WithNResults(n),
	)
}

func (c *chromaCollection) count(ctx context.Context) (int, error) {
	return c.col.Count(ctx)
}

func (c *chromaCollection) reset(ctx context.Context) error {
	if err := c.client.DeleteCollection(ctx, c.name); err != nil {
		return err
	}
	return c.open(ctx)
}

func (c *chromaCollection) close() error {
	return c.client.Close()
}
