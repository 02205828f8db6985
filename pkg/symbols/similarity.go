package symbols

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/draftsmith-eda/draftsmith/pkg/llm"
)

// Searcher ranks candidate symbol identifiers by textual similarity to a
// query. Implementations are best-effort oracles: a failed search returns
// an error that callers downgrade to "no suggestions".
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]string, error)
}

// EmbeddingSearcher ranks symbols by cosine similarity between the query
// embedding and the cached symbol embeddings in the vector store.
type EmbeddingSearcher struct {
	embedder llm.Embedder
	store    *VectorStore
	logger   *zap.Logger
}

// NewEmbeddingSearcher creates a searcher over a populated vector store.
func NewEmbeddingSearcher(embedder llm.Embedder, store *VectorStore, logger *zap.Logger) *EmbeddingSearcher {
	return &EmbeddingSearcher{
		embedder: embedder,
		store:    store,
		logger:   logger.Named("similarity"),
	}
}

// Search implements Searcher. Results are lib IDs, best match first.
func (s *EmbeddingSearcher) Search(ctx context.Context, query string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	queryVec, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	stored, err := s.store.All()
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}

	type scored struct {
		libID string
		score float64
	}
	ranked := make([]scored, 0, len(stored))
	for _, sv := range stored {
		ranked = append(ranked, scored{
			libID: fmt.Sprintf("%s:%s", sv.Lib, sv.Name),
			score: cosineSimilarity(queryVec, sv.Vector),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i].libID
	}

	s.logger.Debug("similarity search",
		zap.String("query", query),
		zap.Int("indexed", len(stored)),
		zap.Int("returned", len(out)))
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ Searcher = (*EmbeddingSearcher)(nil)

// indexBatchSize bounds one embedding request during index builds.
const indexBatchSize = 100

// BuildIndex embeds every cataloged symbol that is not yet in the store.
// Intended for the offline `draftsmith index` command; safe to re-run, only
// missing symbols are embedded.
func BuildIndex(ctx context.Context, catalog *Catalog, embedder llm.Embedder, store *VectorStore, logger *zap.Logger) (int, error) {
	logger = logger.Named("indexer")

	type pending struct{ lib, name string }
	var todo []pending
	for _, lib := range catalog.Libraries() {
		for _, name := range catalog.SymbolsOf(lib) {
			ok, err := store.Has(lib, name)
			if err != nil {
				return 0, fmt.Errorf("probe index: %w", err)
			}
			if !ok {
				todo = append(todo, pending{lib, name})
			}
		}
	}

	indexed := 0
	for start := 0; start < len(todo); start += indexBatchSize {
		end := start + indexBatchSize
		if end > len(todo) {
			end = len(todo)
		}
		batch := todo[start:end]

		inputs := make([]string, len(batch))
		for i, p := range batch {
			// The document is the symbol name qualified by its library,
			// which is what queries (part values) resemble.
			inputs[i] = fmt.Sprintf("%s %s", p.name, p.lib)
		}

		vectors, err := embedder.CreateEmbeddings(ctx, inputs)
		if err != nil {
			return indexed, fmt.Errorf("embed batch at %d: %w", start, err)
		}
		for i, p := range batch {
			if err := store.Put(p.lib, p.name, vectors[i]); err != nil {
				return indexed, err
			}
			indexed++
		}
		logger.Info("index progress",
			zap.Int("indexed", indexed),
			zap.Int("total", len(todo)))
	}

	return indexed, nil
}
