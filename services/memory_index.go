package services

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// SimilarityIndex is the vector store holding one document's chunks. It is
// pinned to the embedder it was built with: queries are embedded by the same
// model as the chunks.
type SimilarityIndex interface {
	vectorstores.VectorStore
	Len() int
	EmbeddingModel() string
	// Drop releases whatever the index holds. The index is unusable afterwards.
	Drop(ctx context.Context) error
}

// IndexFactory creates an empty SimilarityIndex.
type IndexFactory func(ctx context.Context) (SimilarityIndex, error)

// MemoryIndex is an in-memory brute-force index ordered by L2 distance.
type MemoryIndex struct {
	embedder embeddings.Embedder
	model    string

	mu      sync.RWMutex
	ids     []string
	docs    []schema.Document
	vectors [][]float32
}

var _ SimilarityIndex = (*MemoryIndex)(nil)

func NewMemoryIndex(embedder embeddings.Embedder, model string) *MemoryIndex {
	return &MemoryIndex{embedder: embedder, model: model}
}

// MemoryIndexFactory returns a factory of MemoryIndex values sharing embedder.
func MemoryIndexFactory(embedder embeddings.Embedder, model string) IndexFactory {
	return func(context.Context) (SimilarityIndex, error) {
		return NewMemoryIndex(embedder, model), nil
	}
}

// AddDocuments embeds every document and inserts them together. Nothing is
// inserted when any embedding fails.
func (m *MemoryIndex) AddDocuments(ctx context.Context, docs []schema.Document, _ ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
	}

	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d chunks", len(vectors), len(docs))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dim := 0
	if len(m.vectors) > 0 {
		dim = len(m.vectors[0])
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("embedding service returned an empty vector for chunk %d", i)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return nil, fmt.Errorf("vector dimension mismatch: chunk %d has %d, expected %d", i, len(v), dim)
		}
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = uuid.NewString()
		m.docs = append(m.docs, schema.Document{PageContent: d.PageContent, Metadata: maps.Clone(d.Metadata)})
	}
	m.ids = append(m.ids, ids...)
	m.vectors = append(m.vectors, vectors...)
	return ids, nil
}

// SimilaritySearch embeds query and returns the numDocuments nearest chunks,
// nearest first.
func (m *MemoryIndex) SimilaritySearch(ctx context.Context, query string, numDocuments int, _ ...vectorstores.Option) ([]schema.Document, error) {
	vector, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return m.SearchVector(vector, numDocuments), nil
}

// SearchVector returns the k stored chunks nearest to vector by L2 distance.
// Ties keep insertion order. Score is 1/(1+distance); the raw distance is in
// the "distance" metadata key.
func (m *MemoryIndex) SearchVector(vector []float32, k int) []schema.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		idx  int
		dist float64
	}
	results := make([]scored, len(m.vectors))
	for i, v := range m.vectors {
		results[i] = scored{idx: i, dist: l2Distance(vector, v)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].dist < results[j].dist
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}

	out := make([]schema.Document, len(results))
	for i, r := range results {
		d := m.docs[r.idx]
		meta := maps.Clone(d.Metadata)
		if meta == nil {
			meta = map[string]any{}
		}
		meta["distance"] = r.dist
		out[i] = schema.Document{
			PageContent: d.PageContent,
			Metadata:    meta,
			Score:       float32(1 / (1 + r.dist)),
		}
	}
	return out
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryIndex) EmbeddingModel() string { return m.model }

func (m *MemoryIndex) Drop(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids, m.docs, m.vectors = nil, nil, nil
	return nil
}

// l2Distance treats missing trailing components of the shorter vector as zero.
func l2Distance(a, b []float32) float64 {
	n := max(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		var x, y float64
		if i < len(a) {
			x = float64(a[i])
		}
		if i < len(b) {
			y = float64(b[i])
		}
		sum += (x - y) * (x - y)
	}
	return math.Sqrt(sum)
}
