package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	chromaemb "github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// ChromaIndex keeps the vectors of one document in a shared Chroma collection.
// Its records are tagged with a random index_id so that queries and Drop only
// see this index's chunks.
type ChromaIndex struct {
	collection chromago.Collection
	embedder   embeddings.Embedder
	model      string
	indexID    string

	mu    sync.Mutex
	count int
}

var _ SimilarityIndex = (*ChromaIndex)(nil)

// ChromaIndexFactory returns a factory of ChromaIndex values stored in collection.
func ChromaIndexFactory(collection chromago.Collection, embedder embeddings.Embedder, model string) IndexFactory {
	return func(context.Context) (SimilarityIndex, error) {
		return &ChromaIndex{
			collection: collection,
			embedder:   embedder,
			model:      model,
			indexID:    uuid.NewString(),
		}, nil
	}
}

// GetOrCreateChromaCollection opens the collection the Chroma backend writes to.
func GetOrCreateChromaCollection(ctx context.Context, client chromago.Client, name string) (chromago.Collection, error) {
	log.Printf("INDEXER: Getting or creating Chroma collection '%s'...", name)
	collection, err := client.GetOrCreateCollection(
		ctx,
		name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "pdfchat session chunks"),
				chromago.NewStringAttribute("created_by", "pdfchat"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create collection %s: %w", name, err)
	}
	return collection, nil
}

func (c *ChromaIndex) AddDocuments(ctx context.Context, docs []schema.Document, _ ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
	}
	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d chunks", len(vectors), len(docs))
	}

	ids := make([]chromago.DocumentID, len(docs))
	embs := make([]chromaemb.Embedding, len(docs))
	metas := make([]chromago.DocumentMetadata, len(docs))
	out := make([]string, len(docs))
	for i, d := range docs {
		id := fmt.Sprintf("%s-chunk%d", c.indexID, i)
		ids[i] = chromago.DocumentID(id)
		out[i] = id
		embs[i] = chromaemb.NewEmbeddingFromFloat32(vectors[i])
		metas[i] = c.metadata(d, i)
	}

	err = c.collection.Add(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add %d chunks to chromadb: %w", len(docs), err)
	}

	c.mu.Lock()
	c.count += len(docs)
	c.mu.Unlock()
	return out, nil
}

func (c *ChromaIndex) metadata(d schema.Document, i int) chromago.DocumentMetadata {
	source, _ := d.Metadata["source"].(string)
	return chromago.NewDocumentMetadata(
		chromago.NewStringAttribute("index_id", c.indexID),
		chromago.NewStringAttribute("embedding_model", c.model),
		chromago.NewStringAttribute("source", source),
		chromago.NewIntAttribute("chunk_num", int64(i)),
	)
}

func (c *ChromaIndex) SimilaritySearch(ctx context.Context, query string, numDocuments int, _ ...vectorstores.Option) ([]schema.Document, error) {
	vector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := c.collection.Query(
		ctx,
		chromago.WithQueryEmbeddings(chromaemb.NewEmbeddingFromFloat32(vector)),
		chromago.WithNResults(numDocuments),
		chromago.WithWhereQuery(chromago.EqString("index_id", c.indexID)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	var docs []schema.Document
	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	if len(documentGroups) == 0 {
		return docs, nil
	}
	for i, doc := range documentGroups[0] {
		var meta map[string]any
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) && metadataGroups[0][i] != nil {
			// DocumentMetadata has no map accessor; round-trip it through JSON.
			if b, err := json.Marshal(metadataGroups[0][i]); err == nil {
				_ = json.Unmarshal(b, &meta)
			}
		}
		docs = append(docs, schema.Document{PageContent: doc.ContentString(), Metadata: meta})
	}
	return docs, nil
}

func (c *ChromaIndex) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *ChromaIndex) EmbeddingModel() string { return c.model }

// Drop deletes every record this index wrote.
func (c *ChromaIndex) Drop(ctx context.Context) error {
	where := chromago.EqString("index_id", c.indexID)
	if err := c.collection.Delete(ctx, chromago.WithWhereDelete(where)); err != nil {
		return fmt.Errorf("failed to delete chunks of index %s: %w", c.indexID, err)
	}
	c.mu.Lock()
	c.count = 0
	c.mu.Unlock()
	return nil
}
