package services

import (
	"context"
	"log"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// Retrieve returns the k chunks of index nearest to query, nearest first. The
// query is embedded by the index's own embedder.
func Retrieve(ctx context.Context, index SimilarityIndex, query string, k int) ([]schema.Document, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if index.Len() == 0 {
		return nil, nil
	}
	docs, err := vectorstores.ToRetriever(index, k).GetRelevantDocuments(ctx, query)
	if err != nil {
		return nil, kindError(ErrEmbeddingService, err)
	}
	log.Printf("RETRIEVER: Retrieved %d documents", len(docs))
	return docs, nil
}
