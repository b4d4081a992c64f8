package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tmc/langchaingo/schema"
)

const (
	DefaultEmbedAttempts = 3
	DefaultEmbedBackoff  = 2 * time.Second
	DefaultTopK          = 4
)

// Indexer embeds a document's chunks into a fresh SimilarityIndex. A failed
// attempt is thrown away and the whole batch is embedded again.
type Indexer struct {
	NewIndex IndexFactory
	Attempts int
	Backoff  time.Duration
}

func NewIndexer(factory IndexFactory, attempts int, backoff time.Duration) *Indexer {
	if attempts <= 0 {
		attempts = DefaultEmbedAttempts
	}
	return &Indexer{NewIndex: factory, Attempts: attempts, Backoff: backoff}
}

// Build returns a populated index or an error wrapping ErrEmbeddingService.
// It never returns a partially filled index.
func (ix *Indexer) Build(ctx context.Context, docs []schema.Document) (SimilarityIndex, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyInput
	}

	var lastErr error
	for attempt := 1; attempt <= ix.Attempts; attempt++ {
		idx, err := ix.buildOnce(ctx, docs)
		if err == nil {
			log.Printf("INDEXER: Indexed %d chunks with %s (attempt %d/%d).", idx.Len(), idx.EmbeddingModel(), attempt, ix.Attempts)
			return idx, nil
		}
		lastErr = err
		log.Printf("INDEXER WARN: Embedding attempt %d/%d failed: %v", attempt, ix.Attempts, err)
		if attempt == ix.Attempts {
			break
		}

		timer := time.NewTimer(ix.Backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, kindError(ErrEmbeddingService, ctx.Err())
		}
	}
	return nil, kindError(ErrEmbeddingService, fmt.Errorf("giving up after %d attempts: %w", ix.Attempts, lastErr))
}

func (ix *Indexer) buildOnce(ctx context.Context, docs []schema.Document) (SimilarityIndex, error) {
	idx, err := ix.NewIndex(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := idx.AddDocuments(ctx, docs); err != nil {
		if dropErr := idx.Drop(ctx); dropErr != nil {
			log.Printf("INDEXER WARN: Could not drop partial index: %v", dropErr)
		}
		return nil, err
	}
	return idx, nil
}
