// Package vectorstore persists chunk embeddings and serves user-scoped
// nearest-neighbor queries.
package vectorstore

import (
	"context"

	"github.com/xaenox/ragchat/internal/models"
)

// Store is the vector index. Upsert overwrites by chunk id; Search returns
// the topK chunks owned by userID closest to the query embedding, closest
// first. Results never cross user boundaries.
type Store interface {
	Upsert(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, embedding []float32, userID string, topK int) ([]models.SearchResult, error)
	Close() error
}
