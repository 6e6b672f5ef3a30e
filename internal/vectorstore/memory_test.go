package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xaenox/ragchat/internal/models"
)

func chunk(id, userID, content string, embedding []float32) models.Chunk {
	return models.Chunk{ID: id, UserID: userID, Content: content, Embedding: embedding}
}

func TestMemoryStore_SearchRanksByDistance(t *testing.T) {
	s := NewMemoryStore()
	err := s.Upsert(context.Background(), []models.Chunk{
		chunk("c1", "alice", "far", []float32{0, 1}),
		chunk("c2", "alice", "near", []float32{1, 0}),
		chunk("c3", "alice", "mid", []float32{1, 1}),
	})
	require.NoError(t, err)

	results, err := s.Search(context.Background(), []float32{1, 0}, "alice", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "near", results[0].Chunk.Content)
	require.Equal(t, "mid", results[1].Chunk.Content)
	require.Equal(t, "far", results[2].Chunk.Content)
	require.Less(t, results[0].Score, results[1].Score)
	require.Less(t, results[1].Score, results[2].Score)
}

func TestMemoryStore_SearchFiltersByUser(t *testing.T) {
	s := NewMemoryStore()
	err := s.Upsert(context.Background(), []models.Chunk{
		chunk("a1", "alice", "alice doc", []float32{1, 0}),
		chunk("b1", "bob", "bob doc", []float32{1, 0}),
	})
	require.NoError(t, err)

	results, err := s.Search(context.Background(), []float32{1, 0}, "alice", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "alice", results[0].Chunk.UserID)

	results, err = s.Search(context.Background(), []float32{1, 0}, "carol", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestMemoryStore_SearchLimitsTopK(t *testing.T) {
	s := NewMemoryStore()
	chunks := []models.Chunk{
		chunk("c1", "alice", "a", []float32{1, 0}),
		chunk("c2", "alice", "b", []float32{0.9, 0.1}),
		chunk("c3", "alice", "c", []float32{0.8, 0.2}),
	}
	require.NoError(t, s.Upsert(context.Background(), chunks))

	results, err := s.Search(context.Background(), []float32{1, 0}, "alice", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestMemoryStore_UpsertOverwritesByID(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(context.Background(), []models.Chunk{
		chunk("doc_0", "alice", "old text", []float32{1, 0}),
	}))
	require.NoError(t, s.Upsert(context.Background(), []models.Chunk{
		chunk("doc_0", "alice", "new text", []float32{1, 0}),
	}))

	results, err := s.Search(context.Background(), []float32{1, 0}, "alice", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "new text", results[0].Chunk.Content)
}

func TestMemoryStore_RejectsEmptyID(t *testing.T) {
	s := NewMemoryStore()
	err := s.Upsert(context.Background(), []models.Chunk{
		chunk("", "alice", "text", []float32{1, 0}),
	})
	require.Error(t, err)
}
