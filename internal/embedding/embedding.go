// Package embedding maps text to fixed-dimension vectors via an
// OpenAI-compatible embeddings endpoint.
package embedding

import "context"

// Provider generates vector embeddings for text.
type Provider interface {
	// Embed generates one embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for all texts in one call, preserving
	// input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
