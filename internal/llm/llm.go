// Package llm wraps the hosted text-completion endpoint used to answer
// chat questions.
package llm

import (
	"context"

	"github.com/xaenox/ragchat/internal/models"
)

// Completer sends an ordered message sequence to a completion API and
// returns the generated text. Non-streaming.
type Completer interface {
	Complete(ctx context.Context, messages []models.ChatMessage) (string, error)
}
