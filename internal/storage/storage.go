// Package storage persists users, conversations, messages and document
// metadata in a relational store.
package storage

import (
	"context"
	"errors"

	"github.com/xaenox/ragchat/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

type Storage interface {
	// GetOrCreateUser returns the user with the given id, creating it with
	// the supplied display name on first interaction.
	GetOrCreateUser(ctx context.Context, id, name string) (*models.User, error)

	// CreateDocument records uploaded-file metadata. The row is written
	// before chunking so failed ingestions stay auditable.
	CreateDocument(ctx context.Context, doc *models.Document) error

	// CreateConversation inserts a conversation and fills its ID and
	// CreatedAt.
	CreateConversation(ctx context.Context, conv *models.Conversation) error

	// LatestConversation returns the most recently created conversation for
	// the user, or ErrNotFound.
	LatestConversation(ctx context.Context, userID string) (*models.Conversation, error)

	// GetConversation returns the conversation by id, or ErrNotFound.
	GetConversation(ctx context.Context, id int64) (*models.Conversation, error)

	// AppendMessage inserts a message and fills its ID and CreatedAt.
	AppendMessage(ctx context.Context, msg *models.Message) error

	// RecentMessages returns up to limit most recent messages for the
	// conversation, newest first. Ties on timestamp break by insertion id.
	RecentMessages(ctx context.Context, conversationID int64, limit int) ([]models.Message, error)

	Close() error
}
