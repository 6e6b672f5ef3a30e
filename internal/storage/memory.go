package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/ragchat/internal/models"
)

// MemoryStorage is an in-process Storage for tests and local development.
type MemoryStorage struct {
	mu            sync.RWMutex
	users         map[string]*models.User
	documents     map[string]*models.Document
	conversations map[int64]*models.Conversation
	messages      []models.Message
	nextConvID    int64
	nextMsgID     int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:         make(map[string]*models.User),
		documents:     make(map[string]*models.Document),
		conversations: make(map[int64]*models.Conversation),
		nextConvID:    1,
		nextMsgID:     1,
	}
}

func (s *MemoryStorage) GetOrCreateUser(ctx context.Context, id, name string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, exists := s.users[id]; exists {
		u := *user
		return &u, nil
	}
	user := &models.User{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
	}
	s.users[id] = user
	u := *user
	return &u, nil
}

func (s *MemoryStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc.CreatedAt = time.Now()
	stored := *doc
	s.documents[doc.ID] = &stored
	return nil
}

func (s *MemoryStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv.ID = s.nextConvID
	s.nextConvID++
	conv.CreatedAt = time.Now()
	stored := *conv
	s.conversations[conv.ID] = &stored
	return nil
}

func (s *MemoryStorage) LatestConversation(ctx context.Context, userID string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Conversation
	for _, conv := range s.conversations {
		if conv.UserID != userID {
			continue
		}
		if latest == nil ||
			conv.CreatedAt.After(latest.CreatedAt) ||
			(conv.CreatedAt.Equal(latest.CreatedAt) && conv.ID > latest.ID) {
			latest = conv
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	c := *latest
	return &c, nil
}

func (s *MemoryStorage) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.conversations[id]
	if !exists {
		return nil, ErrNotFound
	}
	c := *conv
	return &c, nil
}

func (s *MemoryStorage) AppendMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = s.nextMsgID
	s.nextMsgID++
	msg.CreatedAt = time.Now()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *MemoryStorage) RecentMessages(ctx context.Context, conversationID int64, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Message
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID {
			matched = append(matched, msg)
		}
	}
	// Newest first, ties broken by insertion id.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryStorage) Close() error { return nil }
