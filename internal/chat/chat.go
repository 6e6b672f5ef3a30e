// Package chat implements the retrieval-augmented answering pipeline:
// resolve the conversation, retrieve user-scoped context, load recent
// history, call the completion API and persist the turn.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/ragchat/internal/apperr"
	"github.com/xaenox/ragchat/internal/embedding"
	"github.com/xaenox/ragchat/internal/llm"
	"github.com/xaenox/ragchat/internal/models"
	"github.com/xaenox/ragchat/internal/storage"
	"github.com/xaenox/ragchat/internal/vectorstore"
)

const (
	defaultTopK         = 5
	defaultHistoryLimit = 10
	defaultTitle        = "Chat Session"

	systemPrompt = "You are a helpful assistant. Use the provided context when relevant."
)

type Service struct {
	store             storage.Storage
	vectors           vectorstore.Store
	embedder          embedding.Provider
	completer         llm.Completer
	topK              int
	historyLimit      int
	completionTimeout time.Duration
	logger            *zap.Logger

	// userLocks serializes answering per user so two concurrent requests
	// cannot interleave their resolve-read-append sequences.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

type Request struct {
	UserID         string
	ConversationID int64 // 0 means latest-or-new
	Message        string
}

type Result struct {
	Answer         string
	ConversationID int64
}

func NewService(
	store storage.Storage,
	vectors vectorstore.Store,
	embedder embedding.Provider,
	completer llm.Completer,
	topK, historyLimit int,
	completionTimeout time.Duration,
	logger *zap.Logger,
) *Service {
	if topK <= 0 {
		topK = defaultTopK
	}
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Service{
		store:             store,
		vectors:           vectors,
		embedder:          embedder,
		completer:         completer,
		topK:              topK,
		historyLimit:      historyLimit,
		completionTimeout: completionTimeout,
		logger:            logger,
		userLocks:         make(map[string]*sync.Mutex),
	}
}

// Answer runs one full answering turn. The user message and the assistant
// answer are persisted together only after the completion call succeeds, so
// a completion failure leaves no partial turn in history.
func (s *Service) Answer(ctx context.Context, req Request) (Result, error) {
	question := strings.TrimSpace(req.Message)
	if question == "" {
		return Result{}, apperr.New(apperr.CodeValidation, "empty_question", nil)
	}
	if strings.TrimSpace(req.UserID) == "" {
		return Result{}, apperr.New(apperr.CodeValidation, "missing_user_id", nil)
	}

	lock := s.lockFor(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.store.GetOrCreateUser(ctx, req.UserID, req.UserID); err != nil {
		return Result{}, apperr.New(apperr.CodePersistence, "user_write_failed", err)
	}

	conv, err := s.resolveConversation(ctx, req)
	if err != nil {
		return Result{}, err
	}

	contextText, err := s.retrieveContext(ctx, question, req.UserID)
	if err != nil {
		return Result{}, err
	}

	history, err := s.store.RecentMessages(ctx, conv.ID, s.historyLimit)
	if err != nil {
		return Result{}, apperr.New(apperr.CodePersistence, "history_read_failed", err)
	}

	messages := buildPromptMessages(contextText, question, history)

	callCtx := ctx
	if s.completionTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.completionTimeout)
		defer cancel()
	}
	answer, err := s.completer.Complete(callCtx, messages)
	if err != nil {
		return Result{}, apperr.New(apperr.CodeCompletion, "completion_failed", err)
	}

	// User turn first, assistant turn second.
	userMsg := &models.Message{ConversationID: conv.ID, Role: models.RoleUser, Content: question}
	if err := s.store.AppendMessage(ctx, userMsg); err != nil {
		return Result{}, apperr.New(apperr.CodePersistence, "message_write_failed", err)
	}
	assistantMsg := &models.Message{ConversationID: conv.ID, Role: models.RoleAssistant, Content: answer}
	if err := s.store.AppendMessage(ctx, assistantMsg); err != nil {
		return Result{}, apperr.New(apperr.CodePersistence, "message_write_failed", err)
	}

	s.logger.Info("answered question",
		zap.String("user_id", req.UserID),
		zap.Int64("conversation_id", conv.ID))

	return Result{Answer: answer, ConversationID: conv.ID}, nil
}

func (s *Service) lockFor(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// resolveConversation continues the caller-supplied conversation when one is
// given, otherwise the user's most recent one, creating a fresh thread when
// the user has none.
func (s *Service) resolveConversation(ctx context.Context, req Request) (*models.Conversation, error) {
	if req.ConversationID != 0 {
		conv, err := s.store.GetConversation(ctx, req.ConversationID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.CodeValidation, "unknown_conversation", nil)
		}
		if err != nil {
			return nil, apperr.New(apperr.CodePersistence, "conversation_read_failed", err)
		}
		if conv.UserID != req.UserID {
			return nil, apperr.New(apperr.CodeValidation, "conversation_not_owned", nil)
		}
		return conv, nil
	}

	conv, err := s.store.LatestConversation(ctx, req.UserID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.CodePersistence, "conversation_read_failed", err)
	}

	conv = &models.Conversation{UserID: req.UserID, Title: defaultTitle}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, apperr.New(apperr.CodePersistence, "conversation_write_failed", err)
	}
	return conv, nil
}

// retrieveContext embeds the question and joins the retrieved chunk texts,
// closest first. Zero matches is not an error: the answer then rests on
// history alone.
func (s *Service) retrieveContext(ctx context.Context, question, userID string) (string, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return "", apperr.New(apperr.CodeEmbedding, "query_embedding_failed", err)
	}

	results, err := s.vectors.Search(ctx, queryEmbedding, userID, s.topK)
	if err != nil {
		return "", apperr.New(apperr.CodeRetrieval, "vector_search_failed", err)
	}

	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Chunk.Content
	}
	return strings.Join(parts, "\n"), nil
}

// buildPromptMessages assembles: system instruction, history oldest-first,
// then one user message carrying the retrieved context and the question. The
// store returns history newest-first, so it is reversed here.
func buildPromptMessages(contextText, question string, history []models.Message) []models.ChatMessage {
	messages := make([]models.ChatMessage, 0, len(history)+2)
	messages = append(messages, models.ChatMessage{
		Role:    models.RoleSystem,
		Content: systemPrompt,
	})

	for i := len(history) - 1; i >= 0; i-- {
		messages = append(messages, models.ChatMessage{
			Role:    history[i].Role,
			Content: history[i].Content,
		})
	}

	messages = append(messages, models.ChatMessage{
		Role:    models.RoleUser,
		Content: "Context:\n" + contextText + "\n\nQuestion: " + question,
	})
	return messages
}
