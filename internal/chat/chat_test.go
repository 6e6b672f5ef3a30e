package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/ragchat/internal/apperr"
	"github.com/xaenox/ragchat/internal/models"
	"github.com/xaenox/ragchat/internal/storage"
	"github.com/xaenox/ragchat/internal/vectorstore"
)

type mockEmbedder struct {
	vector []float32
	err    error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		v, err := m.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

type mockCompleter struct {
	mu       sync.Mutex
	answer   string
	err      error
	received [][]models.ChatMessage
}

func (m *mockCompleter) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]models.ChatMessage, len(messages))
	copy(copied, messages)
	m.received = append(m.received, copied)
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func (m *mockCompleter) lastPrompt(t *testing.T) []models.ChatMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.received)
	return m.received[len(m.received)-1]
}

func newTestService(completer *mockCompleter) (*Service, storage.Storage, *vectorstore.MemoryStore) {
	store := storage.NewMemoryStorage()
	vectors := vectorstore.NewMemoryStore()
	embedder := &mockEmbedder{vector: []float32{1, 0}}
	svc := NewService(store, vectors, embedder, completer, 5, 10, 0, zap.NewNop())
	return svc, store, vectors
}

func seedChunk(t *testing.T, vectors *vectorstore.MemoryStore, userID, id, content string, embedding []float32) {
	t.Helper()
	err := vectors.Upsert(context.Background(), []models.Chunk{{
		ID:        id,
		UserID:    userID,
		Content:   content,
		Embedding: embedding,
	}})
	require.NoError(t, err)
}

func TestAnswer_PersistsTurnInOrder(t *testing.T) {
	completer := &mockCompleter{answer: "forty-two"}
	svc, store, _ := newTestService(completer)

	result, err := svc.Answer(context.Background(), Request{UserID: "alice", Message: "what is the answer?"})
	require.NoError(t, err)
	require.Equal(t, "forty-two", result.Answer)
	require.NotZero(t, result.ConversationID)

	msgs, err := store.RecentMessages(context.Background(), result.ConversationID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	// Newest first: assistant then user.
	require.Equal(t, models.RoleAssistant, msgs[0].Role)
	require.Equal(t, "forty-two", msgs[0].Content)
	require.Equal(t, models.RoleUser, msgs[1].Role)
	require.Equal(t, "what is the answer?", msgs[1].Content)
	require.False(t, msgs[1].CreatedAt.After(msgs[0].CreatedAt))
}

func TestAnswer_ReusesLatestConversation(t *testing.T) {
	completer := &mockCompleter{answer: "ok"}
	svc, _, _ := newTestService(completer)

	first, err := svc.Answer(context.Background(), Request{UserID: "alice", Message: "one"})
	require.NoError(t, err)
	second, err := svc.Answer(context.Background(), Request{UserID: "alice", Message: "two"})
	require.NoError(t, err)
	require.Equal(t, first.ConversationID, second.ConversationID)
}

func TestAnswer_ExplicitConversationMustBeOwned(t *testing.T) {
	completer := &mockCompleter{answer: "ok"}
	svc, store, _ := newTestService(completer)

	conv := &models.Conversation{UserID: "bob", Title: "Chat Session"}
	require.NoError(t, store.CreateConversation(context.Background(), conv))

	_, err := svc.Answer(context.Background(), Request{
		UserID:         "alice",
		ConversationID: conv.ID,
		Message:        "hi",
	})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperr.CodeValidation, appErr.Code)

	_, err = svc.Answer(context.Background(), Request{
		UserID:         "alice",
		ConversationID: 9999,
		Message:        "hi",
	})
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperr.CodeValidation, appErr.Code)
}

func TestAnswer_PromptEmbedsRetrievedContext(t *testing.T) {
	completer := &mockCompleter{answer: "ok"}
	svc, _, vectors := newTestService(completer)

	// Closest chunk first in the assembled context.
	seedChunk(t, vectors, "alice", "d_0", "nearest fact", []float32{1, 0})
	seedChunk(t, vectors, "alice", "d_1", "farther fact", []float32{0.5, 0.5})

	_, err := svc.Answer(context.Background(), Request{UserID: "alice", Message: "tell me"})
	require.NoError(t, err)

	prompt := completer.lastPrompt(t)
	require.Equal(t, models.RoleSystem, prompt[0].Role)
	final := prompt[len(prompt)-1]
	require.Equal(t, models.RoleUser, final.Role)
	require.Equal(t, "Context:\nnearest fact\nfarther fact\n\nQuestion: tell me", final.Content)
}

func TestAnswer_CrossUserIsolation(t *testing.T) {
	completer := &mockCompleter{answer: "ok"}
	svc, _, vectors := newTestService(completer)

	// Bob's chunk is the exact nearest neighbor of every query embedding,
	// yet it must never appear in Alice's context.
	seedChunk(t, vectors, "bob", "b_0", "bob secret", []float32{1, 0})
	seedChunk(t, vectors, "alice", "a_0", "alice fact", []float32{0, 1})

	_, err := svc.Answer(context.Background(), Request{UserID: "alice", Message: "anything"})
	require.NoError(t, err)

	prompt := completer.lastPrompt(t)
	final := prompt[len(prompt)-1]
	require.NotContains(t, final.Content, "bob secret")
	require.Contains(t, final.Content, "alice fact")
}

func TestAnswer_EmptyContextStillAnswers(t *testing.T) {
	completer := &mockCompleter{answer: "no docs needed"}
	svc, _, _ := newTestService(completer)

	result, err := svc.Answer(context.Background(), Request{UserID: "alice", Message: "hello"})
	require.NoError(t, err)
	require.Equal(t, "no docs needed", result.Answer)

	final := completer.lastPrompt(t)[1]
	require.Equal(t, "Context:\n\nQuestion: hello", final.Content)
}

func TestAnswer_HistoryIsChronologicalAndBounded(t *testing.T) {
	completer := &mockCompleter{answer: "ok"}
	svc, _, _ := newTestService(completer)

	// Seven turns produce fourteen messages; only the most recent ten may
	// reach the prompt, oldest first.
	var convID int64
	for i := 0; i < 7; i++ {
		result, err := svc.Answer(context.Background(), Request{
			UserID:  "alice",
			Message: fmt.Sprintf("question %d", i),
		})
		require.NoError(t, err)
		convID = result.ConversationID
	}
	require.NotZero(t, convID)

	prompt := completer.lastPrompt(t)
	// system + 10 history + final user message
	require.Len(t, prompt, 12)

	history := prompt[1 : len(prompt)-1]
	require.Equal(t, models.RoleUser, history[0].Role)
	require.Equal(t, "question 1", history[0].Content)
	require.Equal(t, models.RoleAssistant, history[len(history)-1].Role)
	for i := 0; i+1 < len(history); i += 2 {
		require.Equal(t, models.RoleUser, history[i].Role)
		require.Equal(t, models.RoleAssistant, history[i+1].Role)
	}
}

func TestAnswer_CompletionFailurePersistsNothing(t *testing.T) {
	completer := &mockCompleter{err: errors.New("timeout")}
	svc, store, _ := newTestService(completer)

	_, err := svc.Answer(context.Background(), Request{UserID: "alice", Message: "hello"})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperr.CodeCompletion, appErr.Code)

	conv, err := store.LatestConversation(context.Background(), "alice")
	require.NoError(t, err)
	msgs, err := store.RecentMessages(context.Background(), conv.ID, 10)
	require.NoError(t, err)
	require.Empty(t, msgs, "failed completion must not leave a partial turn")
}

func TestAnswer_ValidatesInput(t *testing.T) {
	svc, _, _ := newTestService(&mockCompleter{answer: "ok"})

	var appErr *apperr.Error
	_, err := svc.Answer(context.Background(), Request{UserID: "alice", Message: "   "})
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperr.CodeValidation, appErr.Code)

	_, err = svc.Answer(context.Background(), Request{UserID: "", Message: "hi"})
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperr.CodeValidation, appErr.Code)
}

func TestAnswer_ConcurrentRequestsDoNotInterleaveTurns(t *testing.T) {
	completer := &mockCompleter{answer: "ok"}
	svc, store, _ := newTestService(completer)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Answer(context.Background(), Request{
				UserID:  "alice",
				Message: fmt.Sprintf("q%d", i),
			})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	conv, err := store.LatestConversation(context.Background(), "alice")
	require.NoError(t, err)
	msgs, err := store.RecentMessages(context.Background(), conv.ID, 100)
	require.NoError(t, err)
	require.Len(t, msgs, 16)

	// Chronological order must alternate strictly user/assistant.
	for i := len(msgs) - 1; i >= 0; i-- {
		want := models.RoleUser
		if (len(msgs)-1-i)%2 == 1 {
			want = models.RoleAssistant
		}
		require.Equal(t, want, msgs[i].Role, "position %d", len(msgs)-1-i)
	}
}
