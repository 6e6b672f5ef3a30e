// Package ingest turns uploaded PDF files into searchable chunks: extract
// per-page text, chunk, embed in one batch, upsert into the vector index
// tagged with the owning user.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/ragchat/internal/apperr"
	"github.com/xaenox/ragchat/internal/chunker"
	"github.com/xaenox/ragchat/internal/embedding"
	"github.com/xaenox/ragchat/internal/models"
	"github.com/xaenox/ragchat/internal/storage"
	"github.com/xaenox/ragchat/internal/vectorstore"
)

// Extractor produces per-page text from a document's raw bytes. Pages that
// could not be read come back empty rather than failing the document.
type Extractor interface {
	ExtractPages(data []byte) ([]string, error)
}

type Service struct {
	store     storage.Storage
	vectors   vectorstore.Store
	embedder  embedding.Provider
	extractor Extractor
	chunker   *chunker.Chunker
	uploadDir string
	logger    *zap.Logger
}

type Result struct {
	DocumentID string
	ChunkCount int
}

func NewService(
	store storage.Storage,
	vectors vectorstore.Store,
	embedder embedding.Provider,
	extractor Extractor,
	ch *chunker.Chunker,
	uploadDir string,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:     store,
		vectors:   vectors,
		embedder:  embedder,
		extractor: extractor,
		chunker:   ch,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// Ingest processes one uploaded file for the given user. The document
// metadata row is written before extraction, so a later failure leaves an
// auditable record; partial state is deliberately not rolled back.
func (s *Service) Ingest(ctx context.Context, fileBytes []byte, filename, userID string) (Result, error) {
	if len(fileBytes) == 0 {
		return Result{}, apperr.New(apperr.CodeValidation, "empty_file", nil)
	}
	if strings.TrimSpace(userID) == "" {
		return Result{}, apperr.New(apperr.CodeValidation, "missing_user_id", nil)
	}

	if _, err := s.store.GetOrCreateUser(ctx, userID, userID); err != nil {
		return Result{}, apperr.New(apperr.CodePersistence, "user_write_failed", err)
	}

	doc := &models.Document{
		ID:       uuid.NewString(),
		UserID:   userID,
		Filename: filename,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return Result{}, apperr.New(apperr.CodePersistence, "document_write_failed", err)
	}

	if s.uploadDir != "" {
		if err := s.saveUpload(doc.ID, filename, fileBytes); err != nil {
			return Result{}, apperr.New(apperr.CodePersistence, "file_write_failed", err)
		}
	}

	pages, err := s.extractor.ExtractPages(fileBytes)
	if err != nil {
		return Result{DocumentID: doc.ID}, apperr.New(apperr.CodeExtraction, "unreadable_document", err)
	}

	chunks := s.chunker.ChunkPages(cleanPages(pages))
	if len(chunks) == 0 {
		return Result{DocumentID: doc.ID}, apperr.New(apperr.CodeExtraction, "no_extractable_text", nil)
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return Result{DocumentID: doc.ID}, apperr.New(apperr.CodeEmbedding, "embedding_failed", err)
	}

	records := make([]models.Chunk, len(chunks))
	for i, content := range chunks {
		records[i] = models.Chunk{
			ID:         fmt.Sprintf("%s_%d", doc.ID, i),
			DocumentID: doc.ID,
			UserID:     userID,
			Index:      i,
			Content:    content,
			Embedding:  embeddings[i],
		}
	}
	if err := s.vectors.Upsert(ctx, records); err != nil {
		return Result{DocumentID: doc.ID}, apperr.New(apperr.CodeRetrieval, "vector_upsert_failed", err)
	}

	s.logger.Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.String("user_id", userID),
		zap.String("filename", filename),
		zap.Int("chunks", len(records)))

	return Result{DocumentID: doc.ID, ChunkCount: len(records)}, nil
}

// saveUpload keeps the raw file on disk under a fresh name so repeated
// uploads of the same filename never clobber each other.
func (s *Service) saveUpload(docID, filename string, data []byte) error {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(s.uploadDir, docID+"_"+filepath.Base(filename))
	return os.WriteFile(path, data, 0o644)
}

func cleanPages(pages []string) []string {
	cleaned := make([]string, len(pages))
	for i, p := range pages {
		cleaned[i] = chunker.CleanText(p)
	}
	return cleaned
}
