package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/xaenox/ragchat/internal/models"
)

// PgVectorStore keeps chunk embeddings in Postgres using the pgvector
// extension. Nearest-neighbor search uses cosine distance (<=>), filtered
// to the owning user in SQL so isolation does not depend on the caller.
type PgVectorStore struct {
	db *sql.DB
}

type PgVectorConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	SSLMode   string
	Dimension int
}

func NewPgVectorStore(config PgVectorConfig) (*PgVectorStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	store := &PgVectorStore{db: db}
	if err := store.initializeSchema(config.Dimension); err != nil {
		return nil, fmt.Errorf("error initializing vector schema: %v", err)
	}
	return store, nil
}

func (s *PgVectorStore) initializeSchema(dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	// The column dimension is part of the DDL, so it is interpolated here
	// rather than bound as a parameter.
	schema := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chunks_user_id ON chunks(user_id);`, dimension)

	_, err := s.db.Exec(schema)
	return err
}

func (s *PgVectorStore) Upsert(ctx context.Context, chunks []models.Chunk) error {
	query := `
		INSERT INTO chunks (id, document_id, user_id, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`

	for _, c := range chunks {
		_, err := s.db.ExecContext(ctx, query,
			c.ID,
			c.DocumentID,
			c.UserID,
			c.Index,
			c.Content,
			pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("error upserting chunk %s: %v", c.ID, err)
		}
	}
	return nil
}

func (s *PgVectorStore) Search(ctx context.Context, embedding []float32, userID string, topK int) ([]models.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	query := `
		SELECT id, document_id, user_id, chunk_index, content, embedding <=> $1 AS distance
		FROM chunks
		WHERE user_id = $2
		ORDER BY distance
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, pgvector.NewVector(embedding), userID, topK)
	if err != nil {
		return nil, fmt.Errorf("error querying chunks: %v", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		err := rows.Scan(
			&r.Chunk.ID,
			&r.Chunk.DocumentID,
			&r.Chunk.UserID,
			&r.Chunk.Index,
			&r.Chunk.Content,
			&r.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning chunk: %v", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PgVectorStore) Close() error {
	return s.db.Close()
}
