package store

import (
	"context"

	"docchat/internal/domain"
)

// Store is the relational record store consumed by the pipeline: documents
// and their chunks, chat sessions and their messages, addressed by primary
// key and foreign-key filters. The pipeline owns no transaction spanning
// this store and the vector index; ingestion compensates explicitly when
// one side fails.
type Store interface {
	CreateDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, id int64) (domain.Document, error)
	ListDocuments(ctx context.Context, userID int64) ([]domain.Document, error)
	MarkDocumentProcessed(ctx context.Context, id int64) error
	MarkDocumentFailed(ctx context.Context, id int64, reason string) error
	DeleteDocument(ctx context.Context, id int64) error

	CreateChunks(ctx context.Context, chunks []*domain.Chunk) error
	ChunksForDocument(ctx context.Context, documentID int64) ([]domain.Chunk, error)
	SetChunkVectorID(ctx context.Context, chunkID, vectorID int64) error
	DeleteChunksForDocument(ctx context.Context, documentID int64) error

	CreateSession(ctx context.Context, userID int64) (domain.ChatHistory, error)
	GetSession(ctx context.Context, sessionID string) (domain.ChatHistory, error)
	ListSessions(ctx context.Context, userID int64) ([]domain.ChatHistory, error)
	SetSessionSummary(ctx context.Context, sessionID, summary string) error
	AppendMessage(ctx context.Context, msg *domain.ChatMessage) error
	MessagesForSession(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)

	Close() error
}
