package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"docchat/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	filename TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	upload_date TIMESTAMP NOT NULL,
	processed INTEGER NOT NULL DEFAULT 0,
	processing_error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);

CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	chunk_text TEXT NOT NULL,
	length INTEGER NOT NULL,
	vector_id INTEGER NOT NULL DEFAULT -1
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

CREATE TABLE IF NOT EXISTS chat_histories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL UNIQUE,
	user_id INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	summary TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_chat_histories_user ON chat_histories(user_id);

CREATE TABLE IF NOT EXISTS chat_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_history_id INTEGER NOT NULL REFERENCES chat_histories(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	is_user INTEGER NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	related_documents TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_history ON chat_messages(chat_history_id);
`

// Store is the SQLite-backed record store.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the record store at the given path, applying the
// schema. WAL mode keeps readers from blocking the single writer.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	// Pragmas go in the DSN so every pooled connection gets them; an Exec
	// would only reach the one connection it happens to run on.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) CreateDocument(ctx context.Context, doc *domain.Document) error {
	if doc.UploadDate.IsZero() {
		doc.UploadDate = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (user_id, filename, original_filename, file_type, file_size, upload_date, processed, processing_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.UserID, doc.Filename, doc.OriginalFilename, doc.FileType, doc.FileSize, doc.UploadDate, doc.Processed, doc.ProcessingError)
	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}
	doc.ID, err = res.LastInsertId()
	return err
}

func (s *Store) GetDocument(ctx context.Context, id int64) (domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, filename, original_filename, file_type, file_size, upload_date, processed, processing_error
		FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

func (s *Store) ListDocuments(ctx context.Context, userID int64) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, filename, original_filename, file_type, file_size, upload_date, processed, processing_error
		FROM documents WHERE user_id = ? ORDER BY upload_date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) MarkDocumentProcessed(ctx context.Context, id int64) error {
	return s.exec(ctx, `UPDATE documents SET processed = 1, processing_error = '' WHERE id = ?`, id)
}

func (s *Store) MarkDocumentFailed(ctx context.Context, id int64, reason string) error {
	return s.exec(ctx, `UPDATE documents SET processed = 0, processing_error = ? WHERE id = ?`, reason, id)
}

func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	return s.exec(ctx, `DELETE FROM documents WHERE id = ?`, id)
}

func (s *Store) CreateChunks(ctx context.Context, chunks []*domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (document_id, chunk_index, chunk_text, length, vector_id)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if c.VectorID == 0 {
			c.VectorID = -1
		}
		res, err := stmt.ExecContext(ctx, c.DocumentID, c.ChunkIndex, c.Text, c.Length, c.VectorID)
		if err != nil {
			return fmt.Errorf("creating chunk %d: %w", c.ChunkIndex, err)
		}
		if c.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ChunksForDocument(ctx context.Context, documentID int64) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, chunk_text, length, vector_id
		FROM chunks WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.Length, &c.VectorID); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *Store) SetChunkVectorID(ctx context.Context, chunkID, vectorID int64) error {
	return s.exec(ctx, `UPDATE chunks SET vector_id = ? WHERE id = ?`, vectorID, chunkID)
}

func (s *Store) DeleteChunksForDocument(ctx context.Context, documentID int64) error {
	return s.exec(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID)
}

func (s *Store) CreateSession(ctx context.Context, userID int64) (domain.ChatHistory, error) {
	now := time.Now().UTC()
	h := domain.ChatHistory{
		SessionID: uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_histories (session_id, user_id, created_at, updated_at, is_active, summary)
		VALUES (?, ?, ?, ?, 1, '')`,
		h.SessionID, h.UserID, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return domain.ChatHistory{}, fmt.Errorf("creating session: %w", err)
	}
	h.ID, err = res.LastInsertId()
	return h, err
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.ChatHistory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, user_id, created_at, updated_at, is_active, summary
		FROM chat_histories WHERE session_id = ?`, sessionID)
	return scanSession(row)
}

func (s *Store) ListSessions(ctx context.Context, userID int64) ([]domain.ChatHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_id, created_at, updated_at, is_active, summary
		FROM chat_histories WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.ChatHistory
	for rows.Next() {
		h, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, h)
	}
	return sessions, rows.Err()
}

func (s *Store) SetSessionSummary(ctx context.Context, sessionID, summary string) error {
	return s.exec(ctx, `UPDATE chat_histories SET summary = ?, updated_at = ? WHERE session_id = ?`,
		summary, time.Now().UTC(), sessionID)
}

func (s *Store) AppendMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (chat_history_id, content, is_user, timestamp, related_documents)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ChatHistoryID, msg.Content, msg.IsUser, msg.Timestamp, msg.RelatedDocuments)
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	if msg.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	return s.exec(ctx, `UPDATE chat_histories SET updated_at = ? WHERE id = ?`, msg.Timestamp, msg.ChatHistoryID)
}

func (s *Store) MessagesForSession(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.chat_history_id, m.content, m.is_user, m.timestamp, m.related_documents
		FROM chat_messages m
		JOIN chat_histories h ON h.id = m.chat_history_id
		WHERE h.session_id = ?
		ORDER BY m.timestamp, m.id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatHistoryID, &m.Content, &m.IsUser, &m.Timestamp, &m.RelatedDocuments); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var doc domain.Document
	err := row.Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.OriginalFilename,
		&doc.FileType, &doc.FileSize, &doc.UploadDate, &doc.Processed, &doc.ProcessingError)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, domain.ErrNotFound
	}
	return doc, err
}

func scanSession(row rowScanner) (domain.ChatHistory, error) {
	var h domain.ChatHistory
	err := row.Scan(&h.ID, &h.SessionID, &h.UserID, &h.CreatedAt, &h.UpdatedAt, &h.IsActive, &h.Summary)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ChatHistory{}, domain.ErrNotFound
	}
	return h, err
}
