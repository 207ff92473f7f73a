package domain

import "time"

// Document is the record-store row for an uploaded file.
type Document struct {
	ID               int64
	UserID           int64
	Filename         string
	OriginalFilename string
	FileType         string
	FileSize         int64
	UploadDate       time.Time
	Processed        bool
	ProcessingError  string
}

// Chunk is a bounded contiguous slice of a document's text, the unit of
// retrieval. Immutable once created; deleted together with its document.
type Chunk struct {
	ID         int64
	DocumentID int64
	ChunkIndex int
	Text       string
	Length     int
	// VectorID is the ordinal assigned by the vector index, or -1 while
	// the chunk has not been indexed yet.
	VectorID int64
}

// VectorRecord ties an embedding in a user's index back to its chunk.
// Exactly one exists per successfully embedded chunk. VectorID is the
// position of the embedding within the index and is invalidated by a
// rebuild.
type VectorRecord struct {
	VectorID   int               `json:"vector_id"`
	ChunkID    int64             `json:"chunk_id"`
	DocumentID int64             `json:"document_id"`
	UserID     int64             `json:"user_id"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	// Embedding is kept with the record so that a delete-by-rebuild can
	// re-create the index without losing the surviving vectors.
	Embedding []float64 `json:"-"`
}

// SearchResult is one retrieval hit, closest first by distance.
type SearchResult struct {
	Record   VectorRecord
	Distance float64
}

// ChatHistory is one chat session.
type ChatHistory struct {
	ID        int64
	SessionID string
	UserID    int64
	CreatedAt time.Time
	UpdatedAt time.Time
	IsActive  bool
	Summary   string
}

// ChatMessage is one stored message within a session.
type ChatMessage struct {
	ID               int64
	ChatHistoryID    int64
	Content          string
	IsUser           bool
	Timestamp        time.Time
	RelatedDocuments string
}

// ChatTurn is the transcript view of a message consumed by the retrieval
// orchestrator and the session summarizer.
type ChatTurn struct {
	Content   string
	IsUser    bool
	Timestamp time.Time
}

// Turn converts a stored message to its transcript form.
func (m ChatMessage) Turn() ChatTurn {
	return ChatTurn{Content: m.Content, IsUser: m.IsUser, Timestamp: m.Timestamp}
}

// SourceRef names a chunk that grounded an answer.
type SourceRef struct {
	DocumentID   int64  `json:"document_id"`
	ChunkID      int64  `json:"chunk_id"`
	DocumentName string `json:"document_name"`
}

// Answer is the orchestrator's reply: generated text plus the sources it
// was grounded on, in retrieval order. Failures are reported through
// Metadata["error"], never as an error value.
type Answer struct {
	Text     string
	Sources  []SourceRef
	Metadata map[string]string
}
