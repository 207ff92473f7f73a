package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"docchat/internal/domain"
)

// IngestResult reports a completed document ingestion.
type IngestResult struct {
	DocumentID   int64
	DocumentName string
	ChunkCount   int
}

// allowedFileTypes lists the plain-text formats the extractor accepts.
var allowedFileTypes = map[string]bool{
	"txt":      true,
	"md":       true,
	"markdown": true,
	"csv":      true,
	"log":      true,
}

// IngestFile reads a document from disk and runs the ingestion saga.
func (e *Engine) IngestFile(ctx context.Context, userID int64, path string) (IngestResult, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !allowedFileTypes[ext] {
		return IngestResult{}, fmt.Errorf("file type %q not supported", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return IngestResult{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return e.ingest(ctx, userID, filepath.Base(path), ext, string(data))
}

// IngestText ingests raw text under the given document name.
func (e *Engine) IngestText(ctx context.Context, userID int64, name, text string) (IngestResult, error) {
	return e.ingest(ctx, userID, name, "txt", text)
}

// ingest is the ingestion saga: document record, chunk records, then one
// embed+index step per chunk. A failure after any chunk has been indexed
// compensates by removing the document's vectors and chunk rows again, so
// no chunk row ever exists without its indexed vector or vice versa.
func (e *Engine) ingest(ctx context.Context, userID int64, name, fileType, text string) (IngestResult, error) {
	doc := &domain.Document{
		UserID:           userID,
		Filename:         fmt.Sprintf("%d_%s", userID, name),
		OriginalFilename: name,
		FileType:         fileType,
		FileSize:         int64(len(text)),
	}
	if err := e.records.CreateDocument(ctx, doc); err != nil {
		return IngestResult{}, fmt.Errorf("creating document record: %w", err)
	}

	pieces := e.chunker.Chunk(text)
	if len(pieces) == 0 {
		e.markFailed(ctx, doc.ID, "no text to index")
		return IngestResult{DocumentID: doc.ID}, fmt.Errorf("document %s contains no text to index", name)
	}

	chunks := make([]*domain.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = &domain.Chunk{
			DocumentID: doc.ID,
			ChunkIndex: i,
			Text:       p,
			Length:     len(p),
			VectorID:   -1,
		}
	}
	if err := e.records.CreateChunks(ctx, chunks); err != nil {
		e.markFailed(ctx, doc.ID, err.Error())
		return IngestResult{DocumentID: doc.ID}, fmt.Errorf("creating chunk records: %w", err)
	}

	for i, c := range chunks {
		vec, err := e.embedder.Embed(ctx, c.Text)
		if err != nil {
			return e.rollback(ctx, userID, doc, fmt.Errorf("embedding chunk %d: %w", i, err))
		}
		vectorID, err := e.index.Insert(userID, domain.VectorRecord{
			ChunkID:    c.ID,
			DocumentID: doc.ID,
			Text:       c.Text,
			Embedding:  vec,
			Metadata: map[string]string{
				"chunk_index":   strconv.Itoa(i),
				"document_name": name,
			},
		})
		if err != nil {
			return e.rollback(ctx, userID, doc, fmt.Errorf("indexing chunk %d: %w", i, err))
		}
		if err := e.records.SetChunkVectorID(ctx, c.ID, int64(vectorID)); err != nil {
			return e.rollback(ctx, userID, doc, fmt.Errorf("recording vector id for chunk %d: %w", i, err))
		}
	}

	if err := e.records.MarkDocumentProcessed(ctx, doc.ID); err != nil {
		return e.rollback(ctx, userID, doc, fmt.Errorf("marking document processed: %w", err))
	}
	return IngestResult{DocumentID: doc.ID, DocumentName: name, ChunkCount: len(chunks)}, nil
}

// rollback compensates a half-done ingestion: already-indexed vectors are
// removed by a delete-rebuild, chunk rows are dropped, and the document
// is marked failed.
func (e *Engine) rollback(ctx context.Context, userID int64, doc *domain.Document, cause error) (IngestResult, error) {
	if err := e.index.DeleteDocument(userID, doc.ID); err != nil {
		log.Printf("engine: rolling back index entries for document %d: %v", doc.ID, err)
	}
	if err := e.records.DeleteChunksForDocument(ctx, doc.ID); err != nil {
		log.Printf("engine: rolling back chunk records for document %d: %v", doc.ID, err)
	}
	e.markFailed(ctx, doc.ID, cause.Error())
	return IngestResult{DocumentID: doc.ID}, fmt.Errorf("%w: %v", domain.ErrPartialIngestion, cause)
}

func (e *Engine) markFailed(ctx context.Context, documentID int64, reason string) {
	if err := e.records.MarkDocumentFailed(ctx, documentID, reason); err != nil {
		log.Printf("engine: marking document %d failed: %v", documentID, err)
	}
}

// DeleteDocument removes a document, its chunks and its index entries.
// The index delete runs first; if it fails the records stay visible and
// the operation can be retried.
func (e *Engine) DeleteDocument(ctx context.Context, userID, documentID int64) error {
	doc, err := e.records.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.UserID != userID {
		return domain.ErrNotFound
	}
	if err := e.index.DeleteDocument(userID, documentID); err != nil {
		return fmt.Errorf("removing document %d from index: %w", documentID, err)
	}
	return e.records.DeleteDocument(ctx, documentID)
}
