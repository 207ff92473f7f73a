package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"docchat/internal/domain"
	"docchat/internal/index"
	"docchat/internal/store"
)

// ragSystemPrompt grounds every retrieval answer: the model may only use
// the supplied context and must admit when it is insufficient.
const ragSystemPrompt = `You are an AI assistant for a document knowledge base.
Answer the user's question based ONLY on the context provided. If the
information isn't in the context, say explicitly that the available
documents don't contain it. Mention document names when citing
information, and keep a professional, helpful tone.`

const (
	noContextAnswer = "I couldn't find any relevant information in the available documents " +
		"to answer your question. Please try rephrasing your query or ensure relevant " +
		"documents have been uploaded."
	errorAnswer = "I apologize, but I encountered an error while processing your query. " +
		"Please try again."
	invalidInputAnswer = "I apologize, but I couldn't process your request. Please try again."
)

// Options bound the retrieval and prompt-assembly step.
type Options struct {
	TopK            int
	HistoryTurns    int
	MaxContextChars int
	MaxTokens       int
	Temperature     float64
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = 5
	}
	if o.HistoryTurns <= 0 {
		o.HistoryTurns = 5
	}
	if o.MaxContextChars <= 0 {
		o.MaxContextChars = 8000
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 1024
	}
	if o.Temperature <= 0 {
		o.Temperature = 0.4
	}
	return o
}

// Engine orchestrates the pipeline: ingestion of documents into the
// per-user vector index, retrieval-augmented answering, and session
// summarization. No error ever crosses Answer's boundary; failures
// degrade to an apologetic answer with the cause in the metadata.
type Engine struct {
	chunker   domain.Chunker
	embedder  domain.EmbeddingProvider
	generator domain.GenerationProvider
	index     *index.Manager
	records   store.Store
	opts      Options
}

// New assembles an engine from its collaborators.
func New(chunker domain.Chunker, embedder domain.EmbeddingProvider, generator domain.GenerationProvider,
	idx *index.Manager, records store.Store, opts Options) *Engine {
	return &Engine{
		chunker:   chunker,
		embedder:  embedder,
		generator: generator,
		index:     idx,
		records:   records,
		opts:      opts.withDefaults(),
	}
}

// Answer runs the retrieval-augmented generation flow for one query and
// returns the generated text with source attributions in retrieval order.
func (e *Engine) Answer(ctx context.Context, query string, userID int64, sessionID string, chatContext []domain.ChatTurn) domain.Answer {
	query = strings.TrimSpace(query)
	if query == "" || userID == 0 {
		return failed(invalidInputAnswer, "invalid input parameters")
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("engine: embedding query for user %d: %v", userID, err)
		return failed(errorAnswer, err.Error())
	}

	results, err := e.index.Search(userID, queryVec, e.opts.TopK)
	if err != nil {
		log.Printf("engine: searching index for user %d: %v", userID, err)
		return failed(errorAnswer, err.Error())
	}
	if len(results) == 0 {
		return domain.Answer{Text: noContextAnswer, Metadata: map[string]string{}}
	}

	prompt, sources := e.assemblePrompt(ctx, query, results, chatContext)

	text, err := e.generator.Generate(ctx, prompt, ragSystemPrompt, e.opts.MaxTokens, e.opts.Temperature)
	if err != nil {
		log.Printf("engine: generating answer for user %d: %v", userID, err)
		return failed(errorAnswer, err.Error())
	}
	return domain.Answer{
		Text:     strings.TrimSpace(text),
		Sources:  sources,
		Metadata: map[string]string{"session_id": sessionID},
	}
}

// assemblePrompt builds the bounded prompt: retrieved chunks tagged with
// their source document name, then up to HistoryTurns chat turns in
// chronological order. When the character budget would be exceeded the
// history is truncated from the oldest end first, then trailing chunks
// are dropped; at least one chunk always remains. The returned sources
// match the chunks actually included, in retrieval order.
func (e *Engine) assemblePrompt(ctx context.Context, query string, results []domain.SearchResult, chatContext []domain.ChatTurn) (string, []domain.SourceRef) {
	names := e.documentNames(ctx, results)

	blocks := make([]string, len(results))
	sources := make([]domain.SourceRef, len(results))
	for i, r := range results {
		name := names[r.Record.DocumentID]
		blocks[i] = fmt.Sprintf("[Source: %s]\n%s", name, r.Record.Text)
		sources[i] = domain.SourceRef{
			DocumentID:   r.Record.DocumentID,
			ChunkID:      r.Record.ChunkID,
			DocumentName: name,
		}
	}

	turns := chatContext
	if len(turns) > e.opts.HistoryTurns {
		turns = turns[len(turns)-e.opts.HistoryTurns:]
	}
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = fmt.Sprintf("%s: %s", roleLabel(t.IsUser), strings.TrimSpace(t.Content))
	}

	budget := e.opts.MaxContextChars
	for promptSize(blocks, lines, query) > budget && len(lines) > 0 {
		lines = lines[1:]
	}
	for promptSize(blocks, lines, query) > budget && len(blocks) > 1 {
		blocks = blocks[:len(blocks)-1]
		sources = sources[:len(sources)-1]
	}

	var b strings.Builder
	b.WriteString("Context from uploaded documents:\n\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	if len(lines) > 0 {
		b.WriteString("\n\nConversation so far:\n")
		b.WriteString(strings.Join(lines, "\n"))
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	return b.String(), sources
}

// documentNames resolves the display name for every document referenced
// by the results, falling back to a synthetic name if the record store
// cannot supply one.
func (e *Engine) documentNames(ctx context.Context, results []domain.SearchResult) map[int64]string {
	names := make(map[int64]string)
	for _, r := range results {
		id := r.Record.DocumentID
		if _, ok := names[id]; ok {
			continue
		}
		if name := r.Record.Metadata["document_name"]; name != "" {
			names[id] = name
			continue
		}
		doc, err := e.records.GetDocument(ctx, id)
		if err != nil {
			log.Printf("engine: resolving document %d: %v", id, err)
			names[id] = fmt.Sprintf("document %d", id)
			continue
		}
		names[id] = doc.OriginalFilename
	}
	return names
}

// SessionTurns loads a session's transcript in chronological order.
func (e *Engine) SessionTurns(ctx context.Context, sessionID string) ([]domain.ChatTurn, error) {
	msgs, err := e.records.MessagesForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	turns := make([]domain.ChatTurn, len(msgs))
	for i, m := range msgs {
		turns[i] = m.Turn()
	}
	return turns, nil
}

func promptSize(blocks, lines []string, query string) int {
	n := len(query)
	for _, s := range blocks {
		n += len(s)
	}
	for _, s := range lines {
		n += len(s)
	}
	return n
}

func roleLabel(isUser bool) string {
	if isUser {
		return "User"
	}
	return "Assistant"
}

func failed(text, cause string) domain.Answer {
	return domain.Answer{Text: text, Metadata: map[string]string{"error": cause}}
}
