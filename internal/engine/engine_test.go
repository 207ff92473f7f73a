package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/chunker"
	"docchat/internal/domain"
	"docchat/internal/index"
	"docchat/internal/store"
	"docchat/internal/store/sqlite"
)

// stubEmbedder maps text to a small keyword-count vector so retrieval
// order is predictable in tests.
type stubEmbedder struct {
	failAfter int // fail from the Nth call on, 0 = never
	calls     int
}

func (s *stubEmbedder) Name() string   { return "stub" }
func (s *stubEmbedder) Dimension() int { return 4 }

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	s.calls++
	if s.failAfter > 0 && s.calls >= s.failAfter {
		return nil, fmt.Errorf("%w: embedder down", domain.ErrProviderUnavailable)
	}
	lower := strings.ToLower(text)
	return []float64{
		float64(strings.Count(lower, "alpha")),
		float64(strings.Count(lower, "beta")),
		float64(strings.Count(lower, "gamma")),
		1,
	}, nil
}

type stubGenerator struct {
	reply      string
	err        error
	calls      int
	lastPrompt string
	lastSystem string
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Generate(_ context.Context, prompt, system string, _ int, _ float64) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	s.lastSystem = system
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newTestEngine(t *testing.T, emb domain.EmbeddingProvider, gen domain.GenerationProvider, chunkSize int) (*Engine, store.Store) {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	idx := index.NewManager(t.TempDir())
	ch := chunker.NewSentenceChunker(chunkSize, 0)
	return New(ch, emb, gen, idx, st, Options{}), st
}

func TestIngestAndAnswerEndToEnd(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{}
	gen := &stubGenerator{reply: "The launch is scheduled for March."}
	e, st := newTestEngine(t, emb, gen, 400)

	text := "The alpha project started last year. The beta launch is scheduled for March. The gamma review follows."
	res, err := e.IngestFile(ctx, 1, writeTempDoc(t, "launch-plan.txt", text))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunkCount)
	assert.Equal(t, "launch-plan.txt", res.DocumentName)

	doc, err := st.GetDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.True(t, doc.Processed)
	chunks, err := st.ChunksForDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, int64(0), chunks[0].VectorID)

	ans := e.Answer(ctx, "When is the beta launch?", 1, "session-1", nil)
	assert.Equal(t, "The launch is scheduled for March.", ans.Text)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, res.DocumentID, ans.Sources[0].DocumentID)
	assert.Equal(t, chunks[0].ID, ans.Sources[0].ChunkID)
	assert.Equal(t, "launch-plan.txt", ans.Sources[0].DocumentName)
	assert.NotContains(t, ans.Metadata, "error")

	assert.Contains(t, gen.lastPrompt, "[Source: launch-plan.txt]")
	assert.Contains(t, gen.lastPrompt, "beta launch is scheduled")
	assert.Contains(t, gen.lastPrompt, "Question: When is the beta launch?")
	assert.Contains(t, gen.lastSystem, "ONLY on the context provided")
}

func TestAnswerRanksMatchingChunkFirst(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{}
	gen := &stubGenerator{reply: "ok"}
	e, _ := newTestEngine(t, emb, gen, 80)

	_, err := e.IngestText(ctx, 1, "notes.txt",
		"Everything about alpha alpha alpha topics. Everything about beta beta beta topics.")
	require.NoError(t, err)

	ans := e.Answer(ctx, "tell me about beta", 1, "", nil)
	require.NotEmpty(t, ans.Sources)
	// The beta chunk must be the first attribution.
	firstBlock := gen.lastPrompt[:strings.Index(gen.lastPrompt, "Question:")]
	betaPos := strings.Index(firstBlock, "beta beta beta")
	alphaPos := strings.Index(firstBlock, "alpha alpha alpha")
	require.GreaterOrEqual(t, betaPos, 0)
	require.GreaterOrEqual(t, alphaPos, 0)
	assert.Less(t, betaPos, alphaPos)
}

func TestAnswerNoDocuments(t *testing.T) {
	gen := &stubGenerator{reply: "should not be called"}
	e, _ := newTestEngine(t, &stubEmbedder{}, gen, 400)

	ans := e.Answer(context.Background(), "anything at all", 1, "", nil)
	assert.Equal(t, noContextAnswer, ans.Text)
	assert.Empty(t, ans.Sources)
	assert.Zero(t, gen.calls, "generation provider must not be called with empty context")
}

func TestAnswerEmbeddingFailure(t *testing.T) {
	emb := &stubEmbedder{failAfter: 1}
	gen := &stubGenerator{reply: "unused"}
	e, _ := newTestEngine(t, emb, gen, 400)

	ans := e.Answer(context.Background(), "query", 1, "", nil)
	assert.Equal(t, errorAnswer, ans.Text)
	assert.Contains(t, ans.Metadata["error"], "embedder down")
	assert.Zero(t, gen.calls)
}

func TestAnswerGenerationFailure(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{}
	gen := &stubGenerator{err: fmt.Errorf("%w: model offline", domain.ErrProviderUnavailable)}
	e, _ := newTestEngine(t, emb, gen, 400)

	_, err := e.IngestText(ctx, 1, "doc.txt", "Alpha facts are documented here.")
	require.NoError(t, err)

	ans := e.Answer(ctx, "alpha?", 1, "", nil)
	assert.Equal(t, errorAnswer, ans.Text)
	assert.Contains(t, ans.Metadata["error"], "model offline")
}

func TestAnswerInvalidInput(t *testing.T) {
	e, _ := newTestEngine(t, &stubEmbedder{}, &stubGenerator{}, 400)
	ans := e.Answer(context.Background(), "   ", 1, "", nil)
	assert.Equal(t, invalidInputAnswer, ans.Text)
	ans = e.Answer(context.Background(), "query", 0, "", nil)
	assert.Equal(t, invalidInputAnswer, ans.Text)
}

func TestAnswerHistoryWindow(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{reply: "ok"}
	e, _ := newTestEngine(t, &stubEmbedder{}, gen, 400)

	_, err := e.IngestText(ctx, 1, "doc.txt", "Alpha background material.")
	require.NoError(t, err)

	var history []domain.ChatTurn
	for i := 0; i < 8; i++ {
		history = append(history, domain.ChatTurn{Content: fmt.Sprintf("turn number %d", i), IsUser: i%2 == 0})
	}
	e.Answer(ctx, "alpha?", 1, "", history)

	// Only the last five turns make it into the prompt.
	assert.NotContains(t, gen.lastPrompt, "turn number 2")
	assert.Contains(t, gen.lastPrompt, "turn number 3")
	assert.Contains(t, gen.lastPrompt, "turn number 7")
	// Chronological order is preserved.
	assert.Less(t, strings.Index(gen.lastPrompt, "turn number 3"), strings.Index(gen.lastPrompt, "turn number 7"))
}

func TestAnswerContextBudgetDropsOldestHistory(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{reply: "ok"}
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	idx := index.NewManager(t.TempDir())
	e := New(chunker.NewSentenceChunker(400, 0), &stubEmbedder{}, gen, idx, st,
		Options{MaxContextChars: 160})

	_, err = e.IngestText(ctx, 1, "doc.txt", "Alpha background material.")
	require.NoError(t, err)

	history := []domain.ChatTurn{
		{Content: strings.Repeat("old filler ", 10), IsUser: true},
		{Content: "recent question", IsUser: true},
	}
	e.Answer(ctx, "alpha?", 1, "", history)
	assert.NotContains(t, gen.lastPrompt, "old filler")
	assert.Contains(t, gen.lastPrompt, "recent question")
}

func TestIngestRollbackOnEmbedFailure(t *testing.T) {
	ctx := context.Background()
	// First call embeds chunk one; the second call fails.
	emb := &stubEmbedder{failAfter: 2}
	e, st := newTestEngine(t, emb, &stubGenerator{}, 60)

	text := "Alpha sentence one is here with some padding words. Beta sentence two is also here with padding. Gamma sentence three closes the document nicely."
	res, err := e.IngestText(ctx, 1, "doomed.txt", text)
	require.ErrorIs(t, err, domain.ErrPartialIngestion)

	// No chunk rows survive, no vectors survive, and the document is
	// marked failed.
	chunks, err := st.ChunksForDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	n, err := e.index.Count(1)
	require.NoError(t, err)
	assert.Zero(t, n)

	doc, err := st.GetDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.False(t, doc.Processed)
	assert.Contains(t, doc.ProcessingError, "embedding chunk")
}

func TestIngestEmptyDocument(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, &stubEmbedder{}, &stubGenerator{}, 400)

	res, err := e.IngestText(ctx, 1, "empty.txt", "   \n  ")
	require.Error(t, err)
	doc, gerr := st.GetDocument(ctx, res.DocumentID)
	require.NoError(t, gerr)
	assert.Equal(t, "no text to index", doc.ProcessingError)
}

func TestIngestUnsupportedFileType(t *testing.T) {
	e, _ := newTestEngine(t, &stubEmbedder{}, &stubGenerator{}, 400)
	_, err := e.IngestFile(context.Background(), 1, "slides.pptx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestDeleteDocumentRemovesEverything(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{reply: "ok"}
	e, st := newTestEngine(t, &stubEmbedder{}, gen, 400)

	keep, err := e.IngestText(ctx, 1, "keep.txt", "Alpha material to keep.")
	require.NoError(t, err)
	drop, err := e.IngestText(ctx, 1, "drop.txt", "Beta material to drop.")
	require.NoError(t, err)

	require.NoError(t, e.DeleteDocument(ctx, 1, drop.DocumentID))

	_, err = st.GetDocument(ctx, drop.DocumentID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	chunks, err := st.ChunksForDocument(ctx, drop.DocumentID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	ans := e.Answer(ctx, "beta?", 1, "", nil)
	for _, src := range ans.Sources {
		assert.Equal(t, keep.DocumentID, src.DocumentID)
	}
}

func TestDeleteDocumentWrongUser(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, &stubEmbedder{}, &stubGenerator{}, 400)
	res, err := e.IngestText(ctx, 1, "mine.txt", "Alpha content.")
	require.NoError(t, err)
	assert.ErrorIs(t, e.DeleteDocument(ctx, 2, res.DocumentID), domain.ErrNotFound)
}

func TestUserIsolationThroughEngine(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{reply: "ok"}
	e, _ := newTestEngine(t, &stubEmbedder{}, gen, 400)

	_, err := e.IngestText(ctx, 1, "user1.txt", "Alpha secrets belong to user one.")
	require.NoError(t, err)

	ans := e.Answer(ctx, "alpha secrets?", 2, "", nil)
	assert.Equal(t, noContextAnswer, ans.Text)
	assert.Empty(t, ans.Sources)
}

func writeTempDoc(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}
