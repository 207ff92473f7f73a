package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

func TestSummarizeTooFewTurns(t *testing.T) {
	gen := &stubGenerator{reply: "unused"}
	e, _ := newTestEngine(t, &stubEmbedder{}, gen, 400)

	assert.Equal(t, notEnoughToSummarize, e.Summarize(context.Background(), nil))
	assert.Equal(t, notEnoughToSummarize, e.Summarize(context.Background(), []domain.ChatTurn{
		{Content: "only one turn", IsUser: true},
	}))
	// Blank turns don't count towards the minimum.
	assert.Equal(t, notEnoughToSummarize, e.Summarize(context.Background(), []domain.ChatTurn{
		{Content: "hello", IsUser: true},
		{Content: "   ", IsUser: false},
	}))
	assert.Zero(t, gen.calls)
}

func TestSummarizeTranscript(t *testing.T) {
	gen := &stubGenerator{reply: "  The user asked about launches.  "}
	e, _ := newTestEngine(t, &stubEmbedder{}, gen, 400)

	out := e.Summarize(context.Background(), []domain.ChatTurn{
		{Content: "When is the launch?", IsUser: true},
		{Content: "The launch is in March.", IsUser: false},
	})
	assert.Equal(t, "The user asked about launches.", out)
	assert.Contains(t, gen.lastPrompt, "User: When is the launch?")
	assert.Contains(t, gen.lastPrompt, "Assistant: The launch is in March.")
	assert.Contains(t, gen.lastSystem, "summarization specialist")
}

func TestSummarizeProviderFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("model offline")}
	e, _ := newTestEngine(t, &stubEmbedder{}, gen, 400)

	out := e.Summarize(context.Background(), []domain.ChatTurn{
		{Content: "q", IsUser: true},
		{Content: "a", IsUser: false},
	})
	assert.Equal(t, summaryFallback, out)
}

func TestSummarizeSession(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{reply: "A short chat about alpha."}
	e, st := newTestEngine(t, &stubEmbedder{}, gen, 400)

	sess, err := st.CreateSession(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, st.AppendMessage(ctx, &domain.ChatMessage{
		ChatHistoryID: sess.ID, Content: "what is alpha?", IsUser: true,
	}))
	require.NoError(t, st.AppendMessage(ctx, &domain.ChatMessage{
		ChatHistoryID: sess.ID, Content: "alpha is a project", IsUser: false,
	}))

	summary, err := e.SummarizeSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "A short chat about alpha.", summary)

	stored, err := st.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "A short chat about alpha.", stored.Summary)
}

func TestSummarizeSessionNoHistory(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{reply: "unused"}
	e, st := newTestEngine(t, &stubEmbedder{}, gen, 400)

	sess, err := st.CreateSession(ctx, 1)
	require.NoError(t, err)

	summary, err := e.SummarizeSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, noHistoryToSummarize, summary)
	assert.Zero(t, gen.calls)
}
