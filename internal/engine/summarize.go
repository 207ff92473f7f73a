package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"docchat/internal/domain"
)

const summarySystemPrompt = `You are a summarization specialist. Create a concise,
informative summary of this conversation between a user and an assistant,
focusing on the main topics discussed, key questions asked, important
information provided and any conclusions reached. Keep the summary to 2-3
sentences and be specific about what was discussed.`

const (
	notEnoughToSummarize = "Not enough conversation to summarize."
	noHistoryToSummarize = "No chat history found to summarize."
	summaryFallback      = "Unable to generate session summary due to an error."
)

// Summarize reduces a transcript to a 2-3 sentence summary. It fails soft:
// fewer than two turns or a provider failure yield a fixed string, never
// an error.
func (e *Engine) Summarize(ctx context.Context, transcript []domain.ChatTurn) string {
	var turns []domain.ChatTurn
	for _, t := range transcript {
		if strings.TrimSpace(t.Content) != "" {
			turns = append(turns, t)
		}
	}
	if len(turns) < 2 {
		return notEnoughToSummarize
	}

	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", roleLabel(t.IsUser), strings.TrimSpace(t.Content))
	}
	b.WriteString("\nBased on the conversation above, provide a brief, informative summary in 2-3 sentences.")

	out, err := e.generator.Generate(ctx, b.String(), summarySystemPrompt, 256, 0.3)
	if err != nil {
		log.Printf("engine: summarizing transcript: %v", err)
		return summaryFallback
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return summaryFallback
	}
	return out
}

// SummarizeSession summarizes a stored session's transcript and saves the
// summary back on the session. The returned error reports record store
// failures only; summarization itself degrades to fallback text.
func (e *Engine) SummarizeSession(ctx context.Context, sessionID string) (string, error) {
	msgs, err := e.records.MessagesForSession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	if len(msgs) == 0 {
		return noHistoryToSummarize, nil
	}
	turns := make([]domain.ChatTurn, len(msgs))
	for i, m := range msgs {
		turns[i] = m.Turn()
	}
	summary := e.Summarize(ctx, turns)
	if err := e.records.SetSessionSummary(ctx, sessionID, summary); err != nil {
		return summary, fmt.Errorf("saving summary for session %s: %w", sessionID, err)
	}
	return summary, nil
}
