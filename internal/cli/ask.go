package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docchat/internal/domain"
)

var askSession string

// askCmd answers a single question against the user's indexed documents.
// With --session the exchange is appended to an existing chat session and
// prior turns are fed back as conversation context.
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a one-off question about your documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		question := strings.Join(args, " ")

		var history []domain.ChatTurn
		var session domain.ChatHistory
		if askSession != "" {
			session, err = a.store.GetSession(ctx, askSession)
			if err != nil {
				return fmt.Errorf("loading session %s: %w", askSession, err)
			}
			if session.UserID != userID {
				return domain.ErrNotFound
			}
			history, err = a.engine.SessionTurns(ctx, askSession)
			if err != nil {
				return err
			}
		}

		ans := a.engine.Answer(ctx, question, userID, askSession, history)
		fmt.Println(ans.Text)
		if len(ans.Sources) > 0 {
			fmt.Println()
			fmt.Println("Sources:")
			for _, s := range ans.Sources {
				fmt.Printf("  - %s (document %d, chunk %d)\n", s.DocumentName, s.DocumentID, s.ChunkID)
			}
		}

		if askSession != "" {
			if err := a.store.AppendMessage(ctx, &domain.ChatMessage{
				ChatHistoryID: session.ID, Content: question, IsUser: true,
			}); err != nil {
				return fmt.Errorf("saving question: %w", err)
			}
			var related []string
			for _, s := range ans.Sources {
				related = append(related, s.DocumentName)
			}
			if err := a.store.AppendMessage(ctx, &domain.ChatMessage{
				ChatHistoryID:    session.ID,
				Content:          ans.Text,
				RelatedDocuments: strings.Join(related, ","),
			}); err != nil {
				return fmt.Errorf("saving answer: %w", err)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session id to continue")
	rootCmd.AddCommand(askCmd)
}
