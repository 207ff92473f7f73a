package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docchat/internal/domain"
	"docchat/internal/tui"
)

var chatSession string

// chatCmd starts the interactive chat TUI. Without --session a fresh
// session is created; with it the stored transcript is restored.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		var session domain.ChatHistory
		var history []domain.ChatTurn
		if chatSession != "" {
			session, err = a.store.GetSession(ctx, chatSession)
			if err != nil {
				return fmt.Errorf("loading session %s: %w", chatSession, err)
			}
			if session.UserID != userID {
				return domain.ErrNotFound
			}
			history, err = a.engine.SessionTurns(ctx, chatSession)
			if err != nil {
				return err
			}
		} else {
			session, err = a.store.CreateSession(ctx, userID)
			if err != nil {
				return fmt.Errorf("creating session: %w", err)
			}
			fmt.Printf("session %s\n", session.SessionID)
		}

		m := tui.New(a.engine, a.store, userID, session, history)
		_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "session id to resume")
	rootCmd.AddCommand(chatCmd)
}
