package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage chat sessions",
}

// sessionsListCmd prints the user's sessions, most recently active first.
var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		sessions, err := a.store.ListSessions(cmd.Context(), userID)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("no sessions")
			return nil
		}
		for _, s := range sessions {
			summary := s.Summary
			if summary == "" {
				summary = "(no summary)"
			}
			fmt.Printf("%s\t%s\t%s\n", s.SessionID, s.UpdatedAt.Format("2006-01-02 15:04"), summary)
		}
		return nil
	},
}

// sessionsSummarizeCmd generates and stores a summary for one session.
var sessionsSummarizeCmd = &cobra.Command{
	Use:   "summarize <session-id>",
	Short: "Summarize a chat session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		summary, err := a.engine.SummarizeSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(summary)
		return nil
	},
}

// summarizeCmd is the top-level shorthand for sessions summarize.
var summarizeCmd = &cobra.Command{
	Use:   "summarize <session-id>",
	Short: "Summarize a chat session",
	Args:  cobra.ExactArgs(1),
	RunE:  sessionsSummarizeCmd.RunE,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsSummarizeCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(summarizeCmd)
}
