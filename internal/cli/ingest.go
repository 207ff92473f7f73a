package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ingestCmd uploads plain-text documents into the user's knowledge base.
var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Chunk, embed and index documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		for _, path := range args {
			res, err := a.engine.IngestFile(cmd.Context(), userID, path)
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", path, err)
			}
			fmt.Printf("indexed %s: document %d, %d chunks\n", res.DocumentName, res.DocumentID, res.ChunkCount)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
