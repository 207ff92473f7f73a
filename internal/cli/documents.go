package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage indexed documents",
}

// documentsListCmd prints the user's documents with their index status.
var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		docs, err := a.store.ListDocuments(cmd.Context(), userID)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("no documents")
			return nil
		}
		for _, d := range docs {
			status := "processed"
			if !d.Processed {
				status = "pending"
				if d.ProcessingError != "" {
					status = "failed: " + d.ProcessingError
				}
			}
			fmt.Printf("%d\t%s\t%d bytes\t%s\t%s\n",
				d.ID, d.OriginalFilename, d.FileSize, d.UploadDate.Format("2006-01-02 15:04"), status)
		}
		return nil
	},
}

// documentsDeleteCmd removes a document, its chunks and its vectors.
var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document and its index entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid document id %q", args[0])
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.engine.DeleteDocument(cmd.Context(), userID, id); err != nil {
			return err
		}
		fmt.Printf("deleted document %d\n", id)
		return nil
	},
}

// deleteCmd is the top-level shorthand for documents delete.
var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document and its index entries",
	Args:  cobra.ExactArgs(1),
	RunE:  documentsDeleteCmd.RunE,
}

func init() {
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(deleteCmd)
}
