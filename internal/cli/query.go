package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pdfrag/internal/domain"
)

var (
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query [file] [query]",
	Short: "Retrieve the chunks most similar to a query",
	Long: `Indexes the document and prints the top-k chunks ranked by TF-IDF cosine
similarity. Terms not present in the document are ignored; a query with no
known terms scores every chunk zero and returns them in document order.`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to return (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("top-k") && queryTopK <= 0 {
		return fmt.Errorf("%w: -k must be positive", domain.ErrInvalidArgument)
	}
	sess, err := newSession(nil)
	if err != nil {
		return err
	}
	if _, err := sess.LoadFile(args[0]); err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	results, err := sess.Retrieve(args[1], queryTopK)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	for i, r := range results {
		cmd.Printf("[%d] chunk #%d (%.3f)\n", i+1, r.Chunk.Index, r.Score)
		cmd.Printf("    %s\n\n", r.Chunk.Text)
	}
	return nil
}
