package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pdfrag/internal/chunker"
	"pdfrag/internal/loader"
)

var (
	chunkSize    int
	chunkOverlap int
	chunkJSON    bool
)

var chunkCmd = &cobra.Command{
	Use:   "chunk [file]",
	Short: "Print the word windows a document is split into",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunk,
}

func init() {
	chunkCmd.Flags().IntVar(&chunkSize, "size", 0, "words per chunk (default from config)")
	chunkCmd.Flags().IntVar(&chunkOverlap, "overlap", -1, "words shared by consecutive chunks (default from config)")
	chunkCmd.Flags().BoolVar(&chunkJSON, "json", false, "output chunks as JSON")
	rootCmd.AddCommand(chunkCmd)
}

type chunkJSONEntry struct {
	Index int    `json:"index"`
	Words int    `json:"words"`
	Text  string `json:"text"`
}

func runChunk(cmd *cobra.Command, args []string) error {
	size, overlap := appConfig.Chunker.Size, appConfig.Chunker.Overlap
	if cmd.Flags().Changed("size") {
		size = chunkSize
	}
	if cmd.Flags().Changed("overlap") {
		overlap = chunkOverlap
	}

	doc, err := loader.Load(args[0])
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	chunks, err := chunker.Split(doc.Content, size, overlap)
	if err != nil {
		return err
	}

	if chunkJSON {
		out := make([]chunkJSONEntry, len(chunks))
		for i, c := range chunks {
			out[i] = chunkJSONEntry{Index: i, Words: len(strings.Fields(c)), Text: c}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal chunks: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("%s: %d chunks (size=%d overlap=%d)\n", doc.Name, len(chunks), size, overlap)
	for i, c := range chunks {
		cmd.Printf("\n[%d] %s\n", i, c)
	}
	return nil
}
