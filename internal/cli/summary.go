package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pdfrag/internal/session"
)

var summaryCmd = &cobra.Command{
	Use:   "summary [file]",
	Short: "Summarize a document",
	Long: `Prints a summary of the document. With a language model configured the
model writes it from the start of the document; otherwise the most
representative sentences are extracted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerated(cmd, args[0], (*session.Session).Summarize)
	},
}

var topicsCmd = &cobra.Command{
	Use:   "topics [file]",
	Short: "List the topics of a document that are hard to follow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerated(cmd, args[0], (*session.Session).DifficultTopics)
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(topicsCmd)
}

func runGenerated(cmd *cobra.Command, path string, generate func(*session.Session, context.Context) (string, error)) error {
	sess, err := newSession(nil)
	if err != nil {
		return err
	}
	if _, err := sess.LoadFile(path); err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	text, err := generate(sess, cmd.Context())
	if err != nil {
		return fmt.Errorf("%s failed: %w", cmd.Name(), err)
	}
	cmd.Println(text)
	return nil
}
