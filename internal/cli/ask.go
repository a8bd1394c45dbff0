package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var askShowContext bool

var askCmd = &cobra.Command{
	Use:   "ask [file] [question]",
	Short: "Answer a question from the document with the configured model",
	Args:  cobra.ExactArgs(2),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askShowContext, "context", false, "print the chunks the answer was grounded on")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if !appConfig.LLM.Enabled {
		return errors.New("llm is disabled in config")
	}
	sess, err := newSession(nil)
	if err != nil {
		return err
	}
	if _, err := sess.LoadFile(args[0]); err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	ans, err := sess.Ask(cmd.Context(), args[1])
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	cmd.Println(ans.Text)
	if askShowContext {
		cmd.Println()
		for _, r := range ans.Context {
			cmd.Printf("-- chunk #%d (%.3f)\n%s\n", r.Chunk.Index, r.Score, r.Chunk.Text)
		}
	}
	return nil
}
