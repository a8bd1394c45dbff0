package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"pdfrag/internal/tui"
	"pdfrag/internal/watcher"
)

func runTUI(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: pdfrag [--config=config.yaml] FILE")
	}
	path := args[0]

	sess, err := newSession(nil)
	if err != nil {
		return err
	}
	res, err := sess.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	p := tea.NewProgram(tui.New(ctx, sess, res.Summary, appConfig.Retrieval.TopK), tea.WithAltScreen())
	if appConfig.Watch {
		go func() {
			_ = watcher.Watch(ctx, path, 500*time.Millisecond, func() error {
				res, err := sess.LoadFile(path)
				p.Send(tui.ReloadedMsg{Result: res, Err: err})
				return err
			})
		}()
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
