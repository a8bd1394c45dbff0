// Package cli wires the pdfrag commands together.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pdfrag/internal/config"
	"pdfrag/internal/llm"
	"pdfrag/internal/logger"
	"pdfrag/internal/metrics"
	"pdfrag/internal/session"
)

var (
	cfgPath string
	verbose bool

	// appConfig is populated by the persistent pre-run of every command.
	appConfig *config.AppConfig
	logFile   *os.File
)

var rootCmd = &cobra.Command{
	Use:   "pdfrag [file]",
	Short: "Search and question a PDF or text document",
	Long: `pdfrag splits a document into overlapping word windows, indexes them
with TF-IDF and retrieves the passages most similar to a query.

With a file argument it opens the interactive terminal UI. When a language
model is configured (Ollama by default) questions are answered from the
retrieved passages.`,
	Args:               cobra.MaximumNArgs(1),
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
	RunE:               runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (default ./config.yaml or ~/.config/pdfrag/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	var err error
	if cfgPath == "" {
		appConfig, _, err = config.LoadDefault()
	} else {
		appConfig, err = config.Load(cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := appConfig.Logging.Level
	if verbose {
		level = "debug"
	}
	var w io.Writer = cmd.ErrOrStderr()
	if appConfig.Logging.File != "" {
		logFile, err = os.OpenFile(appConfig.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		w = logFile
	} else if !cmd.HasParent() {
		// the terminal belongs to the TUI
		w = io.Discard
	}
	logger.Setup(level, appConfig.Logging.Format, w)
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

func newSession(m *metrics.Metrics) (*session.Session, error) {
	opts := []session.Option{session.WithMetrics(m)}
	if appConfig.LLM.Enabled {
		client, err := llm.NewClient(llm.Config{
			BaseURL:    appConfig.LLM.BaseURL,
			APIKeyEnv:  appConfig.LLM.APIKeyEnv,
			Model:      appConfig.LLM.Model,
			Timeout:    time.Duration(appConfig.LLM.TimeoutSecs) * time.Second,
			MaxRetries: appConfig.LLM.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("llm init failed: %w", err)
		}
		opts = append(opts, session.WithGenerator(client))
	}
	return session.New(session.Options{
		ChunkSize:        appConfig.Chunker.Size,
		Overlap:          appConfig.Chunker.Overlap,
		TopK:             appConfig.Retrieval.TopK,
		MaxContextChars:  appConfig.LLM.MaxContextChars,
		SummarySentences: appConfig.Summarizer.MaxSentences,
	}, opts...)
}
