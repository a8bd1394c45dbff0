package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pdfrag/internal/metrics"
	"pdfrag/internal/server"
	"pdfrag/internal/watcher"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Serve the retrieval API over HTTP",
	Long: `Starts the HTTP API. A file given on the command line is indexed before
the listener starts; documents can also be uploaded with POST /documents.
With --watch the file is re-indexed whenever it changes on disk, while
queries keep being answered from the previous index.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "reload the file when it changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := appConfig.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	watch := appConfig.Watch || serveWatch
	if watch && len(args) == 0 {
		return errors.New("--watch needs a file argument")
	}

	m := metrics.New()
	sess, err := newSession(m)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		if _, err := sess.LoadFile(args[0]); err != nil {
			return fmt.Errorf("load failed: %w", err)
		}
	}

	api := server.New(sess, m, server.Options{
		MaxTopK:        100,
		MaxUploadBytes: int64(appConfig.Server.MaxUploadMB) << 20,
		AskRatePerSec:  appConfig.Server.AskRatePerSec,
		AskBurst:       appConfig.Server.AskBurst,
	})
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Handler(),
		ReadTimeout:  time.Duration(appConfig.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(appConfig.Server.WriteTimeoutSecs) * time.Second,
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		slog.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	if watch {
		path := args[0]
		g.Go(func() error {
			return watcher.Watch(ctx, path, 500*time.Millisecond, func() error {
				_, err := sess.LoadFile(path)
				return err
			})
		})
	}
	return g.Wait()
}
