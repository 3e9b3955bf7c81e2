package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daybook-ai/memengine/ingest"
	"github.com/daybook-ai/memengine/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the memengine HTTP server",
		Long:  "Starts the HTTP API with the background ingestion queue. Stops gracefully on SIGINT/SIGTERM.",
		Run:   runServe,
	}
	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	c, err := initComponents()
	if err != nil {
		exitErr("init", err)
	}
	defer c.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := ingest.NewQueue(c.pipeline, ingest.Config{
		Workers:     c.cfg.Ingest.Workers,
		QueueSize:   c.cfg.Ingest.QueueSize,
		MaxAttempts: c.cfg.Ingest.MaxAttempts,
		JobTimeout:  time.Duration(c.cfg.Ingest.JobTimeoutSecs) * time.Second,
	}, c.logger)
	queue.Start(ctx)

	srv := server.NewServer(queue, c.retriever, c.suggester, c.cfg, c.logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		c.logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		c.logger.Error("server failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		c.logger.Warn("server shutdown failed", zap.Error(err))
	}
	queue.Stop()
}
