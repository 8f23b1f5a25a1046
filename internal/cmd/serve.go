package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/prokopidis/presidio/internal/anonymizer"
	"github.com/prokopidis/presidio/internal/config"
	"github.com/prokopidis/presidio/internal/server"
	"github.com/prokopidis/presidio/internal/task"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the anonymization HTTP API with an async task queue",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 3000, "HTTP server port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	pipeline, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	store, err := task.NewStore(cfg.TaskDBPath())
	if err != nil {
		return fmt.Errorf("initializing task store: %w", err)
	}
	defer store.Close()

	queue := task.NewQueue(func(ctx context.Context, text string) (any, error) {
		records, err := pipeline.Anonymize(ctx, text)
		if err != nil {
			return nil, err
		}
		// JSON null for no records would surprise pollers; keep it a list.
		if records == nil {
			records = []anonymizer.Record{}
		}
		return records, nil
	}, cfg.TaskWorkers, cfg.TaskBuffer, store)

	retention := task.StartRetention(queue, cfg.ResultTTL, 10*time.Minute)
	defer retention.Stop()

	srv := server.NewServer(queue,
		server.WithRateLimiter(server.NewRateLimiter(cfg.GlobalRPM, cfg.PerCallerRPM)),
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", servePort),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", servePort).Bool("reversible", cfg.Reversible).Msg("anonymizer server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if err := queue.Close(); err != nil {
		log.Warn().Err(err).Msg("closing task queue")
	}
	return nil
}
