package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/pageshot/api"
	"github.com/use-agent/pageshot/config"
	"github.com/use-agent/pageshot/models"
	"github.com/use-agent/pageshot/runner"
	"github.com/use-agent/pageshot/store"
	"github.com/use-agent/pageshot/webhook"
	"github.com/use-agent/pageshot/worker"
)

const (
	httpDrainTimeout = 5 * time.Second
	runDrainTimeout  = 30 * time.Second
)

// executor runs worker jobs with a fresh Runner each.
func executor(cfg *config.Config) worker.Executor {
	return func(ctx context.Context, job *worker.Job) (*models.RunReport, error) {
		r := newRunner(cfg, runner.NopObserver{}, job.TextSnapshots)
		return r.Run(ctx, job.Plan)
	}
}

func newServeCommand(gs *globalState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept verification runs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), gs.cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&gs.cfg.Server.Host, "host", gs.cfg.Server.Host, "listen address")
	f.IntVar(&gs.cfg.Server.Port, "port", gs.cfg.Server.Port, "listen port")
	f.IntVar(&gs.cfg.Server.QueueSize, "queue-size", gs.cfg.Server.QueueSize, "max runs waiting for the worker")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("pageshot starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"queue", cfg.Server.QueueSize,
	)
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeys) == 0 {
		slog.Warn("auth enabled without PAGESHOT_API_KEYS, the API is open")
	}

	st := store.New(cfg.Store.MaxEntries, cfg.Store.TTL)
	defer st.Close()

	w := worker.New(executor(cfg), st, webhook.NewSender(cfg.Webhook.Secret), cfg.Server.QueueSize)
	w.Start()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(w, st, cfg, time.Now()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		_ = w.Shutdown(context.Background())
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	httpCtx, cancel := context.WithTimeout(context.Background(), httpDrainTimeout)
	defer cancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	runCtx, cancelRuns := context.WithTimeout(context.Background(), runDrainTimeout)
	defer cancelRuns()
	if err := w.Shutdown(runCtx); err != nil {
		slog.Warn("queued runs canceled", "error", err)
	}

	slog.Info("pageshot stopped")
	return nil
}
