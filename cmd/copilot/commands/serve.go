// ABOUTME: Serve command runs the dashboard HTTP API
// ABOUTME: Hosts the OAuth callback and Prometheus metrics on the same listener
package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harper/notion-copilot/internal/api"
	"github.com/spf13/cobra"
)

var (
	serveAddr string
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP API",
		Long: `Run the dashboard HTTP API.

Endpoints include /api/chat, /api/status, /api/search, the OAuth
redirect target /auth/callback, /metrics for Prometheus, and /health.

Examples:
  copilot serve
  copilot serve --addr 127.0.0.1:9000`,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default COPILOT_LISTEN_ADDR)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{withAssistant: true})
	if err != nil {
		return err
	}
	defer a.Close()

	deps := api.Deps{
		Workspace:   a.workspace,
		Assistant:   a.assistant,
		Metrics:     a.metrics.Handler(),
		Logger:      a.logger,
		AuthTimeout: a.cfg.AuthTimeout,
	}
	if a.flow != nil {
		deps.Callback = a.flow.CallbackHandler()
	}

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.ListenAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(deps).Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	a.connect(ctx)

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", addr).Msg("dashboard API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("shutting down")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
