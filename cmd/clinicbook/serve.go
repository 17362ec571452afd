package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local booking console",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
		},
	}
}

func runServer(ctx context.Context) error {
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.logger.Info("starting clinicbook console",
		"env", rt.cfg.Env,
		"port", rt.cfg.Port,
		"api", rt.cfg.APIBaseURL,
		"availability_mode", string(rt.app.API.Mode()),
	)

	srv := &http.Server{
		Addr:         ":" + rt.cfg.Port,
		Handler:      rt.app.Router(ctx),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			rt.logger.Error("server error", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	rt.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		rt.logger.Error("server forced to shutdown", "error", err)
		return err
	}
	rt.logger.Info("server stopped")
	return nil
}
