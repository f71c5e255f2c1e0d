// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

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

	"github.com/wneessen/go-mail-dispatch/log"
	"github.com/wneessen/go-mail-dispatch/routing"
)

// shutdownTimeout is the grace period for open requests on shutdown
const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the unsubscribe endpoint",
	Long: `Serve the unsubscribe endpoint referenced by the List-Unsubscribe header of
marketing mail. Unsubscribed contacts are stored in Redis and skipped by
subsequent send runs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		if settings.Redis.URL == "" {
			return errors.New("serve requires redis.url")
		}
		logger := newLogger(cmd.ErrOrStderr(), settings.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		client, err := connectRedis(ctx, settings.Redis.URL)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		handler := routing.NewHandler(routing.NewRedisUnsubscribes(client), logger, settings.Server.AllowedOrigins...)
		srv := &http.Server{
			Addr:              settings.Server.Addr,
			Handler:           handler.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return serve(ctx, srv, logger)
	},
}

// serve runs srv until ctx is canceled and shuts it down gracefully
func serve(ctx context.Context, srv *http.Server, logger log.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infof(log.Log{Component: log.CompHTTP, Format: "listening on %s", Messages: []interface{}{srv.Addr}})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infof(log.Log{Component: log.CompHTTP, Format: "shutting down"})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
