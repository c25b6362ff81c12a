package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit/execution"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/observability"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/repository"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/server"
)

const shutdownTimeout = 10 * time.Second

func (c *CLI) serveCommand() *cobra.Command {
	var addr, driver string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP conversion and diagram service",
		Long: `Serve exposes conversion, validation, diagram storage and execution monitoring
over HTTP. Storage is selected by repository.driver (memory, sqlite or redis).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.Settings.Server.Addr = addr
			}
			if driver != "" {
				c.Settings.Repository.Driver = driver
			}
			return c.runServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	cmd.Flags().StringVar(&driver, "driver", "", "repository driver: memory, sqlite or redis")
	return cmd
}

func (c *CLI) runServe(ctx context.Context) error {
	logger := c.slog()
	metrics := observability.NewMetricsRecorder()

	reg, err := c.registry(metrics)
	if err != nil {
		return err
	}
	repo, err := repository.Open(ctx, c.Settings.Repository, repository.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer repo.Close()

	monitor := execution.NewMonitor(
		execution.WithLogger(logger),
		execution.WithMetrics(metrics),
	)
	srv := server.New(reg, repo, monitor,
		server.WithLogger(logger),
		server.WithMaxBodyBytes(int64(c.Settings.Server.MaxBodyBytes)),
	)

	httpServer := &http.Server{
		Addr:         c.Settings.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  c.Settings.Server.ReadTimeout,
		WriteTimeout: c.Settings.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		c.Logger.Info("listening", "addr", httpServer.Addr, "repository", c.Settings.Repository.Driver)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		c.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
