package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobhound/internal/api"
	"jobhound/internal/app"
)

const shutdownGrace = 10 * time.Second

// newServeCmd creates the 'serve' subcommand: the ops API, optionally with a
// crawl running alongside it.
func newServeCmd() *cobra.Command {
	var withCrawl bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ops API (run progress, health, metrics)",
		Long: `Starts the HTTP ops API. With --crawl, a crawl runs concurrently and its
live progress is queryable at /v1/runs while it works.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			services, err := app.New(ctx, rootCfg, rootLogger)
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			defer func() {
				if cerr := services.Close(context.Background()); cerr != nil {
					rootLogger.Warn("shutdown services", zap.Error(cerr))
				}
			}()

			gatherer := prometheus.Gatherers{services.Registry(), prometheus.DefaultGatherer}
			server := api.NewServer(rootCfg.Server, services.Status(), gatherer, rootLogger)
			httpServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", rootCfg.Server.Port),
				Handler:           server.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 2)
			go func() {
				rootLogger.Info("ops api listening", zap.Int("port", rootCfg.Server.Port))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- fmt.Errorf("serve ops api: %w", err)
				}
			}()

			if withCrawl {
				engine, err := services.NewEngine()
				if err != nil {
					return err
				}
				go func() {
					result, err := engine.Run(ctx)
					if err != nil && !errors.Is(err, context.Canceled) {
						errCh <- fmt.Errorf("run crawl: %w", err)
						return
					}
					rootLogger.Info("background crawl finished",
						zap.String("run_id", engine.RunID()),
						zap.Int("items_saved", result.ItemsSaved),
						zap.Int("pages_visited", result.PagesVisited),
					)
				}()
			}

			var runErr error
			select {
			case <-ctx.Done():
			case runErr = <-errCh:
				stop()
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				rootLogger.Warn("ops api shutdown", zap.Error(err))
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&withCrawl, "crawl", false, "also run a crawl while serving")

	return cmd
}
