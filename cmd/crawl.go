package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobhound/internal/app"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs one crawl to
// completion and exits.
func newCrawlCmd() *cobra.Command {
	var (
		keyword  string
		region   string
		startURL string
		maxItems int
		maxPages int
		workers  int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl against the configured listing site",
		Long: `Seeds the frontier from --start-url or a search built from --keyword and
--region, then crawls listing pages and their detail links until the item
budget, the page budget, or the site itself runs out.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := rootCfg
			if cmd.Flags().Changed("keyword") {
				cfg.Crawl.Keyword = keyword
			}
			if cmd.Flags().Changed("region") {
				cfg.Crawl.Region = region
			}
			if cmd.Flags().Changed("start-url") {
				cfg.Crawl.StartURL = startURL
			}
			if cmd.Flags().Changed("max-items") {
				cfg.Crawl.MaxItems = maxItems
			}
			if cmd.Flags().Changed("max-pages") {
				cfg.Crawl.MaxPages = maxPages
			}
			if cmd.Flags().Changed("workers") {
				cfg.Crawl.Concurrency = workers
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			services, err := app.New(ctx, cfg, rootLogger)
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			defer func() {
				if cerr := services.Close(context.Background()); cerr != nil {
					rootLogger.Warn("shutdown services", zap.Error(cerr))
				}
			}()

			engine, err := services.NewEngine()
			if err != nil {
				return err
			}

			result, err := engine.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run crawl: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"crawl %s: %d records saved, %d pages visited, %d tasks abandoned in %s\n",
				engine.RunID(), result.ItemsSaved, result.PagesVisited,
				result.TasksAbandoned, result.Duration.Round(10*time.Millisecond))

			if result.ItemsSaved == 0 {
				return errors.New("crawl made no progress: zero records saved")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&keyword, "keyword", "", "search term for the listing query")
	cmd.Flags().StringVar(&region, "region", "", "region for the listing query (omitted when empty)")
	cmd.Flags().StringVar(&startURL, "start-url", "", "explicit seed listing URL; overrides keyword/region")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "stop after saving this many records (0 = unlimited)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop paginating after this many listing pages")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker pool size")

	return cmd
}
