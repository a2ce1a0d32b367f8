// Package serve runs the HTTP facade.
package serve

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/questioncrawler/wikidata-cache/internal/api"
	"github.com/questioncrawler/wikidata-cache/internal/app"
	"github.com/questioncrawler/wikidata-cache/internal/buildinfo"
	"github.com/questioncrawler/wikidata-cache/internal/conf"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
	"github.com/questioncrawler/wikidata-cache/internal/scheduler"
)

// Command creates the serve command.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the entry cache over HTTP",
		Long: "Start the HTTP facade. When a category is below the stock floor at start every category is " +
			"topped up in the background while requests are served (disable with --warm=false); " +
			"with scheduler.enabled the refill repeats on a cron schedule.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), settings, info)
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().Bool("warm", true, "Top categories up to the stock floor on start when any is short")
	cmd.Flags().Int("port", 0, "Listen port (overrides server.port)")

	if err := viper.BindPFlag("cache.warmonstart", cmd.Flags().Lookup("warm")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("server.port", cmd.Flags().Lookup("port")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func run(ctx context.Context, settings *conf.Settings, info *buildinfo.Context) error {
	log := logger.Get("serve")

	a, err := app.New(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("error closing components", logger.Error(err))
		}
	}()

	keeper := scheduler.NewStockKeeper(a.Service, scheduler.WithSchedule(settings.Scheduler.Schedule))
	if settings.Scheduler.Enabled {
		if err := keeper.Start(); err != nil {
			return err
		}
	}
	defer func() { <-keeper.Stop().Done() }()

	server, err := api.New(settings, a.Service,
		api.WithStore(a.Store),
		api.WithMetrics(a.Metrics),
		api.WithVersion(info.GetVersion()))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	if settings.Cache.WarmOnStart {
		g.Go(func() error {
			keeper.WarmUp(gctx)
			return nil
		})
	}
	return g.Wait()
}
