package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/questioncrawler/wikidata-cache/cmd/fetch"
	"github.com/questioncrawler/wikidata-cache/cmd/initdb"
	"github.com/questioncrawler/wikidata-cache/cmd/serve"
	"github.com/questioncrawler/wikidata-cache/cmd/status"
	"github.com/questioncrawler/wikidata-cache/internal/buildinfo"
	"github.com/questioncrawler/wikidata-cache/internal/conf"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
	"github.com/questioncrawler/wikidata-cache/internal/telemetry"
)

const telemetryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(info *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var centralLogger *logger.CentralLogger

	rootCmd := &cobra.Command{
		Use:           "wikidata-cache",
		Short:         "Wikidata entry cache for the trivia question generator",
		Version:       info.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		serve.Command(settings, info),
		initdb.Command(settings),
		fetch.Command(settings),
		status.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		loaded, err := conf.Load()
		if err != nil {
			return err
		}
		*settings = *loaded

		centralLogger, err = initialize(settings, info)
		if err != nil {
			return err
		}

		if path := viper.GetString("dump-config"); path != "" {
			if err := conf.SaveYAMLConfig(path, settings); err != nil {
				return err
			}
			logger.Get("main").Info("effective configuration written", logger.String("path", path))
		}
		return nil
	}

	rootCmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		telemetry.Flush(telemetryFlushTimeout)
		if centralLogger != nil {
			return centralLogger.Close()
		}
		return nil
	}

	return rootCmd
}

// initialize sets up logging and error telemetry from the loaded settings.
func initialize(settings *conf.Settings, info *buildinfo.Context) (*logger.CentralLogger, error) {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)

	if err := telemetry.InitSentry(settings, info.GetVersion()); err != nil {
		// Telemetry is optional; the service runs without it.
		logger.Get("main").Warn("sentry disabled", logger.Error(err))
	}

	logger.Get("main").Info("starting",
		logger.String("version", info.GetVersion()),
		logger.String("build_date", info.GetBuildDate()),
		logger.String("database", settings.Database.Type))
	return cl, nil
}

// setupFlags defines the persistent flags and binds them into viper.
func setupFlags(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to config.yaml (default: search ./, ~/.config/wikidata-cache, /etc/wikidata-cache)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("db-type", "", "Database backend: sqlite, mysql, postgres or mongodb")
	flags.String("dump-config", "", "Write the effective configuration as YAML to this path")

	bindings := map[string]string{
		"config":        "config",
		"debug":         "debug",
		"database.type": "db-type",
		"dump-config":   "dump-config",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
