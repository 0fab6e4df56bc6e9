package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FyshOS/appcache"
	"github.com/FyshOS/appcache/internal/config"
	"github.com/FyshOS/appcache/internal/logging"
)

var (
	verbose bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "appcache",
	Short: "Inspect and maintain the application launcher cache",
	Long: `appcache reads the usage ranked application cache used by the launcher.

It can list the most used applications, refresh the cache from the installed
applications, launch an application and record its use, or delete the cache.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute loads the configuration and runs the requested command.
func Execute() {
	loaded, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		loaded = config.Default()
	}
	cfg = loaded

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "appcache: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")
	rootCmd.AddCommand(newTopCmd(), newRefreshCmd(), newSearchCmd(), newLaunchCmd(), newClearCmd(), newVersionCmd())
}

func newLogger() *zap.Logger {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Development = cfg.Log.Development
	if verbose {
		logCfg.Level = "debug"
	}
	return logging.NewOrNop(logCfg)
}

// openCache opens the configured cache behind a lock, the caller must close it.
func openCache() (*appcache.Guarded, error) {
	dir, err := cfg.CacheDir()
	if err != nil {
		return nil, fmt.Errorf("locate cache: %w", err)
	}

	log := newLogger()
	c, err := appcache.Open(dir, appcache.SystemLoader(log, cfg.Apps.Dirs...),
		appcache.WithLogger(log),
		appcache.WithIconLookup(appcache.NewFDOIconLookup(cfg.Icons.Theme)),
		appcache.WithIconSize(cfg.Icons.Size),
		appcache.WithWorkers(cfg.Icons.Workers))
	if err != nil {
		return nil, err
	}
	return appcache.NewGuarded(c), nil
}
