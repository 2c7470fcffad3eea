package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/viant/scriptsearch/config"
	"github.com/viant/scriptsearch/logging"
	"github.com/viant/scriptsearch/tracing"
)

var (
	version    = "dev"
	configPath string
	dbPath     string
	logLevel   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfg             *config.Config
		shutdownTracing tracing.Shutdown
		metricsServer   *http.Server
	)
	rootCmd := &cobra.Command{
		Use:           "scriptsearch",
		Short:         "Search screenplays by text, dialogue, metadata and meaning",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(configPath); err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			// Logs go to stderr so stdout carries only JSON.
			logging.SetDefault(logging.InitWriter(os.Stderr, cfg.Log.Level, cfg.Log.Format))

			shutdownTracing, err = tracing.Init(cmd.Context(), tracing.Config{
				ServiceName: cfg.Tracing.ServiceName,
				Endpoint:    cfg.Tracing.Endpoint,
				SampleRate:  cfg.Tracing.SampleRate,
				Enabled:     cfg.Tracing.Enabled,
			})
			if err != nil {
				return err
			}
			if cfg.Metrics.Enabled {
				metricsServer = serveMetrics(cfg.Metrics.Addr)
			}
			cmd.SetContext(withConfig(cmd.Context(), cfg))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if metricsServer != nil {
				_ = metricsServer.Shutdown(ctx)
			}
			if shutdownTracing != nil {
				return shutdownTracing(ctx)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&dbPath, "db", "", "SQLite database path (overrides database.path)")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSearchCmd(),
		newDialogueCmd(),
		newSimilarCmd(),
		newThemeCmd(),
		newMigrateCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		// Skips config loading.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), map[string]string{"version": version})
		},
	}
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Default().Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return srv
}
