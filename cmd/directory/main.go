package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/HannahMarsh/simple-onion-routing/config"
	"github.com/HannahMarsh/simple-onion-routing/internal/api/api_functions"
	"github.com/HannahMarsh/simple-onion-routing/internal/directory"
	"github.com/HannahMarsh/simple-onion-routing/internal/logger"
	"github.com/HannahMarsh/simple-onion-routing/internal/metrics"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	var configPath, logLevel, prometheusConfigPath string

	rootCmd := &cobra.Command{
		Use:   "directory",
		Short: "Run the relay directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel, prometheusConfigPath)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	rootCmd.Flags().StringVar(&prometheusConfigPath, "prometheus-config", "", "write a Prometheus scrape config for every party to this path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath, logLevel, prometheusConfigPath string) error {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	logger.SetUpLogrusAndSlog(logLevel)

	// set GOMAXPROCS
	if _, err = maxprocs.Set(); err != nil {
		return errors.Wrap(err, "failed set max procs")
	}

	if prometheusConfigPath != "" {
		if err = cfg.WritePrometheusConfig(prometheusConfigPath); err != nil {
			return err
		}
	}

	store, err := directory.NewStore(cfg.Directory.Store)
	if err != nil {
		return err
	}
	dir := directory.NewDirectory(store)
	defer func() {
		if err := dir.Close(); err != nil {
			slog.Error("failed to close directory store", "err", err)
		}
	}()

	slog.Info("⚡ init directory", "store", cfg.Directory.Store.Driver)

	shutdown := api_functions.Serve(cfg.Directory.Port, dir.Handler())
	defer shutdown()

	if cfg.Directory.PrometheusPort != 0 {
		defer metrics.ServeMetrics(cfg.Directory.PrometheusPort)()
	}

	slog.Info("🌏 start directory...", "address", cfg.Directory.Address)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	v := <-quit
	slog.Info("", "signal.Notify", v)
	return nil
}
