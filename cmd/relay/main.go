package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/HannahMarsh/simple-onion-routing/config"
	"github.com/HannahMarsh/simple-onion-routing/internal/api/api_functions"
	"github.com/HannahMarsh/simple-onion-routing/internal/directory"
	"github.com/HannahMarsh/simple-onion-routing/internal/logger"
	"github.com/HannahMarsh/simple-onion-routing/internal/metrics"
	"github.com/HannahMarsh/simple-onion-routing/internal/model/relay"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	var configPath, logLevel string
	var id int

	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "Run one onion relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel, id)
		},
	}
	rootCmd.Flags().IntVar(&id, "id", -1, "ID of the relay (required)")
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	_ = rootCmd.MarkFlagRequired("id")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath, logLevel string, id int) error {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	logger.SetUpLogrusAndSlog(logLevel)

	if id < 0 || id >= cfg.NumRelays {
		return errors.Errorf("relay id %d out of range [0, %d)", id, cfg.NumRelays)
	}

	// set GOMAXPROCS
	if _, err = maxprocs.Set(); err != nil {
		return errors.Wrap(err, "failed set max procs")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("⚡ init relay", "id", id)

	resolver := api_functions.PortResolver{Host: cfg.Host, Ports: cfg.Ports()}
	newRelay, err := relay.NewRelay(id, resolver, cfg.SendTimeout)
	if err != nil {
		return err
	}

	shutdown := api_functions.Serve(cfg.Ports().RelayPort(id), newRelay.Handler())
	defer shutdown()

	if port := cfg.RelayPrometheusPort(id); port != 0 {
		defer metrics.ServeMetrics(port, metrics.PEEL_TIME, metrics.ENVELOPE_COUNT, metrics.ENVELOPE_SIZE)()
	}

	if err = newRelay.RegisterWithDirectory(ctx, directory.NewClient(cfg.Directory.Address, 0)); err != nil {
		return err
	}

	slog.Info("🌏 start relay...", "id", id, "address", cfg.RelayAddress(id))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	v := <-quit
	slog.Info("", "signal.Notify", v)
	newRelay.Wait()
	return nil
}
