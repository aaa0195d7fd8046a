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
	"github.com/HannahMarsh/simple-onion-routing/internal/model/user"
	"github.com/HannahMarsh/simple-onion-routing/pkg/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	var configPath, logLevel string

	rootCmd := &cobra.Command{
		Use:   "network",
		Short: "Run a directory, every relay and every user in one process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath, logLevel string) error {
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var shutdowns []func()
	defer func() {
		for i := len(shutdowns) - 1; i >= 0; i-- {
			shutdowns[i]()
		}
	}()

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
	shutdowns = append(shutdowns, api_functions.Serve(cfg.Directory.Port, dir.Handler()))
	slog.Info("🌏 start directory...", "address", cfg.Directory.Address)

	// one registry serves the whole process
	if cfg.Directory.PrometheusPort != 0 {
		shutdowns = append(shutdowns, metrics.ServeMetrics(cfg.Directory.PrometheusPort,
			metrics.PEEL_TIME, metrics.ENVELOPE_COUNT, metrics.ENVELOPE_SIZE, metrics.MESSAGES_SENT, metrics.MESSAGES_RECEIVED))
	}

	ports := cfg.Ports()
	resolver := api_functions.PortResolver{Host: cfg.Host, Ports: ports}
	dirClient := directory.NewClient(cfg.Directory.Address, cfg.DirectoryCacheTTL)

	relays := make([]*relay.Relay, 0, cfg.NumRelays)
	for _, id := range utils.NewIntArray(0, cfg.NumRelays) {
		newRelay, err := relay.NewRelay(id, resolver, cfg.SendTimeout)
		if err != nil {
			return err
		}
		shutdowns = append(shutdowns, api_functions.Serve(ports.RelayPort(id), newRelay.Handler()))
		if err = newRelay.RegisterWithDirectory(ctx, dirClient); err != nil {
			return err
		}
		relays = append(relays, newRelay)
		slog.Info("🌏 start relay...", "id", id, "address", cfg.RelayAddress(id))
	}

	for _, id := range utils.NewIntArray(0, cfg.NumUsers) {
		newUser := user.NewUser(id, dirClient, ports, resolver, cfg.SendTimeout)
		shutdowns = append(shutdowns, api_functions.Serve(ports.UserPort(id), newUser.Handler()))
		slog.Info("🌏 start user...", "id", id, "address", cfg.UserAddress(id))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	v := <-quit
	slog.Info("", "signal.Notify", v)

	for _, r := range relays {
		r.Wait()
	}
	return nil
}
