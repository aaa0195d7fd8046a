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
	"github.com/HannahMarsh/simple-onion-routing/internal/model/user"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	var configPath, logLevel string
	var id int

	rootCmd := &cobra.Command{
		Use:   "user",
		Short: "Run one user that sends and receives onion-routed messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel, id)
		},
	}
	rootCmd.Flags().IntVar(&id, "id", -1, "ID of the user (required)")
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

	if id < 0 || id >= cfg.NumUsers {
		return errors.Errorf("user id %d out of range [0, %d)", id, cfg.NumUsers)
	}

	// set GOMAXPROCS
	if _, err = maxprocs.Set(); err != nil {
		return errors.Wrap(err, "failed set max procs")
	}

	slog.Info("⚡ init user", "id", id)

	dirClient := directory.NewClient(cfg.Directory.Address, cfg.DirectoryCacheTTL)
	resolver := api_functions.PortResolver{Host: cfg.Host, Ports: cfg.Ports()}
	newUser := user.NewUser(id, dirClient, cfg.Ports(), resolver, cfg.SendTimeout)

	shutdown := api_functions.Serve(cfg.Ports().UserPort(id), newUser.Handler())
	defer shutdown()

	if port := cfg.UserPrometheusPort(id); port != 0 {
		defer metrics.ServeMetrics(port, metrics.MESSAGES_SENT, metrics.MESSAGES_RECEIVED, metrics.ENVELOPE_SIZE)()
	}

	slog.Info("🌏 start user...", "id", id, "address", cfg.UserAddress(id))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	v := <-quit
	slog.Info("", "signal.Notify", v)
	return nil
}
