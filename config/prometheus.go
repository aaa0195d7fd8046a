package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Global struct {
	ScrapeInterval string         `yaml:"scrape_interval"`
	ExternalLabels ExternalLabels `yaml:"external_labels"`
}

type ExternalLabels struct {
	Monitor string `yaml:"monitor"`
}

type ScrapeConfig struct {
	JobName        string         `yaml:"job_name"`
	ScrapeInterval string         `yaml:"scrape_interval"`
	StaticConfigs  []StaticConfig `yaml:"static_configs"`
}

type StaticConfig struct {
	Targets []string `yaml:"targets"`
}

type PromConfig struct {
	Global        Global         `yaml:"global"`
	ScrapeConfigs []ScrapeConfig `yaml:"scrape_configs"`
}

// PrometheusConfig returns a scrape configuration covering every party whose metrics are enabled.
func (cfg *Config) PrometheusConfig() PromConfig {
	promCfg := PromConfig{
		Global: Global{
			ScrapeInterval: "15s",
			ExternalLabels: ExternalLabels{
				Monitor: "onion",
			},
		},
		ScrapeConfigs: []ScrapeConfig{},
	}

	addJob := func(name string, port int) {
		if port == 0 {
			return
		}
		promCfg.ScrapeConfigs = append(promCfg.ScrapeConfigs, ScrapeConfig{
			JobName:        name,
			ScrapeInterval: "5s",
			StaticConfigs: []StaticConfig{
				{Targets: []string{fmt.Sprintf("%s:%d", cfg.Host, port)}},
			},
		})
	}

	addJob("directory", cfg.Directory.PrometheusPort)
	for id := 0; id < cfg.NumRelays; id++ {
		addJob(fmt.Sprintf("relay-%d", id), cfg.RelayPrometheusPort(id))
	}
	for id := 0; id < cfg.NumUsers; id++ {
		addJob(fmt.Sprintf("user-%d", id), cfg.UserPrometheusPort(id))
	}
	return promCfg
}

// WritePrometheusConfig writes PrometheusConfig as YAML to path.
func (cfg *Config) WritePrometheusConfig(path string) error {
	data, err := yaml.Marshal(cfg.PrometheusConfig())
	if err != nil {
		return errors.Wrap(err, "config.WritePrometheusConfig(): failed to marshal prometheus config")
	}

	if err = os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "config.WritePrometheusConfig(): failed to write prometheus config")
	}

	slog.Info("prometheus config written to file", "path", path)
	return nil
}
