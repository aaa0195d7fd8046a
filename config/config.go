package config

import (
	"fmt"
	"os"
	"time"

	"github.com/HannahMarsh/simple-onion-routing/internal/onion"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

// DefaultPath is where NewConfig looks when no path is given.
const DefaultPath = "config/config.yml"

const (
	StoreMemory   = "memory"
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

type Store struct {
	Driver      string `yaml:"driver" env:"ONION_STORE_DRIVER" env-default:"memory"`
	BoltPath    string `yaml:"bolt_path" env:"ONION_BOLT_PATH" env-default:"directory.db"`
	PostgresDSN string `yaml:"postgres_dsn" env:"ONION_POSTGRES_DSN"`
}

type Directory struct {
	Host           string `yaml:"host" env:"ONION_DIRECTORY_HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"ONION_DIRECTORY_PORT" env-default:"8080"`
	PrometheusPort int    `yaml:"prometheus_port" env:"ONION_DIRECTORY_PROMETHEUS_PORT" env-default:"0"`
	Store          Store  `yaml:"store"`
	Address        string `yaml:"-"`
}

type Metrics struct {
	// Zero disables the /metrics endpoint of that kind of party.
	BaseRelayPort int `yaml:"base_relay_port" env:"ONION_METRICS_BASE_RELAY_PORT" env-default:"0"`
	BaseUserPort  int `yaml:"base_user_port" env:"ONION_METRICS_BASE_USER_PORT" env-default:"0"`
}

type Config struct {
	Host              string        `yaml:"host" env:"ONION_HOST" env-default:"localhost"`
	Directory         Directory     `yaml:"directory"`
	BaseRelayPort     int           `yaml:"base_relay_port" env:"ONION_BASE_RELAY_PORT" env-default:"4000"`
	BaseUserPort      int           `yaml:"base_user_port" env:"ONION_BASE_USER_PORT" env-default:"3000"`
	NumRelays         int           `yaml:"num_relays" env:"ONION_NUM_RELAYS" env-default:"10"`
	NumUsers          int           `yaml:"num_users" env:"ONION_NUM_USERS" env-default:"2"`
	Metrics           Metrics       `yaml:"metrics"`
	DirectoryCacheTTL time.Duration `yaml:"directory_cache_ttl" env:"ONION_DIRECTORY_CACHE_TTL" env-default:"2s"`
	SendTimeout       time.Duration `yaml:"send_timeout" env:"ONION_SEND_TIMEOUT" env-default:"30s"`
	LogLevel          string        `yaml:"log_level" env:"ONION_LOG_LEVEL" env-default:"info"`
}

// NewConfig reads the YAML file at path, then applies environment overrides.
// An empty path means DefaultPath if that file exists, otherwise defaults and environment only.
func NewConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "config.NewConfig(): failed to read %s", path)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, errors.Wrap(err, "config.NewConfig(): failed to read environment")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.Directory.Address = fmt.Sprintf("http://%s:%d", cfg.Directory.Host, cfg.Directory.Port)
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.NumRelays < onion.CircuitLength {
		return errors.Errorf("config.validate(): num_relays is %d, a circuit needs %d", cfg.NumRelays, onion.CircuitLength)
	}
	if cfg.NumUsers < 0 {
		return errors.Errorf("config.validate(): num_users is %d", cfg.NumUsers)
	}
	// addresses are told apart only by port range
	if cfg.NumUsers > 0 &&
		cfg.BaseRelayPort < cfg.BaseUserPort+cfg.NumUsers &&
		cfg.BaseUserPort < cfg.BaseRelayPort+cfg.NumRelays {
		return errors.Errorf("config.validate(): relay ports [%d, %d) overlap user ports [%d, %d)",
			cfg.BaseRelayPort, cfg.BaseRelayPort+cfg.NumRelays, cfg.BaseUserPort, cfg.BaseUserPort+cfg.NumUsers)
	}
	switch cfg.Directory.Store.Driver {
	case StoreMemory, StoreBolt:
	case StorePostgres:
		if cfg.Directory.Store.PostgresDSN == "" {
			return errors.New("config.validate(): the postgres store needs postgres_dsn")
		}
	default:
		return errors.Errorf("config.validate(): unknown store driver %q", cfg.Directory.Store.Driver)
	}
	return nil
}

// Ports returns the overlay's address scheme.
func (cfg *Config) Ports() onion.PortMap {
	return onion.PortMap{
		BaseRelayPort: cfg.BaseRelayPort,
		BaseUserPort:  cfg.BaseUserPort,
		NumRelays:     cfg.NumRelays,
		NumUsers:      cfg.NumUsers,
	}
}

func (cfg *Config) RelayAddress(id int) string {
	return fmt.Sprintf("http://%s:%d", cfg.Host, cfg.BaseRelayPort+id)
}

func (cfg *Config) UserAddress(id int) string {
	return fmt.Sprintf("http://%s:%d", cfg.Host, cfg.BaseUserPort+id)
}

// RelayPrometheusPort returns 0 when relay metrics are disabled.
func (cfg *Config) RelayPrometheusPort(id int) int {
	if cfg.Metrics.BaseRelayPort == 0 {
		return 0
	}
	return cfg.Metrics.BaseRelayPort + id
}

// UserPrometheusPort returns 0 when user metrics are disabled.
func (cfg *Config) UserPrometheusPort(id int) int {
	if cfg.Metrics.BaseUserPort == 0 {
		return 0
	}
	return cfg.Metrics.BaseUserPort + id
}
