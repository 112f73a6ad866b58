package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Broker struct {
		// Transport selects the live engine: "ws" for the persistent
		// connection, "http" for the stateless fallback.
		Transport    string `yaml:"transport"`
		WSEndpoint   string `yaml:"ws_endpoint"`
		RESTEndpoint string `yaml:"rest_endpoint"`
		// Mode is the default execution mode when an order does not
		// carry one: "paper" or "live".
		Mode string `yaml:"mode"`
	} `yaml:"broker"`
	Paper struct {
		StartingCash float64 `yaml:"starting_cash"`
	} `yaml:"paper"`
	Confirm struct {
		TTLMinutes int `yaml:"ttl_minutes"`
	} `yaml:"confirm"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

// envOverrides carries the environment keys the original deployment used.
// Any that are set win over the YAML file.
type envOverrides struct {
	BrokerWSURL   string `envconfig:"MCP_BROKER_URL"`
	BrokerHTTPURL string `envconfig:"MCP_BROKER_HTTP_URL"`
	BrokerEnv     string `envconfig:"BROKER_ENV"`
}

// Load reads the YAML config file, then applies .env / environment
// overrides on top of it.
func Load(path string) (*Config, error) {
	cfg := defaults()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if env.BrokerWSURL != "" {
		cfg.Broker.WSEndpoint = env.BrokerWSURL
	}
	if env.BrokerHTTPURL != "" {
		cfg.Broker.RESTEndpoint = env.BrokerHTTPURL
	}
	if env.BrokerEnv != "" {
		cfg.Broker.Mode = env.BrokerEnv
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Broker.Transport = "ws"
	cfg.Broker.WSEndpoint = "ws://localhost:8080/mcp"
	cfg.Broker.RESTEndpoint = "http://localhost:8080/api"
	cfg.Broker.Mode = "paper"
	cfg.Paper.StartingCash = 100000
	cfg.Confirm.TTLMinutes = 60
	cfg.Storage.Path = "broker.db"
	cfg.Logging.Level = "info"
	cfg.Server.Port = 8090
	return cfg
}

func validate(cfg *Config) error {
	switch cfg.Broker.Mode {
	case "paper", "live":
	default:
		return fmt.Errorf("broker.mode must be paper or live, got %q", cfg.Broker.Mode)
	}
	switch cfg.Broker.Transport {
	case "ws", "http":
	default:
		return fmt.Errorf("broker.transport must be ws or http, got %q", cfg.Broker.Transport)
	}
	if cfg.Paper.StartingCash <= 0 {
		return fmt.Errorf("paper.starting_cash must be positive")
	}
	if cfg.Confirm.TTLMinutes <= 0 {
		return fmt.Errorf("confirm.ttl_minutes must be positive")
	}
	return nil
}
