package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the global application configuration
var Config AppConfig

// LoadAppConfig loads and validates the application configuration from config.yml
func LoadAppConfig() error {
	return LoadAppConfigFrom("config.yml")
}

// LoadAppConfigFrom loads and validates the configuration from the given path.
func LoadAppConfigFrom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return err
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 16181
	}
	if cfg.Tracking.JanitorIntervalS == 0 {
		cfg.Tracking.JanitorIntervalS = 60
	}
	Config = cfg
	return nil
}
