// Package config loads the tracker daemon configuration: a YAML file,
// overridden by TRACKER_* environment variables, then validated.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// URL, SlotName and Password override the persisted connection settings
	// when set.
	URL      string `yaml:"url" env:"TRACKER_URL" validate:"omitempty,url"`
	SlotName string `yaml:"slot_name" env:"TRACKER_SLOT_NAME" validate:"omitempty,max=16"`
	Password string `yaml:"password" env:"TRACKER_PASSWORD"`

	DataDir     string `yaml:"data_dir" env:"TRACKER_DATA_DIR" validate:"required"`
	CatalogPath string `yaml:"catalog_path" env:"TRACKER_CATALOG"`
	RulesPath   string `yaml:"rules_path" env:"TRACKER_RULES"`
	WatchRules  bool   `yaml:"watch_rules" env:"TRACKER_WATCH_RULES"`

	AllowSequenceBreaks bool `yaml:"allow_sequence_breaks" env:"TRACKER_ALLOW_SEQUENCE_BREAKS"`
	AutoConnect         bool `yaml:"auto_connect" env:"TRACKER_AUTO_CONNECT"`

	RetryInterval time.Duration `yaml:"retry_interval" env:"TRACKER_RETRY_INTERVAL" validate:"gt=0"`
	MaxRetries    int           `yaml:"max_retries" env:"TRACKER_MAX_RETRIES" validate:"gte=1,lte=1000"`

	MetricsAddr string `yaml:"metrics_addr" env:"TRACKER_METRICS_ADDR" validate:"omitempty,hostname_port"`
}

func Default() Config {
	return Config{
		DataDir:             "./data",
		AllowSequenceBreaks: true,
		AutoConnect:         true,
		RetryInterval:       5 * time.Second,
		MaxRetries:          10,
	}
}

var validate = validator.New()

// Load reads path (when non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("config: %s failed %q", f.Field(), f.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
