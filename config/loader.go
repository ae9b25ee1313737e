package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file. Environment variables in
// the file body are expanded before parsing, so DSNs and passwords can
// stay out of the file itself.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg AppConfig
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Resolver.TTL == 0 {
		c.Resolver.TTL = 10 * time.Minute
	}
	if c.Resolver.KeyPrefix == "" {
		c.Resolver.KeyPrefix = "tenant:"
	}
	if c.Audit.Capacity == 0 {
		c.Audit.Capacity = 1024
	}
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = 100
	}
	if c.Audit.FlushInterval == 0 {
		c.Audit.FlushInterval = 5 * time.Second
	}
}
