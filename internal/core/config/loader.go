package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Report.Interval == "" {
		cfg.Report.IntervalDuration = 60 * time.Second
	} else {
		d, err := time.ParseDuration(cfg.Report.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid report interval %q: %w", cfg.Report.Interval, err)
		}
		cfg.Report.IntervalDuration = d
	}
	if cfg.Placement.ServiceType == "" {
		cfg.Placement.ServiceType = "placement"
	}
	if cfg.Node.DataDir == "" {
		cfg.Node.DataDir = "/var/lib/nodepulse"
	}
	if cfg.Node.IdentityFile == "" {
		cfg.Node.IdentityFile = cfg.Node.DataDir + "/node_uuid"
	}

	return &cfg, nil
}
