package config

import (
	"time"

	redisclient "github.com/nodepulse/nodepulse/internal/infra/redis"
	"github.com/nodepulse/nodepulse/internal/infra/session"
	"github.com/nodepulse/nodepulse/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Node      NodeConfig         `yaml:"node"`
	Placement session.Config     `yaml:"placement"`
	Report    ReportConfig       `yaml:"report"`
	Redis     redisclient.Config `yaml:"redis"`
	Database  postgres.Config    `yaml:"database"`
	Logging   LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// NodeConfig identifies the compute node this agent reports for.
type NodeConfig struct {
	UUID         string `yaml:"uuid"`          // empty = load/generate via identity_file
	Hostname     string `yaml:"hostname"`      // empty = os.Hostname
	DataDir      string `yaml:"data_dir"`      // disk stats are measured here
	IdentityFile string `yaml:"identity_file"` // where a generated uuid is persisted
}

// ReportConfig controls the periodic report loop.
type ReportConfig struct {
	Interval string `yaml:"interval"` // e.g. "60s"

	// IntervalDuration is parsed from Interval during Load.
	IntervalDuration time.Duration `yaml:"-"`
}
