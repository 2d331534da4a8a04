package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_EnvSubstitution(t *testing.T) {
	// Setup env var
	os.Setenv("TEST_PLACEMENT_PASSWORD", "s3cret")
	defer os.Unsetenv("TEST_PLACEMENT_PASSWORD")

	// Create temp config file
	configContent := `
placement:
  auth_url: http://keystone:5000/v3
  username: nodepulse
  password: ${TEST_PLACEMENT_PASSWORD}
  region: RegionOne
`
	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write([]byte(configContent)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()

	// Load config
	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Placement.Password != "s3cret" {
		t.Errorf("Expected password s3cret, got %s", cfg.Placement.Password)
	}
}

func TestLoad_ParsesReportInterval(t *testing.T) {
	configContent := `
report:
  interval: 30s
`
	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write([]byte(configContent)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Report.IntervalDuration != 30*time.Second {
		t.Errorf("Expected 30s interval, got %v", cfg.Report.IntervalDuration)
	}
}

func TestLoad_Defaults(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Report.IntervalDuration == 0 {
		t.Error("Expected non-zero default report interval")
	}
	if cfg.Placement.ServiceType != "placement" {
		t.Errorf("Expected default service type placement, got %s", cfg.Placement.ServiceType)
	}
}
