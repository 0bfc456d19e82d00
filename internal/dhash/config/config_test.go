package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, time.Minute, cfg.Replication.Interval())
	assert.Equal(t, 30*time.Second, cfg.Replication.RefreshInterval())
	assert.Equal(t, 3, cfg.Replication.Replicas)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no replicas", func(c *Config) { c.Replication.Replicas = 0 }},
		{"zero interval", func(c *Config) { c.Replication.IntervalMS = 0 }},
		{"bad shape", func(c *Config) { c.Merkle.Bits = 0 }},
		{"unknown kind", func(c *Config) { c.Blocks.Kind = "crdt" }},
		{"unknown engine", func(c *Config) { c.Storage.Engine = "rocks" }},
		{"unknown clock", func(c *Config) { c.Blocks.VersionClock = "ntp" }},
		{"no port", func(c *Config) { c.Server.Port = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingDefaultFallsBack(t *testing.T) {
	t.Setenv("ENV", "does-not-exist")
	cfg, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_MissingExplicitPathFails(t *testing.T) {
	_, err := Load("/nonexistent/dhash.yaml")
	assert.Error(t, err)
}
