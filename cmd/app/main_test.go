package main

import (
	"strings"
	"testing"
	"time"

	"shotlocator/internal/domain/tdoa"
)

func validConfig() Config {
	return Config{
		Detection:     tdoa.DefaultSettings(),
		BucketQuantum: time.Second,
		Workers:       4,
		QueueSize:     256,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unbuffered queue", func(c *Config) { c.QueueSize = 0 }, ""},
		{"wider bucket", func(c *Config) { c.BucketQuantum = 2 * time.Second }, ""},
		{"quorum below three", func(c *Config) { c.Detection.Quorum = 2 }, "QUORUM"},
		{"bucket shorter than tolerance", func(c *Config) { c.BucketQuantum = 250 * time.Millisecond }, "BUCKET_QUANTUM"},
		{"zero tolerance", func(c *Config) { c.Detection.TimeTolerance = 0 }, "TIME_TOLERANCE"},
		{"no workers", func(c *Config) { c.Workers = 0 }, "WORKERS"},
		{"negative queue", func(c *Config) { c.QueueSize = -1 }, "QUEUE_SIZE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected an error naming %s, got %v", tt.wantErr, err)
			}
		})
	}
}
