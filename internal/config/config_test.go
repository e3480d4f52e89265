package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                "development",
		JWTSecret:          "secure-secret-at-least-32-chars-long",
		DBPassword:         "secure-password",
		DBDriver:           "postgres",
		DBSSLMode:          "require",
		Port:               "8080",
		RequestTimeout:     5 * time.Second,
		MutationMaxRetries: 3,
		SchedulerEnabled:   true,
		SchedulerInterval:  30 * time.Second,
		SchedulerBatchSize: 100,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid development", func(_ *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"sqlite in development", func(c *Config) { c.DBDriver = "sqlite" }, false},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"zero retries", func(c *Config) { c.MutationMaxRetries = 0 }, true},
		{"scheduler without interval", func(c *Config) { c.SchedulerInterval = 0 }, true},
		{"disabled scheduler without interval", func(c *Config) {
			c.SchedulerEnabled = false
			c.SchedulerInterval = 0
		}, false},
		{"production default secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = "your-secret-key-change-in-production"
		}, true},
		{"production short secret", func(c *Config) {
			c.Env = "prod"
			c.JWTSecret = "short"
		}, true},
		{"production sqlite", func(c *Config) {
			c.Env = "production"
			c.DBDriver = "sqlite"
		}, true},
		{"production weak db password", func(c *Config) {
			c.Env = "production"
			c.DBPassword = "password"
		}, true},
		{"production ok", func(c *Config) { c.Env = "production" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("REQUEST_TIMEOUT", "750ms")
	t.Setenv("SCHEDULER_INTERVAL", "2m")
	t.Setenv("MUTATION_MAX_RETRIES", "5")

	c, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, 750*time.Millisecond, c.RequestTimeout)
	assert.Equal(t, 2*time.Minute, c.SchedulerInterval)
	assert.Equal(t, 5, c.MutationMaxRetries)
	assert.Equal(t, "8375", c.Port)
	assert.False(t, c.IsProduction())
}
