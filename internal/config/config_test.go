package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                "development",
		Port:               "8080",
		DBDriver:           "postgres",
		DBPassword:         "secure-password",
		DBSSLMode:          "require",
		DBRetryAttempts:    5,
		DBCommandTimeout:   180 * time.Second,
		SessionSecret:      "secure-secret-at-least-32-chars-long",
		SessionIdleTimeout: 30 * time.Minute,
		MaxUploadSizeMB:    10,
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing port", func(c *Config) { c.Port = "" }},
		{"unknown driver", func(c *Config) { c.DBDriver = "oracle" }},
		{"zero retry attempts", func(c *Config) { c.DBRetryAttempts = 0 }},
		{"too many retry attempts", func(c *Config) { c.DBRetryAttempts = 9 }},
		{"no command timeout", func(c *Config) { c.DBCommandTimeout = 0 }},
		{"default secret in production", func(c *Config) {
			c.Env = "production"
			c.SessionSecret = defaultSessionSecret
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadConfig_DefaultsAndNormalization(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_DRIVER", "  SQLITE ")
	t.Setenv("PUBLIC_BASE_URL", "https://blog.example.com/")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "https://blog.example.com", c.PublicBaseURL)
	assert.Equal(t, uint(5), c.DBRetryAttempts)
	assert.Equal(t, 5*time.Second, c.DBRetryMaxDelay)
	assert.Equal(t, 180*time.Second, c.DBCommandTimeout)
	assert.Equal(t, 30*time.Minute, c.SessionIdleTimeout)
	assert.Equal(t, time.Hour, c.PasswordResetTTL)
}
