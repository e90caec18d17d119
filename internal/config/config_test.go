package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8096},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "test.db",
		},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Backend:  BackendConfig{Timeout: 20 * time.Second},
		Auth:     AuthConfig{LoginRate: 1, LoginBurst: 5},
		Proxy:    ProxyConfig{BufferSize: 32 * 1024, ConnectTimeout: 20 * time.Second},
		Sessions: SessionsConfig{TTL: 30 * time.Minute, SweepSchedule: "*/5 * * * *", CookieName: "s"},
		Images:   ImagesConfig{SiblingScanLimit: 50},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8096, cfg.Server.Port)
	assert.Equal(t, time.Duration(0), cfg.Server.WriteTimeout)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "mediabridge.db", cfg.Database.DSN)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, 20*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, 50, cfg.Images.SiblingScanLimit)
	assert.True(t, cfg.Playback.PositionalFallback)
	assert.Contains(t, cfg.Playback.AudioCodecs, "aac")
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
playback:
  preferred_languages: [spa, en]
sessions:
  ttl: 10m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"spa", "en"}, cfg.Playback.PreferredLanguages)
	assert.Equal(t, 10*time.Minute, cfg.Sessions.TTL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MEDIABRIDGE_SERVER_PORT", "9100")
	t.Setenv("MEDIABRIDGE_BACKEND_TIMEOUT", "25s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 25*time.Second, cfg.Backend.Timeout)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port too low", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }, "database.driver"},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"backend timeout too short", func(c *Config) { c.Backend.Timeout = 5 * time.Second }, "backend.timeout"},
		{"backend timeout too long", func(c *Config) { c.Backend.Timeout = time.Minute }, "backend.timeout"},
		{"tiny buffer", func(c *Config) { c.Proxy.BufferSize = 16 }, "proxy.buffer_size"},
		{"zero ttl", func(c *Config) { c.Sessions.TTL = 0 }, "sessions.ttl"},
		{"scan limit too high", func(c *Config) { c.Images.SiblingScanLimit = 51 }, "images.sibling_scan_limit"},
		{"no login burst", func(c *Config) { c.Auth.LoginBurst = 0 }, "auth.login_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 8096}
	assert.Equal(t, "127.0.0.1:8096", cfg.Address())
}
