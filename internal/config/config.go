// Package config provides configuration management for mediabridge using Viper.
// Values come from defaults, an optional config file and MEDIABRIDGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort        = 8096
	defaultServerTimeout     = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultMaxOpenConns      = 25
	defaultMaxIdleConns      = 10
	defaultConnMaxIdleTime   = 30 * time.Minute
	defaultBackendTimeout    = 20 * time.Second
	defaultMaxBitrate        = 20_000_000
	defaultProxyBufferSize   = 32 * 1024
	defaultProxyConnect      = 20 * time.Second
	defaultMaxPlaylistSize   = 4 * 1024 * 1024
	defaultSessionTTL        = 30 * time.Minute
	defaultSweepSchedule     = "*/5 * * * *"
	defaultSiblingScanLimit  = 50
	defaultPlaceholderWidth  = 400
	defaultPlaceholderHeight = 225
	defaultLoginRate         = 1.0
	defaultLoginBurst        = 5
	defaultCircuitThreshold  = 5
	defaultCircuitReset      = 30 * time.Second

	// Adapter calls use a fixed timeout inside this window.
	MinBackendTimeout = 15 * time.Second
	MaxBackendTimeout = 30 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server         ServerConfig         `mapstructure:"server" yaml:"server"`
	Database       DatabaseConfig       `mapstructure:"database" yaml:"database"`
	Logging        LoggingConfig        `mapstructure:"logging" yaml:"logging"`
	Backend        BackendConfig        `mapstructure:"backend" yaml:"backend"`
	Auth           AuthConfig           `mapstructure:"auth" yaml:"auth"`
	Playback       PlaybackConfig       `mapstructure:"playback" yaml:"playback"`
	Proxy          ProxyConfig          `mapstructure:"proxy" yaml:"proxy"`
	Sessions       SessionsConfig       `mapstructure:"sessions" yaml:"sessions"`
	Images         ImagesConfig         `mapstructure:"images" yaml:"images"`
	Telemetry      TelemetryConfig      `mapstructure:"telemetry" yaml:"telemetry"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host        string        `mapstructure:"host" yaml:"host"`
	Port        int           `mapstructure:"port" yaml:"port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	// WriteTimeout of zero leaves relayed streams uncapped.
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"`
	// Requests logs every HTTP request, not only failures.
	Requests bool `mapstructure:"requests" yaml:"requests"`
}

// BackendConfig controls how mediabridge identifies itself to media servers.
type BackendConfig struct {
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ClientName string        `mapstructure:"client_name" yaml:"client_name"`
	DeviceName string        `mapstructure:"device_name" yaml:"device_name"`
	// DeviceID is generated and persisted on first start when empty.
	DeviceID string `mapstructure:"device_id" yaml:"device_id"`
}

// AuthConfig throttles login attempts per origin address.
type AuthConfig struct {
	LoginRate  float64 `mapstructure:"login_rate" yaml:"login_rate"` // attempts per second
	LoginBurst int     `mapstructure:"login_burst" yaml:"login_burst"`
}

// PlaybackConfig holds stream planning preferences.
type PlaybackConfig struct {
	PreferredLanguages []string `mapstructure:"preferred_languages" yaml:"preferred_languages"`
	MaxBitrate         int      `mapstructure:"max_bitrate" yaml:"max_bitrate"`
	Containers         []string `mapstructure:"containers" yaml:"containers"`
	VideoCodecs        []string `mapstructure:"video_codecs" yaml:"video_codecs"`
	AudioCodecs        []string `mapstructure:"audio_codecs" yaml:"audio_codecs"`
	// PositionalFallback picks the second audio track when no track carries language metadata.
	PositionalFallback bool `mapstructure:"positional_fallback" yaml:"positional_fallback"`
}

// ProxyConfig holds byte relay configuration.
type ProxyConfig struct {
	BufferSize      int           `mapstructure:"buffer_size" yaml:"buffer_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	MaxPlaylistSize int64         `mapstructure:"max_playlist_size" yaml:"max_playlist_size"`
}

// SessionsConfig holds active session bookkeeping configuration.
type SessionsConfig struct {
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
	SweepSchedule string        `mapstructure:"sweep_schedule" yaml:"sweep_schedule"`
	CookieName    string        `mapstructure:"cookie_name" yaml:"cookie_name"`
	CookieSecure  bool          `mapstructure:"cookie_secure" yaml:"cookie_secure"`
}

// ImagesConfig holds image resolution configuration.
type ImagesConfig struct {
	SiblingScanLimit  int `mapstructure:"sibling_scan_limit" yaml:"sibling_scan_limit"`
	PlaceholderWidth  int `mapstructure:"placeholder_width" yaml:"placeholder_width"`
	PlaceholderHeight int `mapstructure:"placeholder_height" yaml:"placeholder_height"`
}

// TelemetryConfig holds metrics and tracing configuration.
type TelemetryConfig struct {
	MetricsEnabled bool   `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name" yaml:"service_name"`
}

// CircuitBreakerConfig holds the backend circuit breaker defaults.
type CircuitBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout" yaml:"reset_timeout"`
	HalfOpenMax      int           `mapstructure:"half_open_max" yaml:"half_open_max"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Example: MEDIABRIDGE_SERVER_PORT=8096.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mediabridge")
		v.AddConfigPath("$HOME/.mediabridge")
	}

	v.SetEnvPrefix("MEDIABRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "mediabridge.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
	v.SetDefault("logging.requests", false)

	v.SetDefault("backend.timeout", defaultBackendTimeout)
	v.SetDefault("backend.client_name", "mediabridge")
	v.SetDefault("backend.device_name", "mediabridge")
	v.SetDefault("backend.device_id", "")

	v.SetDefault("auth.login_rate", defaultLoginRate)
	v.SetDefault("auth.login_burst", defaultLoginBurst)

	v.SetDefault("playback.preferred_languages", []string{})
	v.SetDefault("playback.max_bitrate", defaultMaxBitrate)
	v.SetDefault("playback.containers", []string{"mp4", "m4v", "mkv", "webm"})
	v.SetDefault("playback.video_codecs", []string{"h264", "hevc", "vp9", "av1"})
	v.SetDefault("playback.audio_codecs", []string{"aac", "mp3", "opus", "flac", "ac3", "eac3"})
	v.SetDefault("playback.positional_fallback", true)

	v.SetDefault("proxy.buffer_size", defaultProxyBufferSize)
	v.SetDefault("proxy.connect_timeout", defaultProxyConnect)
	v.SetDefault("proxy.max_playlist_size", defaultMaxPlaylistSize)

	v.SetDefault("sessions.ttl", defaultSessionTTL)
	v.SetDefault("sessions.sweep_schedule", defaultSweepSchedule)
	v.SetDefault("sessions.cookie_name", "mediabridge_session")
	v.SetDefault("sessions.cookie_secure", false)

	v.SetDefault("images.sibling_scan_limit", defaultSiblingScanLimit)
	v.SetDefault("images.placeholder_width", defaultPlaceholderWidth)
	v.SetDefault("images.placeholder_height", defaultPlaceholderHeight)

	v.SetDefault("telemetry.metrics_enabled", true)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "mediabridge")

	v.SetDefault("circuit_breaker.failure_threshold", defaultCircuitThreshold)
	v.SetDefault("circuit_breaker.reset_timeout", defaultCircuitReset)
	v.SetDefault("circuit_breaker.half_open_max", 1)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Backend.Timeout < MinBackendTimeout || c.Backend.Timeout > MaxBackendTimeout {
		return fmt.Errorf("backend.timeout must be between %s and %s", MinBackendTimeout, MaxBackendTimeout)
	}
	if c.Playback.MaxBitrate < 0 {
		return fmt.Errorf("playback.max_bitrate must not be negative")
	}
	if c.Proxy.BufferSize < 1024 {
		return fmt.Errorf("proxy.buffer_size must be at least 1024 bytes")
	}
	if c.Proxy.ConnectTimeout <= 0 {
		return fmt.Errorf("proxy.connect_timeout must be positive")
	}
	if c.Sessions.TTL <= 0 {
		return fmt.Errorf("sessions.ttl must be positive")
	}
	if c.Sessions.SweepSchedule == "" {
		return fmt.Errorf("sessions.sweep_schedule is required")
	}
	if c.Sessions.CookieName == "" {
		return fmt.Errorf("sessions.cookie_name is required")
	}
	if c.Images.SiblingScanLimit < 0 || c.Images.SiblingScanLimit > defaultSiblingScanLimit {
		return fmt.Errorf("images.sibling_scan_limit must be between 0 and %d", defaultSiblingScanLimit)
	}
	if c.Auth.LoginRate <= 0 || c.Auth.LoginBurst < 1 {
		return fmt.Errorf("auth.login_rate must be positive and auth.login_burst at least 1")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
