package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the Sitebridge backend.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Remote     RemoteConfig     `mapstructure:"remote"`
	Features   FeatureConfig    `mapstructure:"features"`
	Assistant  AssistantConfig  `mapstructure:"assistant"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int             `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles request rates per client IP.
type RateLimitConfig struct {
	PerMinute      int `mapstructure:"per_minute"`
	LoginPerMinute int `mapstructure:"login_per_minute"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// AuthConfig captures both identity realms and session behaviour.
type AuthConfig struct {
	Admin   AdminConfig     `mapstructure:"admin"`
	Session SessionSettings `mapstructure:"session"`
	// EncryptionKey protects delegated credentials at rest (hex or
	// base64, 32 bytes decoded). Generated and persisted on first start
	// when unset.
	EncryptionKey string `mapstructure:"encryption_key"`
}

// AdminConfig defines the static admin realm. With no users configured the
// realm is effectively disabled.
type AdminConfig struct {
	AccessCode string `mapstructure:"access_code"`
	// Users maps admin usernames to bcrypt password hashes.
	Users map[string]string `mapstructure:"users"`
}

// SessionSettings configures bearer session lifetimes.
type SessionSettings struct {
	TTL              time.Duration `mapstructure:"ttl"`
	RefreshThreshold time.Duration `mapstructure:"refresh_threshold"`
	TokenLength      int           `mapstructure:"token_length"`
}

// RemoteConfig tunes the remote ERP client.
type RemoteConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	ClientTag string        `mapstructure:"client_tag"`
	// Classifier overrides the built-in failure signal rules.
	Classifier []ClassifierRuleConfig `mapstructure:"classifier"`
}

// ClassifierRuleConfig maps a failure signal substring to a failure kind
// (invalid_credentials, unavailable, generic).
type ClassifierRuleConfig struct {
	Contains string `mapstructure:"contains"`
	Kind     string `mapstructure:"kind"`
}

// FeatureConfig holds the system-wide default feature flags that org and
// company overlays build on.
type FeatureConfig struct {
	Defaults map[string]bool `mapstructure:"defaults"`
}

// AssistantConfig tunes the AI helpdesk completer.
type AssistantConfig struct {
	Model      string `mapstructure:"model"`
	MaxHistory int    `mapstructure:"max_history"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("SITEBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.rate_limit.per_minute", 100)
	v.SetDefault("server.rate_limit.login_per_minute", 10)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/sitebridge.sqlite")

	v.SetDefault("auth.admin.access_code", "")
	v.SetDefault("auth.session.ttl", "8h")
	v.SetDefault("auth.session.refresh_threshold", "20m")
	v.SetDefault("auth.session.token_length", 48)

	v.SetDefault("remote.timeout", "30s")
	v.SetDefault("remote.client_tag", "sitebridge")

	v.SetDefault("features.defaults", map[string]bool{
		"projects.read":   true,
		"projects.backup": false,
		"ai.helpdesk":     false,
	})

	v.SetDefault("assistant.model", "")
	v.SetDefault("assistant.max_history", 20)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
