package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. It is built in two phases:
// raw values are read from file and environment, then secrets are resolved
// through the secret chain. The returned value is never mutated afterward.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Session  SessionConfig  `mapstructure:"session"`
	Provider ProviderConfig `mapstructure:"provider"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionConfig selects the store backend at deployment time
type SessionConfig struct {
	Store string        `mapstructure:"store"` // "memory" or "redis"
	TTL   time.Duration `mapstructure:"ttl"`
}

type ProviderConfig struct {
	Default string        `mapstructure:"default"`
	Timeout time.Duration `mapstructure:"timeout"`
	Claude  ClaudeConfig  `mapstructure:"claude"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
}

type ClaudeConfig struct {
	OAuthToken   string `mapstructure:"oauth_token"`
	DefaultModel string `mapstructure:"default_model"`
}

type GeminiConfig struct {
	AuthPath     string `mapstructure:"auth_path"`
	DefaultModel string `mapstructure:"default_model"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment, then resolves secrets
func Load() (*Config, error) {
	v := viper.New()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file; defaults and env vars apply
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	resolveSecrets(&cfg, defaultSecretSource())

	if cfg.Session.Store != "memory" && cfg.Session.Store != "redis" {
		return nil, fmt.Errorf("invalid session store %q: must be memory or redis", cfg.Session.Store)
	}

	return &cfg, nil
}

// resolveSecrets fills credential fields left empty by the raw load. This is
// the second phase of the build; the config has not been handed out yet.
func resolveSecrets(cfg *Config, secrets SecretSource) {
	if cfg.Provider.Claude.OAuthToken == "" {
		if token, ok := secrets.Get("CLAUDE_CODE_OAUTH_TOKEN"); ok {
			cfg.Provider.Claude.OAuthToken = token
		}
	}
	if cfg.Provider.Gemini.AuthPath == "" {
		if path, ok := secrets.Get("GEMINI_AUTH_PATH"); ok {
			cfg.Provider.Gemini.AuthPath = path
		}
	}
	if cfg.Redis.Password == "" {
		if password, ok := secrets.Get("REDIS_PASSWORD"); ok {
			cfg.Redis.Password = password
		}
	}
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "300s") // streaming responses outlive normal writes
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Session
	v.SetDefault("session.store", "memory")
	v.SetDefault("session.ttl", "1h")

	// Providers
	v.SetDefault("provider.default", "claude")
	v.SetDefault("provider.timeout", "120s")
	v.SetDefault("provider.claude.default_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("provider.gemini.default_model", "gemini-2.5-pro")

	// Security
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests_per_minute", 60)
	v.SetDefault("security.rate_limit.burst", 10)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("session.store", "SESSION_STORE")
	v.BindEnv("session.ttl", "SESSION_TTL")
	v.BindEnv("provider.default", "DEFAULT_PROVIDER")
	v.BindEnv("provider.claude.default_model", "CLAUDE_DEFAULT_MODEL")
	v.BindEnv("provider.gemini.default_model", "GEMINI_DEFAULT_MODEL")
	v.BindEnv("logging.level", "LOG_LEVEL")
}
