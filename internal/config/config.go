package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server       ServerConfig
	Finnhub      BackendConfig
	AlphaVantage BackendConfig
	Retry        RetryConfig
	Settings     SettingsConfig
	Logging      LoggingConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// HTTPTimeout bounds one outbound request to an upstream API.
	HTTPTimeout time.Duration
}

// BackendConfig holds the settings of one live upstream backend
type BackendConfig struct {
	Enabled bool
	APIKey  string
}

// RetryConfig holds the retry policy applied to upstream calls
type RetryConfig struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64
}

// SettingsConfig holds the persistent settings store location
type SettingsConfig struct {
	Path string
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads the configuration from an optional file and from
// MARKETDATA_* environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		// The file is optional; defaults and env cover the rest.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("MARKETDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.idleTimeout", "120s")
	v.SetDefault("server.httpTimeout", "15s")

	// Backend defaults: both live backends stay off until a key arrives
	v.SetDefault("finnhub.enabled", true)
	v.SetDefault("finnhub.apiKey", "")
	v.SetDefault("alphavantage.enabled", true)
	v.SetDefault("alphavantage.apiKey", "")

	// Retry defaults
	v.SetDefault("retry.maxRetries", 2)
	v.SetDefault("retry.baseDelay", "500ms")
	v.SetDefault("retry.maxDelay", "5s")
	v.SetDefault("retry.jitterFraction", 0.2)

	// Settings store defaults
	v.SetDefault("settings.path", "marketdata.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
