// Package config loads toolkit configuration from file and environment and
// bootstraps the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Envirofacts EnvirofactsConfig `yaml:"envirofacts" mapstructure:"envirofacts"`
	Geocoder    GeocoderConfig    `yaml:"geocoder" mapstructure:"geocoder"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// EnvirofactsConfig configures the table-retrieval client.
type EnvirofactsConfig struct {
	BaseURL  string  `yaml:"base_url" mapstructure:"base_url"`
	Retries  int     `yaml:"retries" mapstructure:"retries"`
	PoolSize int     `yaml:"pool_size" mapstructure:"pool_size"`
	RPS      float64 `yaml:"rps" mapstructure:"rps"`
}

// GeocoderConfig configures the Nominatim client.
type GeocoderConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("envirofacts.base_url", "https://data.epa.gov/efservice")
	v.SetDefault("envirofacts.retries", 3)
	v.SetDefault("envirofacts.pool_size", 0) // 0 = cores minus a margin
	v.SetDefault("envirofacts.rps", 10)
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocoder.max_attempts", 5)
	v.SetDefault("geocoder.user_agent", "tri-cli/1.0")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
