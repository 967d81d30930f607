package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and, when present, a
// config.yaml in the working directory. Environment variables use the MUSE_
// prefix with underscores for nesting (MUSE_DATABASE_URL, MUSE_SERVER_PORT)
// and take precedence over file values.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; env vars and defaults carry the load.
	}

	v.SetEnvPrefix("MUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values for all optional settings.
// Required secrets (database URL, JWT secret, API keys) have no defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("auth.token_lifetime_hours", 24)

	v.SetDefault("worker.concurrency", 3)
	v.SetDefault("worker.poll_interval", 5*time.Second)
	v.SetDefault("worker.provider_rate_per_minute", 50)
	v.SetDefault("worker.stale_after", 5*time.Minute)
	v.SetDefault("worker.reclaim_interval", time.Minute)
	v.SetDefault("worker.archive_interval", 24*time.Hour)
	v.SetDefault("worker.archive_after", 7*24*time.Hour)

	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "muse-assets")

	v.SetDefault("gen.image_model", "imagen-3.0-generate-002")
	v.SetDefault("gen.video_model", "veo-2.0-generate-001")
}
