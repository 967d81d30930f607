package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"  validate:"required"`
	Gen      GenConfig      `mapstructure:"gen"      validate:"required"`
}

// ServerConfig contains all HTTP server related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains all authentication-related settings.
type AuthConfig struct {
	JWTSecret          string `mapstructure:"jwt_secret"           validate:"required,min=32"`
	TokenLifetimeHours int    `mapstructure:"token_lifetime_hours" validate:"required,gt=0"`
}

// WorkerConfig tunes the generation worker pool and the lifecycle
// maintenance jobs.
type WorkerConfig struct {
	// Concurrency is the maximum number of tasks one worker executes at once.
	Concurrency int `mapstructure:"concurrency" validate:"required,gt=0"`

	// PollInterval is how often the worker polls the store for claimable tasks.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required"`

	// ProviderRatePerMinute bounds requests per minute to the generation
	// provider. Calls beyond the limit wait rather than fail. When several
	// worker instances share one provider quota, divide it across them here.
	ProviderRatePerMinute int `mapstructure:"provider_rate_per_minute" validate:"required,gt=0"`

	// StaleAfter is how long a processing task may hold its claim before it
	// is presumed abandoned and becomes reclaimable. It is the de facto
	// execution timeout; size it for the slowest task type (video).
	StaleAfter time.Duration `mapstructure:"stale_after" validate:"required"`

	// ReclaimInterval is how often the stale-reclaim job runs.
	ReclaimInterval time.Duration `mapstructure:"reclaim_interval" validate:"required"`

	// ArchiveInterval is how often the archival job runs.
	ArchiveInterval time.Duration `mapstructure:"archive_interval" validate:"required"`

	// ArchiveAfter is the retention window for terminal tasks.
	ArchiveAfter time.Duration `mapstructure:"archive_after" validate:"required"`
}

// StorageConfig contains object storage (MinIO/S3) settings for
// generated assets.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"   validate:"required"`
	AccessKey string `mapstructure:"access_key" validate:"required"`
	SecretKey string `mapstructure:"secret_key" validate:"required"`
	Bucket    string `mapstructure:"bucket"     validate:"required"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PublicURL string `mapstructure:"public_url"`
}

// GenConfig contains generation provider (Gemini) settings.
type GenConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ImageModel   string `mapstructure:"image_model"    validate:"required"`
	VideoModel   string `mapstructure:"video_model"    validate:"required"`
}
