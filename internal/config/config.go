package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything the service reads at startup. It is built once and
// passed to constructors; nothing reads the environment after Load returns.
type Config struct {
	HTTPAddr        string
	Port            int
	PublicHost      string
	ShutdownTimeout time.Duration
	LogLevel        string

	DeepImage DeepImageConfig
	Storage   StorageConfig
	Features  FeatureConfig

	SharedSecret    string
	CORSOrigins     []string
	MaxUploadBytes  int64
	FaceCascadePath string

	Redis RedisConfig
	Queue QueueConfig

	GRPCHealthAddr string
}

// DeepImageConfig configures the external enhancement service client.
type DeepImageConfig struct {
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	PollInterval    time.Duration
	MaxAttempts     int
	FailureStatuses []string
}

// StorageConfig names the three output directories.
type StorageConfig struct {
	UploadDir   string
	EnhancedDir string
	QRDir       string
}

// FeatureConfig toggles the optional capabilities.
type FeatureConfig struct {
	FaceCrop bool
	QRCode   bool
}

// RedisConfig configures the progress tracker. An empty Addr disables it.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	ProgressTTL time.Duration
}

// QueueConfig configures the asynq background enhancement queue.
type QueueConfig struct {
	Enabled     bool
	Concurrency int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 5000)
	v.SetDefault("http_addr", "")
	v.SetDefault("public_host", "")
	v.SetDefault("shutdown_timeout", 15*time.Second)
	v.SetDefault("log_level", "info")

	v.SetDefault("deepimage_api_key", "")
	v.SetDefault("deepimage_base_url", "https://deep-image.ai")
	v.SetDefault("deepimage_timeout", 60*time.Second)
	v.SetDefault("poll_interval", 5*time.Second)
	v.SetDefault("poll_max_attempts", 30)
	v.SetDefault("deepimage_failure_statuses", "")

	v.SetDefault("upload_dir", "received_images")
	v.SetDefault("enhanced_dir", "enhanced_images")
	v.SetDefault("qr_dir", "qr_codes")

	v.SetDefault("feature_face_crop", true)
	v.SetDefault("feature_qr", true)
	v.SetDefault("face_cascade_path", "")

	v.SetDefault("shared_secret", "")
	v.SetDefault("cors_origins", "*")
	v.SetDefault("max_upload_bytes", 10<<20)

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("progress_ttl", time.Hour)

	v.SetDefault("queue_enabled", false)
	v.SetDefault("queue_concurrency", 2)

	v.SetDefault("grpc_health_addr", "")
}

// Load reads an optional .env file, an optional config file named by
// CONFIG_FILE, and the process environment, in increasing precedence.
func Load() (*Config, error) {
	// .env is optional outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("config_file")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTPAddr:        strings.TrimSpace(v.GetString("http_addr")),
		Port:            v.GetInt("port"),
		PublicHost:      strings.TrimSpace(v.GetString("public_host")),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		LogLevel:        v.GetString("log_level"),
		DeepImage: DeepImageConfig{
			APIKey:          strings.TrimSpace(v.GetString("deepimage_api_key")),
			BaseURL:         strings.TrimRight(strings.TrimSpace(v.GetString("deepimage_base_url")), "/"),
			Timeout:         v.GetDuration("deepimage_timeout"),
			PollInterval:    v.GetDuration("poll_interval"),
			MaxAttempts:     v.GetInt("poll_max_attempts"),
			FailureStatuses: splitList(v.GetString("deepimage_failure_statuses")),
		},
		Storage: StorageConfig{
			UploadDir:   v.GetString("upload_dir"),
			EnhancedDir: v.GetString("enhanced_dir"),
			QRDir:       v.GetString("qr_dir"),
		},
		Features: FeatureConfig{
			FaceCrop: v.GetBool("feature_face_crop"),
			QRCode:   v.GetBool("feature_qr"),
		},
		SharedSecret:    strings.TrimSpace(v.GetString("shared_secret")),
		CORSOrigins:     splitList(v.GetString("cors_origins")),
		MaxUploadBytes:  v.GetInt64("max_upload_bytes"),
		FaceCascadePath: v.GetString("face_cascade_path"),
		Redis: RedisConfig{
			Addr:        strings.TrimSpace(v.GetString("redis_addr")),
			Password:    v.GetString("redis_password"),
			DB:          v.GetInt("redis_db"),
			ProgressTTL: v.GetDuration("progress_ttl"),
		},
		Queue: QueueConfig{
			Enabled:     v.GetBool("queue_enabled"),
			Concurrency: v.GetInt("queue_concurrency"),
		},
		GRPCHealthAddr: strings.TrimSpace(v.GetString("grpc_health_addr")),
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = fmt.Sprintf(":%d", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and policy bounds.
func (c *Config) Validate() error {
	if c.DeepImage.APIKey == "" {
		return errors.New("DEEPIMAGE_API_KEY is required")
	}
	if c.DeepImage.BaseURL == "" {
		return errors.New("DEEPIMAGE_BASE_URL must not be empty")
	}
	if c.DeepImage.MaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be positive, got %d", c.DeepImage.MaxAttempts)
	}
	if c.DeepImage.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.DeepImage.PollInterval)
	}
	if c.Storage.UploadDir == "" || c.Storage.EnhancedDir == "" || c.Storage.QRDir == "" {
		return errors.New("UPLOAD_DIR, ENHANCED_DIR and QR_DIR must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.Queue.Enabled && c.Redis.Addr == "" {
		return errors.New("QUEUE_ENABLED requires REDIS_ADDR")
	}
	if c.Queue.Concurrency <= 0 {
		c.Queue.Concurrency = 1
	}
	return nil
}

// PollBudget is the worst-case time a single job spends in the poll loop.
func (c DeepImageConfig) PollBudget() time.Duration {
	return time.Duration(c.MaxAttempts) * c.PollInterval
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
