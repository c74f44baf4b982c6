package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Generation GenerationConfig `mapstructure:"generation"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Order      OrderConfig      `mapstructure:"order"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
	// ShutdownTimeout bounds both the HTTP drain and the wait for in-flight generation tasks.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
	File        string `mapstructure:"file"`
	FileOnly    bool   `mapstructure:"file_only"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

// StorageConfig describes the S3-compatible bucket holding generated images.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // r2, s3, s3compatible; empty autodetects from endpoint
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

// GenerationConfig configures the upstream image generation API and the worker that calls it.
type GenerationConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Size              string        `mapstructure:"size"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ImagesPerJob      int           `mapstructure:"images_per_job"`
	UploadConcurrency int           `mapstructure:"upload_concurrency"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	// StatusRequiresOwner scopes job-status lookups to the signed-in owner.
	StatusRequiresOwner bool `mapstructure:"status_requires_owner"`
}

type JobsConfig struct {
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type RateLimitConfig struct {
	Enabled   bool        `mapstructure:"enabled"`
	PerMinute int         `mapstructure:"per_minute"`
	Redis     RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type OrderConfig struct {
	UnitPrice float64 `mapstructure:"unit_price"`
}

// Load reads configuration from an optional YAML file, .env and the process environment.
// Parameters:
//   - configPath: explicit config file; empty searches ./configs and the working directory.
// Returns:
//   - *Config: populated configuration.
//   - error: non-nil if the file is unreadable or the result fails validation.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_DBNAME")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.bucket", "STORAGE_BUCKET")
	v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	v.BindEnv("generation.api_key", "OPENAI_API_KEY")
	v.BindEnv("generation.base_url", "OPENAI_BASE_URL")
	v.BindEnv("generation.timeout", "GENERATION_TIMEOUT")
	v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")
	v.BindEnv("ratelimit.redis.addr", "REDIS_ADDR")
	v.BindEnv("ratelimit.redis.password", "REDIS_PASSWORD")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")
	v.BindEnv("log.environment", "APP_ENV")
	v.BindEnv("log.file", "LOG_FILE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.service_name", "stickergen")
	v.SetDefault("log.environment", "local")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/stickergen.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "stickers")

	v.SetDefault("generation.base_url", "https://api.openai.com/v1")
	v.SetDefault("generation.model", "gpt-image-1")
	v.SetDefault("generation.size", "1024x1024")
	v.SetDefault("generation.timeout", 60*time.Second)
	v.SetDefault("generation.images_per_job", 1)
	v.SetDefault("generation.upload_concurrency", 2)

	v.SetDefault("auth.status_requires_owner", true)

	v.SetDefault("jobs.stale_after", 10*time.Minute)
	v.SetDefault("jobs.sweep_interval", time.Minute)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.per_minute", 10)

	v.SetDefault("order.unit_price", 2.50)
}

// Validate checks settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("generation.timeout must be positive")
	}
	if c.Generation.ImagesPerJob < 1 {
		return fmt.Errorf("generation.images_per_job must be at least 1")
	}
	if c.Generation.UploadConcurrency < 1 {
		return fmt.Errorf("generation.upload_concurrency must be at least 1")
	}
	if c.Jobs.StaleAfter > 0 && c.Jobs.StaleAfter <= c.Generation.Timeout {
		return fmt.Errorf("jobs.stale_after (%s) must exceed generation.timeout (%s)", c.Jobs.StaleAfter, c.Generation.Timeout)
	}
	if c.Order.UnitPrice < 0 {
		return fmt.Errorf("order.unit_price must not be negative")
	}
	return nil
}
