package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Content      ContentConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `envconfig:"APP_NAME" default:"course-platform"`
	Env                   string `envconfig:"APP_ENV" default:"development"`
	Host                  string `envconfig:"APP_HOST" default:"0.0.0.0"`
	Port                  string `envconfig:"APP_PORT" default:"8080"`
	Version               string `envconfig:"APP_VERSION" default:"dev"`
	RequestTimeoutSeconds int    `envconfig:"HTTP_REQUEST_TIMEOUT_SECONDS" default:"90"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `envconfig:"POSTGRES_DSN"`
	MaxConns       int32  `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
	MinConns       int32  `envconfig:"POSTGRES_MIN_CONNS" default:"2"`
	RunMigrations  bool   `envconfig:"POSTGRES_RUN_MIGRATIONS" default:"true"`
	ConnMaxIdleSec int32  `envconfig:"POSTGRES_CONN_MAX_IDLE_SECONDS" default:"30"`
	ConnMaxLifeSec int32  `envconfig:"POSTGRES_CONN_MAX_LIFE_SECONDS" default:"300"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret            string   `envconfig:"AUTH_JWT_SECRET"`
	TokenTTLMillis       int64    `envconfig:"AUTH_TOKEN_TTL_MS" default:"86400000"`
	BypassPaths          []string `envconfig:"AUTH_BYPASS_PATHS" default:"/api/auth/login,/api/auth/register,/api/auth/forgot-password,/api/auth/verify-otp,/api/auth/reset-password,/v3/api-docs,/swagger-ui,/swagger-resources,/webjars,/configuration,/health"`
	RequireActiveSession bool     `envconfig:"AUTH_REQUIRE_ACTIVE_SESSION" default:"false"`
	BcryptCost           int      `envconfig:"AUTH_BCRYPT_COST" default:"12"`
	OTPTTLMinutes        int      `envconfig:"AUTH_OTP_TTL_MINUTES" default:"10"`
	RateLimitPerMinute   int      `envconfig:"AUTH_RATE_LIMIT_PER_MINUTE" default:"20"`
}

// ContentConfig tunes the upstream fetches made by the content proxy.
type ContentConfig struct {
	UserAgent                   string `envconfig:"CONTENT_USER_AGENT" default:"Mozilla/5.0"`
	ResponseHeaderTimeoutSecond int    `envconfig:"CONTENT_RESPONSE_HEADER_TIMEOUT_SECONDS" default:"15"`
	DocumentTimeoutSeconds      int    `envconfig:"CONTENT_DOCUMENT_TIMEOUT_SECONDS" default:"60"`
	VideoTimeoutSeconds         int    `envconfig:"CONTENT_VIDEO_TIMEOUT_SECONDS" default:"0"`
	MaxDocumentBytes            int64  `envconfig:"CONTENT_MAX_DOCUMENT_BYTES" default:"52428800"`
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string `envconfig:"NOTIFY_EMAIL_FROM" default:"noreply@example.com"`
	WebhookURL string `envconfig:"NOTIFY_WEBHOOK_URL"`
}

// Load reads configuration from the environment after merging the given .env files.
// Missing .env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET must be provided")
	}
	if c.Auth.TokenTTLMillis <= 0 {
		return fmt.Errorf("invalid AUTH_TOKEN_TTL_MS: %d", c.Auth.TokenTTLMillis)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TokenTTL returns the bearer token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMillis) * time.Millisecond
}

// OTPTTL returns how long a password reset code stays valid.
func (a AuthConfig) OTPTTL() time.Duration {
	if a.OTPTTLMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(a.OTPTTLMinutes) * time.Minute
}

// ResponseHeaderTimeout bounds the wait for upstream response headers.
func (c ContentConfig) ResponseHeaderTimeout() time.Duration {
	return seconds(c.ResponseHeaderTimeoutSecond)
}

// DocumentTimeout bounds a full document download.
func (c ContentConfig) DocumentTimeout() time.Duration {
	return seconds(c.DocumentTimeoutSeconds)
}

// VideoTimeout bounds a whole video stream. Zero leaves it unbounded.
func (c ContentConfig) VideoTimeout() time.Duration {
	return seconds(c.VideoTimeoutSeconds)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
