package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Provider  ProviderConfig  `yaml:"provider"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Render    RenderConfig    `yaml:"render"`
	SQS       SQSConfig       `yaml:"sqs"`
	S3        S3Config        `yaml:"s3"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds the admin API server configuration
type ServerConfig struct {
	Port         int      `yaml:"port"`
	Host         string   `yaml:"host"`
	CORSOrigins  []string `yaml:"cors_origins"`
	DevMode      bool     `yaml:"dev_mode"`
	DefaultOrgID string   `yaml:"default_org_id"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr is host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// TrackingConfig holds the public tracking surface configuration.
type TrackingConfig struct {
	Port int `yaml:"port"`
	// BaseURL is the public origin of the tracking server, used in
	// rewritten links, the open pixel and NPS links.
	BaseURL string `yaml:"base_url"`
	// FallbackURL receives clicks whose code is unknown.
	FallbackURL string `yaml:"fallback_url"`
	// Secret seeds tracking code generation.
	Secret string `yaml:"secret"`
	// WebhookSecret enables provider webhook signature checks when set.
	WebhookSecret string `yaml:"webhook_secret"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime returns the pool connection lifetime.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds the Redis connection used by the queue, the rate
// limiter and distributed locks.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// ProviderConfig selects and configures the email provider.
type ProviderConfig struct {
	// Kind is resend, ses or sandbox.
	Kind      string               `yaml:"kind"`
	FromName  string               `yaml:"from_name"`
	FromEmail string               `yaml:"from_email"`
	Resend    ResendConfig         `yaml:"resend"`
	SES       SESConfig            `yaml:"ses"`
	Limits    map[string]RateLimit `yaml:"limits"`
}

// ResendConfig holds Resend API configuration
type ResendConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	MaxRetries     int    `yaml:"max_retries"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the timeout as a time.Duration
func (c ResendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds AWS SES configuration
type SESConfig struct {
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	Region           string `yaml:"region"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// RateLimit holds per-provider send windows. Zero means unlimited.
type RateLimit struct {
	PerSecond int `yaml:"per_second"`
	PerMinute int `yaml:"per_minute"`
	PerDay    int `yaml:"per_day"`
}

// DispatchConfig holds bulk send settings.
type DispatchConfig struct {
	BatchSize         int `yaml:"batch_size"`
	PacingDelayMillis int `yaml:"pacing_delay_ms"`
	Workers           int `yaml:"workers"`
	LockTTLSeconds    int `yaml:"lock_ttl_seconds"`
	CancelTTLHours    int `yaml:"cancel_ttl_hours"`
	StaleAfterMinutes int `yaml:"stale_after_minutes"`
}

// PacingDelay is the pause between batches.
func (c DispatchConfig) PacingDelay() time.Duration {
	return time.Duration(c.PacingDelayMillis) * time.Millisecond
}

// LockTTL is the per-campaign dispatch lock lifetime.
func (c DispatchConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// CancelTTL is how long a cancellation flag lives.
func (c DispatchConfig) CancelTTL() time.Duration {
	return time.Duration(c.CancelTTLHours) * time.Hour
}

// StaleAfter is the heartbeat age after which a sending campaign is resumed.
func (c DispatchConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMinutes) * time.Minute
}

// RenderConfig holds the organization footer and block labels.
type RenderConfig struct {
	OrganizationName string `yaml:"organization_name"`
	CreditText       string `yaml:"credit_text"`
	UnsubscribeURL   string `yaml:"unsubscribe_url"`
	UnsubscribeText  string `yaml:"unsubscribe_text"`
	FollowUsLabel    string `yaml:"follow_us_label"`
	NPSPrompt        string `yaml:"nps_prompt"`
}

// SQSConfig enables the asynchronous tracking event pipeline.
type SQSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	QueueURL string `yaml:"queue_url"`
	Region   string `yaml:"region"`
}

// S3Config holds object storage for contact imports and report archives.
// Without a bucket, LocalDir (if set) serves as a filesystem store.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	ReportPrefix string `yaml:"report_prefix"`
	LocalDir     string `yaml:"local_dir"`
}

// SandboxConfig holds the local capture provider settings.
type SandboxConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig holds the cron scheduler settings.
type SchedulerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Spec    string `yaml:"spec"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	if cfg.Tracking.Port == 0 {
		cfg.Tracking.Port = 8081
	}
	if cfg.Tracking.BaseURL == "" {
		cfg.Tracking.BaseURL = "http://localhost:8081"
	}
	if cfg.Tracking.FallbackURL == "" {
		cfg.Tracking.FallbackURL = "http://localhost:5173"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 50
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 5
	}
	if cfg.Provider.Kind == "" {
		cfg.Provider.Kind = "sandbox"
	}
	if cfg.Provider.FromName == "" {
		cfg.Provider.FromName = "Comunicação Interna"
	}
	if cfg.Provider.Resend.MaxRetries == 0 {
		cfg.Provider.Resend.MaxRetries = 2
	}
	if cfg.Provider.Resend.TimeoutSeconds == 0 {
		cfg.Provider.Resend.TimeoutSeconds = 30
	}
	if cfg.Provider.SES.Region == "" {
		cfg.Provider.SES.Region = "us-east-1"
	}
	if cfg.Provider.Limits == nil {
		cfg.Provider.Limits = map[string]RateLimit{
			"resend": {PerSecond: 10, PerMinute: 600, PerDay: 100000},
			"ses":    {PerSecond: 14, PerMinute: 840, PerDay: 50000},
		}
	}
	if cfg.Dispatch.BatchSize == 0 {
		cfg.Dispatch.BatchSize = 10
	}
	if cfg.Dispatch.PacingDelayMillis == 0 {
		cfg.Dispatch.PacingDelayMillis = 600
	}
	if cfg.Dispatch.Workers == 0 {
		cfg.Dispatch.Workers = 2
	}
	if cfg.Dispatch.LockTTLSeconds == 0 {
		cfg.Dispatch.LockTTLSeconds = 120
	}
	if cfg.Dispatch.CancelTTLHours == 0 {
		cfg.Dispatch.CancelTTLHours = 24
	}
	if cfg.Dispatch.StaleAfterMinutes == 0 {
		cfg.Dispatch.StaleAfterMinutes = 10
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
	if cfg.S3.ReportPrefix == "" {
		cfg.S3.ReportPrefix = "reports/"
	}
	if cfg.SQS.Region == "" {
		cfg.SQS.Region = "us-east-1"
	}
	if cfg.Sandbox.Path == "" {
		cfg.Sandbox.Path = "./data/sandbox.db"
	}
	if cfg.Scheduler.Spec == "" {
		cfg.Scheduler.Spec = "@every 1m"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
// A missing config file yields the defaults.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = Default()
	}

	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	num("PORT", &cfg.Server.Port)
	num("TRACKING_PORT", &cfg.Tracking.Port)
	str("DEFAULT_ORG_ID", &cfg.Server.DefaultOrgID)
	if v := os.Getenv("DEV_MODE"); v != "" {
		cfg.Server.DevMode = v == "true" || v == "1"
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}

	str("BASE_URL", &cfg.Tracking.BaseURL)
	str("FALLBACK_URL", &cfg.Tracking.FallbackURL)
	str("FRONTEND_URL", &cfg.Tracking.FallbackURL)
	str("TRACKING_SECRET", &cfg.Tracking.Secret)
	str("WEBHOOK_SECRET", &cfg.Tracking.WebhookSecret)

	// Database override (critical for ECS deployment where config.yaml has local defaults)
	str("DATABASE_URL", &cfg.Database.URL)
	str("REDIS_URL", &cfg.Redis.URL)

	str("EMAIL_PROVIDER", &cfg.Provider.Kind)
	str("FROM_EMAIL", &cfg.Provider.FromEmail)
	str("FROM_NAME", &cfg.Provider.FromName)
	if v := os.Getenv("RESEND_API_KEY"); v != "" {
		cfg.Provider.Resend.APIKey = v
		if os.Getenv("EMAIL_PROVIDER") == "" && cfg.Provider.Kind == "sandbox" {
			cfg.Provider.Kind = "resend"
		}
	}
	str("AWS_SES_ACCESS_KEY", &cfg.Provider.SES.AccessKey)
	str("AWS_SES_SECRET_KEY", &cfg.Provider.SES.SecretKey)
	str("AWS_SES_REGION", &cfg.Provider.SES.Region)
	str("SES_CONFIGURATION_SET", &cfg.Provider.SES.ConfigurationSet)

	num("DISPATCH_BATCH_SIZE", &cfg.Dispatch.BatchSize)
	num("DISPATCH_PACING_MS", &cfg.Dispatch.PacingDelayMillis)
	num("DISPATCH_WORKERS", &cfg.Dispatch.Workers)

	if v := os.Getenv("SQS_TRACKING_QUEUE_URL"); v != "" {
		cfg.SQS.QueueURL = v
		cfg.SQS.Enabled = true
	}
	str("S3_BUCKET", &cfg.S3.Bucket)
	str("S3_REGION", &cfg.S3.Region)
	str("STORAGE_DIR", &cfg.S3.LocalDir)
	str("SANDBOX_PATH", &cfg.Sandbox.Path)
	str("LOG_LEVEL", &cfg.Log.Level)

	return cfg, nil
}

// Validate reports settings required by the selected provider and
// features that are missing.
func (cfg *Config) Validate() error {
	var missing []string
	switch cfg.Provider.Kind {
	case "resend":
		if cfg.Provider.Resend.APIKey == "" {
			missing = append(missing, "provider.resend.api_key")
		}
	case "ses", "sandbox":
	default:
		return fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}
	if cfg.Provider.Kind != "sandbox" {
		if cfg.Provider.FromEmail == "" {
			missing = append(missing, "provider.from_email")
		}
		// Without a secret, click codes are derivable from the campaign id
		// and the original URL, both of which are visible in every message.
		if cfg.Tracking.Secret == "" {
			missing = append(missing, "tracking.secret")
		}
	}
	if cfg.SQS.Enabled && cfg.SQS.QueueURL == "" {
		missing = append(missing, "sqs.queue_url")
	}
	if cfg.Dispatch.BatchSize < 1 {
		return fmt.Errorf("dispatch.batch_size must be positive")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
