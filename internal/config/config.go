package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Scheduler SchedulerConfig
	Rewards   RewardsConfig
	Notify    NotifyConfig
	Azure     AzureConfig
	Redis     RedisConfig
	Security  SecurityConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL            string
	MaxConns       int32
	MigrateOnStart bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// SchedulerConfig controls the reminder sweeps
type SchedulerConfig struct {
	Enabled          bool
	UpcomingInterval time.Duration
	OverdueInterval  time.Duration
	Lookback         time.Duration
	Grace            time.Duration
	MarkerTTL        time.Duration
	Workers          int
	AutoMissEnabled  bool
}

// RewardsConfig holds point values not fixed by the reward tiers
type RewardsConfig struct {
	CheckInPoints int
}

// NotifyConfig configures reminder channels and wording
type NotifyConfig struct {
	SMTP     SMTPConfig
	Telegram TelegramConfig
	Composer ComposerConfig
}

// SMTPConfig holds the email relay settings. An empty host disables email.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// TelegramConfig holds the push channel bot token. An empty token disables push.
type TelegramConfig struct {
	Token string
}

// ComposerConfig selects how reminder text is written: "template" or "openai"
type ComposerConfig struct {
	Mode    string
	Timeout time.Duration
}

// AzureConfig holds Azure service configuration
type AzureConfig struct {
	OpenAI  OpenAIConfig
	Storage StorageConfig
}

// OpenAIConfig holds Azure OpenAI configuration
type OpenAIConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
}

// StorageConfig holds Azure Blob Storage configuration. Without an account the report
// archive is kept in memory.
type StorageConfig struct {
	AccountName     string
	AccountKey      string
	ReportContainer string
}

// Configured reports whether a storage account is set
func (s StorageConfig) Configured() bool {
	return s.AccountName != "" && s.AccountKey != ""
}

// RedisConfig enables the shared reminder marker when Addr is set
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// SecurityConfig holds the optional base64 AES-256 key for dose notes
type SecurityConfig struct {
	NotesKey string
}

// Load reads .env when present, then environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// Set default values
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	// Bind specific environment variables
	bindEnvVars(v)

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)
	v.SetDefault("server.corsorigins", []string{"*"})

	// Database defaults
	v.SetDefault("database.maxconns", 25)
	v.SetDefault("database.migrateonstart", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.upcominginterval", 5*time.Minute)
	v.SetDefault("scheduler.overdueinterval", 15*time.Minute)
	v.SetDefault("scheduler.lookback", 12*time.Hour)
	v.SetDefault("scheduler.grace", time.Duration(0))
	v.SetDefault("scheduler.markerttl", 24*time.Hour)
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.automissenabled", false)

	// Rewards defaults
	v.SetDefault("rewards.checkinpoints", 5)

	// Notify defaults
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("notify.composer.mode", "template")
	v.SetDefault("notify.composer.timeout", 5*time.Second)

	// Azure Storage defaults
	v.SetDefault("azure.storage.reportcontainer", "adherence-reports")

	// Redis defaults
	v.SetDefault("redis.keyprefix", "adherence:reminder:")
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")
	v.BindEnv("server.corsorigins", "CORS_ORIGINS")

	// Database
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.maxconns", "DATABASE_MAX_CONNS")
	v.BindEnv("database.migrateonstart", "DATABASE_MIGRATE_ON_START")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")

	// Scheduler
	v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	v.BindEnv("scheduler.upcominginterval", "SCHEDULER_UPCOMING_INTERVAL")
	v.BindEnv("scheduler.overdueinterval", "SCHEDULER_OVERDUE_INTERVAL")
	v.BindEnv("scheduler.lookback", "SCHEDULER_LOOKBACK")
	v.BindEnv("scheduler.grace", "SCHEDULER_GRACE")
	v.BindEnv("scheduler.markerttl", "SCHEDULER_MARKER_TTL")
	v.BindEnv("scheduler.workers", "SCHEDULER_WORKERS")
	v.BindEnv("scheduler.automissenabled", "SCHEDULER_AUTOMISS_ENABLED")

	// Rewards
	v.BindEnv("rewards.checkinpoints", "REWARDS_CHECKIN_POINTS")

	// Notify
	v.BindEnv("notify.smtp.host", "SMTP_HOST")
	v.BindEnv("notify.smtp.port", "SMTP_PORT")
	v.BindEnv("notify.smtp.username", "SMTP_USERNAME")
	v.BindEnv("notify.smtp.password", "SMTP_PASSWORD")
	v.BindEnv("notify.smtp.from", "SMTP_FROM")
	v.BindEnv("notify.telegram.token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("notify.composer.mode", "NOTIFY_COMPOSER")
	v.BindEnv("notify.composer.timeout", "NOTIFY_COMPOSER_TIMEOUT")

	// Azure OpenAI
	v.BindEnv("azure.openai.endpoint", "AZURE_OPENAI_ENDPOINT")
	v.BindEnv("azure.openai.apikey", "AZURE_OPENAI_API_KEY")
	v.BindEnv("azure.openai.deployment", "AZURE_OPENAI_DEPLOYMENT")

	// Azure Storage
	v.BindEnv("azure.storage.accountname", "AZURE_STORAGE_ACCOUNT_NAME")
	v.BindEnv("azure.storage.accountkey", "AZURE_STORAGE_ACCOUNT_KEY")
	v.BindEnv("azure.storage.reportcontainer", "AZURE_STORAGE_REPORT_CONTAINER")

	// Redis
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("redis.keyprefix", "REDIS_KEY_PREFIX")

	// Security
	v.BindEnv("security.noteskey", "NOTES_ENCRYPTION_KEY")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}

	s := c.Scheduler
	if s.UpcomingInterval <= 0 || s.OverdueInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}
	if s.Lookback <= 0 {
		return fmt.Errorf("scheduler.lookback must be positive")
	}
	if s.Grace < 0 || s.Grace >= s.Lookback {
		return fmt.Errorf("scheduler.grace must be between 0 and the lookback")
	}
	if s.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be at least 1")
	}

	if c.Rewards.CheckInPoints < 0 {
		return fmt.Errorf("rewards.checkinpoints must not be negative")
	}

	switch c.Notify.Composer.Mode {
	case "template":
	case "openai":
		o := c.Azure.OpenAI
		if o.Endpoint == "" || o.APIKey == "" || o.Deployment == "" {
			return fmt.Errorf("azure openai endpoint, api key and deployment are required for the openai composer")
		}
	default:
		return fmt.Errorf("notify.composer.mode must be template or openai, got %q", c.Notify.Composer.Mode)
	}

	if c.Notify.SMTP.Host != "" && c.Notify.SMTP.From == "" {
		return fmt.Errorf("notify.smtp.from is required when smtp is configured")
	}

	st := c.Azure.Storage
	if (st.AccountName == "") != (st.AccountKey == "") {
		return fmt.Errorf("azure storage needs both account name and key")
	}

	return nil
}
