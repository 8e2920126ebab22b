package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Approval     ApprovalConfig     `mapstructure:"approval"`
	Documents    DocumentsConfig    `mapstructure:"documents"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Notification NotificationConfig `mapstructure:"notification"`
	Events       EventsConfig       `mapstructure:"events"`
	Worker       WorkerConfig       `mapstructure:"worker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// AuthConfig selects how API callers are identified
type AuthConfig struct {
	JWTSecret    string `mapstructure:"jwt_secret"`
	TenantHeader string `mapstructure:"tenant_header"`
	UserHeader   string `mapstructure:"user_header"`
}

// ApprovalConfig tunes the approval coordinator
type ApprovalConfig struct {
	MaxConflictRetries int `mapstructure:"max_conflict_retries"`
	RFQDeadlineDays    int `mapstructure:"rfq_deadline_days"`
}

// DocumentsConfig holds numbering and rendering settings
type DocumentsConfig struct {
	RequisitionPrefix   string `mapstructure:"requisition_prefix"`
	PurchaseOrderPrefix string `mapstructure:"purchase_order_prefix"`
	RFQPrefix           string `mapstructure:"rfq_prefix"`
	SequencePadding     int    `mapstructure:"sequence_padding"`
	CompanyName         string `mapstructure:"company_name"`
}

// StorageConfig selects where exported documents are archived
type StorageConfig struct {
	Backend  string   `mapstructure:"backend"` // local or s3
	LocalDir string   `mapstructure:"local_dir"`
	S3       S3Config `mapstructure:"s3"`
}

// S3Config holds the archive bucket settings
type S3Config struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
	Region string `mapstructure:"region"`
}

// NotificationConfig lists the enabled channels
type NotificationConfig struct {
	Channels []string   `mapstructure:"channels"` // log, lark, ses
	Lark     LarkConfig `mapstructure:"lark"`
	SES      SESConfig  `mapstructure:"ses"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// SESConfig holds email sender configuration
type SESConfig struct {
	FromEmail string `mapstructure:"from_email"`
	ReplyTo   string `mapstructure:"reply_to"`
	Region    string `mapstructure:"region"`
}

// EventsConfig holds downstream event publishing settings
type EventsConfig struct {
	SNS SNSConfig `mapstructure:"sns"`
}

// SNSConfig holds the SNS topic settings
type SNSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	TopicARN string `mapstructure:"topic_arn"`
	Region   string `mapstructure:"region"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	DocumentRetry DocumentRetryConfig `mapstructure:"document_retry"`
}

// DocumentRetryConfig holds the document retry worker settings
type DocumentRetryConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	BatchSize   int           `mapstructure:"batch_size"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Concurrency int           `mapstructure:"concurrency"`
}

// HasChannel reports whether the named notification channel is enabled
func (n NotificationConfig) HasChannel(name string) bool {
	for _, ch := range n.Channels {
		if strings.EqualFold(strings.TrimSpace(ch), name) {
			return true
		}
	}
	return false
}

// Load loads configuration from file, an optional .env and environment variables
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/procurement.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("auth.tenant_header", "X-Tenant-ID")
	v.SetDefault("auth.user_header", "X-User-ID")

	v.SetDefault("approval.max_conflict_retries", 3)
	v.SetDefault("approval.rfq_deadline_days", 14)

	v.SetDefault("documents.requisition_prefix", "REQ")
	v.SetDefault("documents.purchase_order_prefix", "PO")
	v.SetDefault("documents.rfq_prefix", "RFQ")
	v.SetDefault("documents.sequence_padding", 6)

	// Storage defaults
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "data/documents")

	v.SetDefault("notification.channels", []string{"log"})

	// Worker defaults
	v.SetDefault("worker.document_retry.enabled", true)
	v.SetDefault("worker.document_retry.interval", time.Minute)
	v.SetDefault("worker.document_retry.batch_size", 20)
	v.SetDefault("worker.document_retry.grace_period", 2*time.Minute)
	v.SetDefault("worker.document_retry.max_attempts", 5)
	v.SetDefault("worker.document_retry.concurrency", 4)
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("database.dsn", "DATABASE_DSN")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("notification.lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("notification.lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("notification.ses.from_email", "SES_FROM_EMAIL")
	_ = v.BindEnv("events.sns.topic_arn", "SNS_TOPIC_ARN")
	_ = v.BindEnv("storage.s3.bucket", "S3_BUCKET")
	_ = v.BindEnv("documents.company_name", "COMPANY_NAME")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres", "postgresql", "pgx":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}

	if c.Approval.MaxConflictRetries < 0 {
		return fmt.Errorf("approval.max_conflict_retries must not be negative")
	}
	if c.Documents.SequencePadding < 1 {
		return fmt.Errorf("documents.sequence_padding must be positive")
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unsupported storage.backend %q", c.Storage.Backend)
	}

	for _, ch := range c.Notification.Channels {
		switch strings.ToLower(strings.TrimSpace(ch)) {
		case "log":
		case "lark":
			if c.Notification.Lark.AppID == "" || c.Notification.Lark.AppSecret == "" {
				return fmt.Errorf("notification.lark.app_id and app_secret are required for the lark channel")
			}
		case "ses":
			if c.Notification.SES.FromEmail == "" {
				return fmt.Errorf("notification.ses.from_email is required for the ses channel")
			}
		default:
			return fmt.Errorf("unknown notification channel %q", ch)
		}
	}

	if c.Events.SNS.Enabled && c.Events.SNS.TopicARN == "" {
		return fmt.Errorf("events.sns.topic_arn is required when sns is enabled")
	}

	retry := c.Worker.DocumentRetry
	if retry.Enabled && (retry.Interval <= 0 || retry.BatchSize <= 0 || retry.MaxAttempts <= 0 || retry.Concurrency <= 0) {
		return fmt.Errorf("worker.document_retry interval, batch_size, max_attempts and concurrency must be positive")
	}

	return nil
}
