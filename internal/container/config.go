// Package container provides dependency injection and lifecycle management
// for the procurement approval engine following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Approval coordinator tuning
	Approval ApprovalConfig

	// Document numbering and rendering
	Documents DocumentsConfig

	// Storage configuration
	Storage StorageConfig

	// Notification channels
	Notification NotificationConfig

	// Downstream event publishing
	Events EventsConfig

	// Worker configuration
	Worker WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is sqlite or postgres
	Driver string

	// Path to SQLite database file
	Path string

	// DSN is the Postgres connection string
	DSN string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout bounds SQLite lock waits
	BusyTimeout time.Duration
}

// ApprovalConfig holds coordinator settings.
type ApprovalConfig struct {
	// MaxConflictRetries bounds optimistic retries of a decision
	MaxConflictRetries int

	// RFQDeadline is added to the generation time of an RFQ
	RFQDeadline time.Duration
}

// DocumentsConfig holds numbering settings.
type DocumentsConfig struct {
	RequisitionPrefix   string
	PurchaseOrderPrefix string
	RFQPrefix           string
	SequencePadding     int

	// CompanyName is printed on exported documents
	CompanyName string
}

// StorageConfig selects the document archive.
type StorageConfig struct {
	// Backend is local or s3
	Backend string

	// LocalDir is the base directory of the local backend
	LocalDir string

	S3Bucket string
	S3Prefix string
	S3Region string
}

// NotificationConfig holds channel settings.
type NotificationConfig struct {
	// Channels lists the enabled channels: log, lark, ses
	Channels []string

	LarkAppID     string
	LarkAppSecret string
	LarkBaseURL   string

	SESFromEmail string
	SESReplyTo   string
	SESRegion    string
}

// EventsConfig holds SNS publishing settings.
type EventsConfig struct {
	SNSEnabled  bool
	SNSTopicARN string
	SNSRegion   string
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	DocumentRetryEnabled     bool
	DocumentRetryInterval    time.Duration
	DocumentRetryBatchSize   int
	DocumentRetryGracePeriod time.Duration
	DocumentRetryMaxAttempts int
	DocumentRetryConcurrency int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Path:            "data/procurement.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Approval: ApprovalConfig{
			MaxConflictRetries: 3,
			RFQDeadline:        14 * 24 * time.Hour,
		},
		Documents: DocumentsConfig{
			RequisitionPrefix:   "REQ",
			PurchaseOrderPrefix: "PO",
			RFQPrefix:           "RFQ",
			SequencePadding:     6,
		},
		Storage: StorageConfig{
			Backend:  "local",
			LocalDir: "data/documents",
		},
		Notification: NotificationConfig{
			Channels: []string{"log"},
		},
		Worker: WorkerConfig{
			DocumentRetryEnabled:     true,
			DocumentRetryInterval:    time.Minute,
			DocumentRetryBatchSize:   20,
			DocumentRetryGracePeriod: 2 * time.Minute,
			DocumentRetryMaxAttempts: 5,
			DocumentRetryConcurrency: 4,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}
	if c.Storage.Backend == "s3" && c.Storage.S3Bucket == "" {
		return fmt.Errorf("s3 bucket is required for the s3 storage backend")
	}
	if c.Storage.Backend != "s3" && c.Storage.LocalDir == "" {
		return fmt.Errorf("local storage directory is required")
	}
	if c.Events.SNSEnabled && c.Events.SNSTopicARN == "" {
		return fmt.Errorf("sns topic arn is required when event publishing is enabled")
	}
	return nil
}
