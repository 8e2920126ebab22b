package config

import (
	"time"

	"github.com/garyjia/procurement-approvals/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	retry := c.Worker.DocumentRetry
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			DSN:             c.Database.DSN,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Approval: container.ApprovalConfig{
			MaxConflictRetries: c.Approval.MaxConflictRetries,
			RFQDeadline:        time.Duration(c.Approval.RFQDeadlineDays) * 24 * time.Hour,
		},
		Documents: container.DocumentsConfig{
			RequisitionPrefix:   c.Documents.RequisitionPrefix,
			PurchaseOrderPrefix: c.Documents.PurchaseOrderPrefix,
			RFQPrefix:           c.Documents.RFQPrefix,
			SequencePadding:     c.Documents.SequencePadding,
			CompanyName:         c.Documents.CompanyName,
		},
		Storage: container.StorageConfig{
			Backend:  c.Storage.Backend,
			LocalDir: c.Storage.LocalDir,
			S3Bucket: c.Storage.S3.Bucket,
			S3Prefix: c.Storage.S3.Prefix,
			S3Region: c.Storage.S3.Region,
		},
		Notification: container.NotificationConfig{
			Channels:      c.Notification.Channels,
			LarkAppID:     c.Notification.Lark.AppID,
			LarkAppSecret: c.Notification.Lark.AppSecret,
			LarkBaseURL:   c.Notification.Lark.BaseURL,
			SESFromEmail:  c.Notification.SES.FromEmail,
			SESReplyTo:    c.Notification.SES.ReplyTo,
			SESRegion:     c.Notification.SES.Region,
		},
		Events: container.EventsConfig{
			SNSEnabled:  c.Events.SNS.Enabled,
			SNSTopicARN: c.Events.SNS.TopicARN,
			SNSRegion:   c.Events.SNS.Region,
		},
		Worker: container.WorkerConfig{
			DocumentRetryEnabled:     retry.Enabled,
			DocumentRetryInterval:    retry.Interval,
			DocumentRetryBatchSize:   retry.BatchSize,
			DocumentRetryGracePeriod: retry.GracePeriod,
			DocumentRetryMaxAttempts: retry.MaxAttempts,
			DocumentRetryConcurrency: retry.Concurrency,
		},
	}
}
