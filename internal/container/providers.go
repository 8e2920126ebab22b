package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/application/dispatcher"
	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/application/service"
	"github.com/garyjia/procurement-approvals/internal/application/workflow"
	"github.com/garyjia/procurement-approvals/internal/domain/event"
	"github.com/garyjia/procurement-approvals/internal/infrastructure/export"
	"github.com/garyjia/procurement-approvals/internal/infrastructure/external/awsclient"
	infraLark "github.com/garyjia/procurement-approvals/internal/infrastructure/external/lark"
	"github.com/garyjia/procurement-approvals/internal/infrastructure/notification"
	"github.com/garyjia/procurement-approvals/internal/infrastructure/persistence/repository"
	"github.com/garyjia/procurement-approvals/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/procurement-approvals/internal/infrastructure/storage"
	"github.com/garyjia/procurement-approvals/internal/infrastructure/worker"
	"github.com/garyjia/procurement-approvals/migrations"
	"github.com/garyjia/procurement-approvals/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqldb.DB
}

// ExternalBundle holds the outbound channels.
type ExternalBundle struct {
	Notifiers []port.Notifier
	Publisher port.EventPublisher
	Lark      *infraLark.SDKClient
}

// ProvideDatabase opens the configured database and applies pending
// migrations from the embedded set of its dialect.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	dialect, err := database.DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if dialect == database.SQLite {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	conn, err := database.Open(database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(conn, logger)
	if err := migrator.RunMigrations(ctx, migrations.FS, conn.Dialect.MigrationsDir()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqldb.New(conn, logger),
	}, nil
}

// ProvideRepositories creates all repositories on top of the transaction-aware wrapper.
func ProvideRepositories(db *sqldb.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Requisition: repository.NewRequisitionRepository(db, logger),
		Item:        repository.NewItemRepository(db, logger),
		Instance:    repository.NewInstanceRepository(db, logger),
		History:     repository.NewHistoryRepository(db, logger),
		Workflow:    repository.NewWorkflowRepository(db, logger),
		CostCenter:  repository.NewCostCenterRepository(db, logger),
		User:        repository.NewUserRepository(db, logger),
		Tenant:      repository.NewTenantRepository(db, logger),
		Catalog:     repository.NewCatalogRepository(db, logger),
		Sequence:    repository.NewSequenceRepository(db, logger),
		Document:    repository.NewDocumentRepository(db, logger),
	}, nil
}

// ProvideExternalClients builds the enabled notification channels and the
// SNS publisher. AWS configuration is only loaded when a channel needs it.
func ProvideExternalClients(ctx context.Context, cfg *Config, logger *zap.Logger) (*ExternalBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	bundle := &ExternalBundle{}
	for _, ch := range cfg.Notification.Channels {
		switch strings.ToLower(strings.TrimSpace(ch)) {
		case "log":
			bundle.Notifiers = append(bundle.Notifiers, notification.NewLogNotifier(logger))
		case "lark":
			bundle.Lark = infraLark.NewSDKClient(infraLark.Config{
				AppID:     cfg.Notification.LarkAppID,
				AppSecret: cfg.Notification.LarkAppSecret,
				BaseURL:   cfg.Notification.LarkBaseURL,
			}, logger)
			bundle.Notifiers = append(bundle.Notifiers, infraLark.NewMessenger(bundle.Lark, logger))
		case "ses":
			awsCfg, err := awsclient.LoadConfig(ctx, cfg.Notification.SESRegion)
			if err != nil {
				return nil, err
			}
			bundle.Notifiers = append(bundle.Notifiers, awsclient.NewSESNotifierFromConfig(
				awsCfg, cfg.Notification.SESFromEmail, cfg.Notification.SESReplyTo, logger))
		default:
			return nil, fmt.Errorf("unknown notification channel %q", ch)
		}
	}

	if cfg.Events.SNSEnabled {
		awsCfg, err := awsclient.LoadConfig(ctx, cfg.Events.SNSRegion)
		if err != nil {
			return nil, err
		}
		bundle.Publisher = awsclient.NewSNSPublisherFromConfig(awsCfg, cfg.Events.SNSTopicARN, logger)
	}

	return bundle, nil
}

// ProvideStorage creates the document archive for the configured backend.
func ProvideStorage(ctx context.Context, cfg *StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Backend {
	case "s3":
		awsCfg, err := awsclient.LoadConfig(ctx, cfg.S3Region)
		if err != nil {
			return nil, err
		}
		return storage.NewS3Storage(s3.NewFromConfig(awsCfg), storage.S3Config{
			Bucket: cfg.S3Bucket,
			Prefix: cfg.S3Prefix,
		}, logger), nil
	case "local", "":
		if err := os.MkdirAll(cfg.LocalDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		return storage.NewLocalFileStorage(cfg.LocalDir, logger), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	dispatcherLogger := &dispatcherLoggerAdapter{logger: logger}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(dispatcherLogger),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Storage    port.FileStorage
	Notifiers  []port.Notifier
	Approval   ApprovalConfig
	Documents  DocumentsConfig
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}
	numbering := numberingFrom(deps.Documents)

	documents := service.NewDocumentService(service.DocumentDeps{
		Requisitions: deps.Repos.Requisition,
		Items:        deps.Repos.Item,
		Documents:    deps.Repos.Document,
		Tenants:      deps.Repos.Tenant,
		Sequences:    deps.Repos.Sequence,
		Exporter:     export.NewExcelExporter(deps.Documents.CompanyName, deps.Logger),
		Storage:      deps.Storage,
		Dispatcher:   deps.Dispatcher,
		TxManager:    deps.TxManager,
		Logger:       serviceLogger,
		Config: service.DocumentConfig{
			Numbering:   numbering,
			RFQDeadline: deps.Approval.RFQDeadline,
		},
	})

	return &ServiceBundle{
		Documents: documents,
		Requisitions: service.NewRequisitionService(service.CoordinatorDeps{
			Requisitions:       deps.Repos.Requisition,
			Instances:          deps.Repos.Instance,
			History:            deps.Repos.History,
			CostCenters:        deps.Repos.CostCenter,
			Workflows:          deps.Repos.Workflow,
			Engine:             workflow.NewEngine(),
			Documents:          documents,
			Dispatcher:         deps.Dispatcher,
			TxManager:          deps.TxManager,
			Logger:             serviceLogger,
			MaxConflictRetries: deps.Approval.MaxConflictRetries,
		}),
		Items: service.NewItemService(service.ItemDeps{
			Requisitions: deps.Repos.Requisition,
			Items:        deps.Repos.Item,
			Catalog:      deps.Repos.Catalog,
			CostCenters:  deps.Repos.CostCenter,
			Tenants:      deps.Repos.Tenant,
			Sequences:    deps.Repos.Sequence,
			TxManager:    deps.TxManager,
			Logger:       serviceLogger,
			Numbering:    numbering,
		}),
		Provisioning: service.NewProvisioningService(service.ProvisioningDeps{
			Tenants:     deps.Repos.Tenant,
			Users:       deps.Repos.User,
			CostCenters: deps.Repos.CostCenter,
			Catalog:     deps.Repos.Catalog,
			Workflows:   deps.Repos.Workflow,
			TxManager:   deps.TxManager,
			Logger:      serviceLogger,
		}),
		Notification: service.NewNotificationService(
			deps.Repos.User,
			deps.Repos.Requisition,
			deps.Notifiers,
			serviceLogger,
		),
	}, nil
}

// RegisterSubscriptions wires the event consumers: notifications, the
// document archive and, when configured, the downstream publisher.
func RegisterSubscriptions(d dispatcher.Dispatcher, services *ServiceBundle, publisher port.EventPublisher) error {
	if d == nil {
		return fmt.Errorf("dispatcher is required")
	}
	if services == nil {
		return fmt.Errorf("services are required")
	}

	services.Notification.Register(d)
	d.SubscribeNamed(event.TypeDocumentGenerated, "document_archiver", services.Documents.ArchiveGenerated)
	if publisher != nil {
		d.SubscribeNamed(dispatcher.AllEvents, "event_publisher", publisher.Publish)
	}
	return nil
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Documents service.DocumentService
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideWorkers creates and registers all background workers.
// Returns *worker.WorkerManager with all workers registered but not started.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Documents == nil {
		return nil, fmt.Errorf("document service is required")
	}
	if deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(deps.Logger)

	if deps.WorkerCfg.DocumentRetryEnabled {
		manager.Register(worker.NewDocumentRetryWorker(worker.DocumentRetryConfig{
			Interval:    deps.WorkerCfg.DocumentRetryInterval,
			BatchSize:   deps.WorkerCfg.DocumentRetryBatchSize,
			GracePeriod: deps.WorkerCfg.DocumentRetryGracePeriod,
			MaxAttempts: deps.WorkerCfg.DocumentRetryMaxAttempts,
			Concurrency: deps.WorkerCfg.DocumentRetryConcurrency,
		}, deps.Documents, deps.Logger))
	}

	return manager, nil
}

func numberingFrom(cfg DocumentsConfig) service.NumberingConfig {
	n := service.DefaultNumberingConfig()
	if cfg.RequisitionPrefix != "" {
		n.RequisitionPrefix = cfg.RequisitionPrefix
	}
	if cfg.PurchaseOrderPrefix != "" {
		n.PurchaseOrderPrefix = cfg.PurchaseOrderPrefix
	}
	if cfg.RFQPrefix != "" {
		n.RFQPrefix = cfg.RFQPrefix
	}
	if cfg.SequencePadding > 0 {
		n.Padding = cfg.SequencePadding
	}
	return n
}
