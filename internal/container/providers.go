package container

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/f07-workflow/internal/application/dispatcher"
	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/internal/application/service"
	"github.com/garyjia/f07-workflow/internal/domain/event"
	"github.com/garyjia/f07-workflow/internal/domain/workflow"
	"github.com/garyjia/f07-workflow/internal/infrastructure/external/eventbus"
	infraLark "github.com/garyjia/f07-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/f07-workflow/internal/infrastructure/metrics"
	"github.com/garyjia/f07-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/f07-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/f07-workflow/internal/infrastructure/report"
	"github.com/garyjia/f07-workflow/internal/infrastructure/seed"
	"github.com/garyjia/f07-workflow/internal/infrastructure/storage"
	"github.com/garyjia/f07-workflow/migrations"
	"github.com/garyjia/f07-workflow/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the SQLite database and optionally applies the embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := database.NewMigrator(db, logger).RunMigrations(migrations.FS); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		DB:             db,
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Reference:       repository.NewReferenceRepository(sqlDB, logger),
		Transition:      repository.NewTransitionRepository(sqlDB, logger),
		LegacyStep:      repository.NewLegacyStepRepository(sqlDB, logger),
		SpecialApprover: repository.NewSpecialApproverRepository(sqlDB, logger),
		Request:         repository.NewRequestRepository(sqlDB, logger),
		History:         repository.NewHistoryRepository(sqlDB, logger),
		DocNumber:       repository.NewDocNumberRepository(sqlDB, logger),
		User:            repository.NewUserRepository(sqlDB, logger),
	}, nil
}

// ProvideRuleSet combines the transition table with the legacy step table.
// Order matters: the transition source is consulted first.
func ProvideRuleSet(repos *RepositoryBundle, cfg *WorkflowConfig) *service.RuleSet {
	return service.NewRuleSet(
		service.NewTransitionSource(repos.Transition),
		service.NewLegacySource(repos.LegacyStep, repos.Transition, repos.Reference, workflow.LegacyCodes{
			InProgress: cfg.LegacyInProgressStatus,
			Closing:    cfg.LegacyClosingStatus,
		}),
	)
}

// ProvideMessageSender returns the Lark notifier, or nil when Lark is not configured.
func ProvideMessageSender(cfg *LarkConfig, logger *zap.Logger) port.MessageSender {
	if !cfg.Enabled() {
		logger.Info("Lark not configured, notifications will only be logged")
		return nil
	}
	client := infraLark.NewClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
		Locale:    cfg.Locale,
	}, logger)
	return infraLark.NewNotifier(client, logger)
}

// ProvideEventBus connects to NATS, or returns nil when no server is configured.
func ProvideEventBus(cfg *NATSConfig, logger *zap.Logger) (*eventbus.Publisher, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	return eventbus.Connect(eventbus.Config{
		URL:           cfg.URL,
		Name:          cfg.Name,
		SubjectPrefix: cfg.SubjectPrefix,
		MaxReconnects: cfg.MaxReconnects,
		ReconnectWait: cfg.ReconnectWait,
	}, logger)
}

// ProvideMetrics creates the Prometheus recorder, or nil when metrics are disabled.
func ProvideMetrics(cfg *MetricsConfig) *metrics.Recorder {
	if !cfg.Enabled {
		return nil
	}
	return metrics.NewRecorder(cfg.Namespace)
}

// ProvideReportArchive creates the export archive, or nil when archiving is disabled.
func ProvideReportArchive(cfg *StorageConfig, logger *zap.Logger) port.FileStorage {
	if cfg.ReportDir == "" {
		return nil
	}
	return storage.NewReportArchive(cfg.ReportDir, logger)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *DispatcherConfig, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}),
		dispatcher.WithHandlerTimeout(cfg.HandlerTimeout),
		dispatcher.WithMaxInFlight(cfg.MaxInFlight),
	), nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	Rules      *service.RuleSet
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Sender     port.MessageSender
	Metrics    port.MetricsRecorder
	Archive    port.FileStorage
	Workflow   *WorkflowConfig
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil || deps.Rules == nil {
		return nil, fmt.Errorf("repositories and rule set are required")
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

	logger := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos

	notifications := service.NewNotificationService(
		deps.Rules,
		repos.User,
		repos.SpecialApprover,
		repos.Request,
		deps.Sender,
		deps.Dispatcher,
		service.NotificationConfig{ApprovalBaseURL: deps.Workflow.ApprovalBaseURL},
		logger,
	)

	return &ServiceBundle{
		Notification: notifications,
		Request: service.NewRequestService(
			repos.Request,
			repos.History,
			repos.Reference,
			repos.DocNumber,
			notifications,
			report.NewXLSXExporter(deps.Logger),
			deps.Archive,
			deps.TxManager,
			service.RequestConfig{DocumentPrefix: deps.Workflow.DocumentPrefix},
			logger,
		),
		Action: service.NewActionService(
			repos.Request,
			repos.History,
			repos.Reference,
			repos.SpecialApprover,
			deps.Rules,
			notifications,
			deps.Metrics,
			deps.TxManager,
			logger,
		),
		Pending:    service.NewPendingService(deps.Rules, repos.Request, repos.SpecialApprover, deps.Metrics, logger),
		Scope:      service.NewScopeService(deps.Rules, logger),
		Transition: service.NewTransitionResolver(repos.Transition, logger),
	}, nil
}

// RegisterHandlers subscribes notification delivery and, when configured, the event bus mirror.
func RegisterHandlers(d dispatcher.Dispatcher, notifications service.NotificationService, bus *eventbus.Publisher) {
	d.Subscribe(event.TypeNotificationRequested, "notification-delivery", notifications.Deliver)
	if bus != nil {
		d.SubscribeAll("nats-publisher", bus.Publish)
	}
}

// ProvideSeedLoader creates the workflow definition loader.
func ProvideSeedLoader(repos *RepositoryBundle, txManager port.TransactionManager, logger *zap.Logger) *seed.Loader {
	return seed.NewLoader(
		repos.Reference,
		repos.Transition,
		repos.LegacyStep,
		repos.SpecialApprover,
		repos.User,
		txManager,
		logger.Named("seed"),
	)
}
