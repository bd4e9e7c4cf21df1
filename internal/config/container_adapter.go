package config

import (
	"github.com/garyjia/f07-workflow/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
			AutoMigrate:     c.Database.AutoMigrate,
		},
		Workflow: container.WorkflowConfig{
			LegacyInProgressStatus: c.Workflow.LegacyInProgressStatus,
			LegacyClosingStatus:    c.Workflow.LegacyClosingStatus,
			DocumentPrefix:         c.Workflow.DocumentPrefix,
			ApprovalBaseURL:        c.Workflow.ApprovalBaseURL,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			BaseURL:   c.Lark.BaseURL,
			Locale:    c.Lark.Locale,
		},
		NATS: container.NATSConfig{
			URL:           c.NATS.URL,
			Name:          c.NATS.Name,
			SubjectPrefix: c.NATS.SubjectPrefix,
			MaxReconnects: c.NATS.MaxReconnects,
			ReconnectWait: c.NATS.ReconnectWait,
		},
		Storage: container.StorageConfig{
			ReportDir: c.Storage.ReportDir,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Metrics: container.MetricsConfig{
			Enabled:   c.Metrics.Enabled,
			Namespace: c.Metrics.Namespace,
			Path:      c.Metrics.Path,
		},
		Dispatcher: container.DispatcherConfig{
			HandlerTimeout: c.Dispatcher.HandlerTimeout,
			MaxInFlight:    c.Dispatcher.MaxInFlight,
		},
	}
}
