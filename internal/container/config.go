// Package container provides dependency injection and lifecycle management
// for the F07 change-request workflow service.
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

	// Workflow engine configuration
	Workflow WorkflowConfig

	// Lark notification configuration
	Lark LarkConfig

	// NATS event bus configuration
	NATS NATSConfig

	// Storage configuration
	Storage StorageConfig

	// Server configuration
	Server ServerConfig

	// Metrics configuration
	Metrics MetricsConfig

	// Dispatcher configuration
	Dispatcher DispatcherConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout bounds how long a writer waits for the database lock
	BusyTimeout time.Duration

	// AutoMigrate applies the embedded migrations on start
	AutoMigrate bool
}

// WorkflowConfig holds approval engine settings.
type WorkflowConfig struct {
	// LegacyInProgressStatus is the status code legacy approvals move to before the last step
	LegacyInProgressStatus string

	// LegacyClosingStatus is the status code before the final step of categories that require closing
	LegacyClosingStatus string

	// DocumentPrefix is the first segment of document numbers
	DocumentPrefix string

	// ApprovalBaseURL prefixes approval links in notifications
	ApprovalBaseURL string
}

// LarkConfig holds Lark API settings. Notifications are only logged when AppID is empty.
type LarkConfig struct {
	AppID     string
	AppSecret string
	BaseURL   string
	Locale    string
}

// Enabled reports whether Lark credentials are configured
func (c LarkConfig) Enabled() bool {
	return c.AppID != ""
}

// NATSConfig holds event bus settings. Events stay in-process when URL is empty.
type NATSConfig struct {
	URL           string
	Name          string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// Enabled reports whether a NATS server is configured
func (c NATSConfig) Enabled() bool {
	return c.URL != ""
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// ReportDir archives exported spreadsheets. Empty disables archiving.
	ReportDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
	Path      string
}

// DispatcherConfig bounds asynchronous event handling.
type DispatcherConfig struct {
	HandlerTimeout time.Duration
	MaxInFlight    int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/f07.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
			AutoMigrate:     true,
		},
		Workflow: WorkflowConfig{
			LegacyInProgressStatus: "IN_PROGRESS",
			LegacyClosingStatus:    "WAITING_CLOSE",
			DocumentPrefix:         "F07",
		},
		NATS: NATSConfig{
			Name:          "f07-workflow",
			SubjectPrefix: "f07",
			MaxReconnects: 60,
			ReconnectWait: 2 * time.Second,
		},
		Storage: StorageConfig{
			ReportDir: "data/reports",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "f07",
			Path:      "/metrics",
		},
		Dispatcher: DispatcherConfig{
			HandlerTimeout: 30 * time.Second,
			MaxInFlight:    32,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Workflow.LegacyInProgressStatus == "" {
		return fmt.Errorf("workflow.legacy_in_progress_status is required")
	}
	if c.Lark.AppID != "" && c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	return nil
}
