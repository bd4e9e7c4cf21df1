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
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Workflow   WorkflowConfig   `mapstructure:"workflow"`
	Lark       LarkConfig       `mapstructure:"lark"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// WorkflowConfig holds approval engine configuration
type WorkflowConfig struct {
	LegacyInProgressStatus string `mapstructure:"legacy_in_progress_status"`
	LegacyClosingStatus    string `mapstructure:"legacy_closing_status"`
	DocumentPrefix         string `mapstructure:"document_prefix"`
	ApprovalBaseURL        string `mapstructure:"approval_base_url"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
	Locale    string `mapstructure:"locale"`
}

// NATSConfig holds event bus configuration
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// StorageConfig holds report archive configuration
type StorageConfig struct {
	ReportDir string `mapstructure:"report_dir"`
}

// DispatcherConfig holds async event handling configuration
type DispatcherConfig struct {
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	MaxInFlight    int           `mapstructure:"max_in_flight"`
}

// Load loads configuration from file, a .env file next to the working
// directory, and environment variables. A missing config file is not an
// error when configPath is empty.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("F07")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv sets variables from path without overriding the real environment
func loadDotEnv(path string) error {
	err := gotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/f07.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.auto_migrate", true)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Workflow defaults
	v.SetDefault("workflow.legacy_in_progress_status", "IN_PROGRESS")
	v.SetDefault("workflow.legacy_closing_status", "WAITING_CLOSE")
	v.SetDefault("workflow.document_prefix", "F07")
	v.SetDefault("workflow.approval_base_url", "")

	// Lark defaults
	v.SetDefault("lark.app_id", "")
	v.SetDefault("lark.app_secret", "")
	v.SetDefault("lark.base_url", "https://open.larksuite.com")
	v.SetDefault("lark.locale", "en_us")

	// NATS defaults
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.name", "f07-workflow")
	v.SetDefault("nats.subject_prefix", "f07")
	v.SetDefault("nats.max_reconnects", 60)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "f07")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("storage.report_dir", "data/reports")

	v.SetDefault("dispatcher.handler_timeout", 30*time.Second)
	v.SetDefault("dispatcher.max_in_flight", 32)
}

// bindEnvVars binds the conventional unprefixed names of credentials and endpoints
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("lark.app_id", "F07_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "F07_LARK_APP_SECRET", "LARK_APP_SECRET")
	_ = v.BindEnv("nats.url", "F07_NATS_URL", "NATS_URL")
	_ = v.BindEnv("database.path", "F07_DATABASE_PATH", "DATABASE_PATH")
	_ = v.BindEnv("server.port", "F07_SERVER_PORT", "PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Lark.AppID != "" && c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
	}
	if c.Workflow.LegacyInProgressStatus == "" {
		return fmt.Errorf("workflow.legacy_in_progress_status is required")
	}
	if c.Workflow.DocumentPrefix == "" {
		return fmt.Errorf("workflow.document_prefix is required")
	}
	switch strings.ToLower(c.Logger.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}
	return nil
}
