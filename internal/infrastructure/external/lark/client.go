package lark

import (
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// DefaultBaseURL is the Lark international open platform
const DefaultBaseURL = "https://open.larksuite.com"

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	BaseURL   string // open platform host, e.g. https://open.feishu.cn
	Locale    string // post message locale key, defaults to en_us
}

// Client wraps the Lark SDK client
type Client struct {
	client *lark.Client
	config Config
	logger *zap.Logger
}

// NewClient creates a new Lark client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Locale == "" {
		cfg.Locale = "en_us"
	}

	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithOpenBaseUrl(cfg.BaseURL),
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)

	logger.Info("Lark client initialized", zap.String("app_id", cfg.AppID), zap.String("base_url", cfg.BaseURL))
	return &Client{client: client, config: cfg, logger: logger}
}

// GetClient returns the underlying Lark SDK client
func (c *Client) GetClient() *lark.Client {
	return c.client
}
