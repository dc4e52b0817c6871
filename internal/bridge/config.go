package bridge

import (
	"fmt"
	"time"

	"chatfuel-dify-bridge/internal/common/config"
)

type Config struct {
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
	SegmentMaxChars int           `mapstructure:"segment_max_chars"`
	GuardTTL        time.Duration `mapstructure:"guard_ttl"`

	DifyAPIKey  string `mapstructure:"dify_api_key"`
	DifyBaseURL string `mapstructure:"dify_base_url"`

	ChatfuelBaseURL string `mapstructure:"chatfuel_base_url"`
	ChatfuelBotID   string `mapstructure:"chatfuel_bot_id"`
	ChatfuelToken   string `mapstructure:"chatfuel_token"`
	DefaultBlockID  string `mapstructure:"default_block_id"`
}

func DefaultConfig() *Config {
	return &Config{
		UpstreamTimeout: 120 * time.Second,
		DeliveryTimeout: 10 * time.Second,
		SegmentMaxChars: 1500,
		GuardTTL:        150 * time.Second,
		DifyBaseURL:     "https://api.dify.ai",
		ChatfuelBaseURL: "https://api.chatfuel.com",
	}
}

// Validate checks structural settings. Credentials are deliberately not
// required: a missing key degrades the affected pipeline step at runtime
// instead of refusing to start.
func (c *Config) Validate() error {
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream_timeout must be positive")
	}
	if c.DeliveryTimeout <= 0 {
		return fmt.Errorf("delivery_timeout must be positive")
	}
	if c.SegmentMaxChars <= 0 {
		return fmt.Errorf("segment_max_chars must be positive")
	}
	if c.DifyBaseURL == "" {
		return fmt.Errorf("dify_base_url is required")
	}
	if c.ChatfuelBaseURL == "" {
		return fmt.Errorf("chatfuel_base_url is required")
	}
	return nil
}

// UpstreamConfigured reports whether the model service can be called.
func (c *Config) UpstreamConfigured() bool {
	return c.DifyAPIKey != ""
}

// DeliveryConfigured reports whether answers can be pushed back to users.
func (c *Config) DeliveryConfigured() bool {
	return c.ChatfuelBotID != "" && c.ChatfuelToken != "" && c.DefaultBlockID != ""
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		if appConfig.Dify.Timeout > 0 {
			cfg.UpstreamTimeout = config.GetDuration(appConfig.Dify.Timeout)
		}
		if appConfig.Chatfuel.Timeout > 0 {
			cfg.DeliveryTimeout = config.GetDuration(appConfig.Chatfuel.Timeout)
		}
		if appConfig.Pipeline.SegmentMaxChars > 0 {
			cfg.SegmentMaxChars = appConfig.Pipeline.SegmentMaxChars
		}
		if appConfig.Pipeline.GuardTTL > 0 {
			cfg.GuardTTL = config.GetDuration(appConfig.Pipeline.GuardTTL)
		}

		cfg.DifyAPIKey = appConfig.Dify.APIKey
		if appConfig.Dify.BaseURL != "" {
			cfg.DifyBaseURL = appConfig.Dify.BaseURL
		}

		if appConfig.Chatfuel.BaseURL != "" {
			cfg.ChatfuelBaseURL = appConfig.Chatfuel.BaseURL
		}
		cfg.ChatfuelBotID = appConfig.Chatfuel.BotID
		cfg.ChatfuelToken = appConfig.Chatfuel.Token
		cfg.DefaultBlockID = appConfig.Chatfuel.AnswerBlockID
	}

	return cfg
}
