// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Dify     DifyConfig     `mapstructure:"dify"`
	Chatfuel ChatfuelConfig `mapstructure:"chatfuel"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// DifyConfig holds settings for the upstream model service.
type DifyConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// ChatfuelConfig holds settings for the downstream push platform.
type ChatfuelConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	BotID         string `mapstructure:"bot_id"`
	Token         string `mapstructure:"token"`
	AnswerBlockID string `mapstructure:"answer_block_id"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

// PipelineConfig holds tunables for answer processing.
type PipelineConfig struct {
	SegmentMaxChars int `mapstructure:"segment_max_chars"`
	GuardTTL        int `mapstructure:"guard_ttl"` // milliseconds, in-flight turn marker expiry
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a Redis endpoint was configured at all.
// The turn guard is optional and silently disabled without one.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Readiness describes which capabilities the loaded configuration enables.
// Missing credentials degrade the affected step instead of crashing, so the
// report is logged at startup rather than enforced.
type Readiness struct {
	UpstreamConfigured bool     // Dify API key present
	DeliveryConfigured bool     // Chatfuel bot id + token present
	GuardConfigured    bool     // Redis endpoint present
	Missing            []string // env names of absent required settings
}

// Readiness reports which pipeline capabilities the configuration enables.
func (c *Config) Readiness() Readiness {
	r := Readiness{
		UpstreamConfigured: c.Dify.APIKey != "",
		DeliveryConfigured: c.Chatfuel.BotID != "" && c.Chatfuel.Token != "" && c.Chatfuel.AnswerBlockID != "",
		GuardConfigured:    c.Redis.Enabled(),
	}
	if c.Dify.APIKey == "" {
		r.Missing = append(r.Missing, "DIFY_API_KEY")
	}
	if c.Chatfuel.BotID == "" {
		r.Missing = append(r.Missing, "CHATFUEL_BOT_ID")
	}
	if c.Chatfuel.Token == "" {
		r.Missing = append(r.Missing, "CHATFUEL_TOKEN")
	}
	if c.Chatfuel.AnswerBlockID == "" {
		r.Missing = append(r.Missing, "CHATFUEL_ANSWER_BLOCK_ID")
	}
	return r
}
