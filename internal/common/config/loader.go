// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DIFY_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from multiple possible locations so the binary and
// the tests both pick it up regardless of working directory.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders inside string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig maps the flat env surface onto config fields that are
// still empty after file loading and placeholder expansion.
func overrideEmptyConfig(cfg *Config) {
	// Upstream model service
	if cfg.Dify.APIKey == "" {
		if val := os.Getenv("DIFY_API_KEY"); val != "" {
			cfg.Dify.APIKey = val
		}
	}
	if val := os.Getenv("DIFY_BASE_URL"); val != "" && cfg.Dify.BaseURL == defaultDifyBaseURL {
		cfg.Dify.BaseURL = val
	}

	// Downstream push platform
	if cfg.Chatfuel.BotID == "" {
		if val := os.Getenv("CHATFUEL_BOT_ID"); val != "" {
			cfg.Chatfuel.BotID = val
		}
	}
	if cfg.Chatfuel.Token == "" {
		if val := os.Getenv("CHATFUEL_TOKEN"); val != "" {
			cfg.Chatfuel.Token = val
		}
	}
	if cfg.Chatfuel.AnswerBlockID == "" {
		if val := os.Getenv("CHATFUEL_ANSWER_BLOCK_ID"); val != "" {
			cfg.Chatfuel.AnswerBlockID = val
		}
	}

	// Listen port
	if val := os.Getenv("PORT"); val != "" {
		var port int
		if _, err := fmt.Sscanf(val, "%d", &port); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}

	// Optional turn guard store
	if cfg.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Redis.Address = val
		}
	}
	if cfg.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Redis.Password = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

const defaultDifyBaseURL = "https://api.dify.ai"

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "chatfuel-dify-bridge"
	}

	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 10000
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	// Upstream defaults. Model responses are slow, so the timeout is generous.
	if cfg.Dify.BaseURL == "" {
		cfg.Dify.BaseURL = defaultDifyBaseURL
	}
	if cfg.Dify.Timeout == 0 {
		cfg.Dify.Timeout = 120000
	}

	// Delivery defaults
	if cfg.Chatfuel.BaseURL == "" {
		cfg.Chatfuel.BaseURL = "https://api.chatfuel.com"
	}
	if cfg.Chatfuel.Timeout == 0 {
		cfg.Chatfuel.Timeout = 10000
	}

	// Pipeline defaults
	if cfg.Pipeline.SegmentMaxChars == 0 {
		cfg.Pipeline.SegmentMaxChars = 1500
	}
	if cfg.Pipeline.GuardTTL == 0 {
		cfg.Pipeline.GuardTTL = 150000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates structural configuration fields. Missing
// credentials are deliberately not checked here: they degrade the affected
// pipeline step (see Config.Readiness), they do not prevent startup.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", cfg.Server.Port)
	}
	if cfg.Dify.BaseURL == "" {
		return fmt.Errorf("dify.base_url is required")
	}
	if cfg.Chatfuel.BaseURL == "" {
		return fmt.Errorf("chatfuel.base_url is required")
	}
	if cfg.Pipeline.SegmentMaxChars < 1 {
		return fmt.Errorf("pipeline.segment_max_chars must be positive, got %d", cfg.Pipeline.SegmentMaxChars)
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
