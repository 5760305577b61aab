// Package config manages application configuration from defaults, an optional
// YAML file, and BOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Server    ServerConfig    `mapstructure:"server"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// BotInfo holds the bot identity retrieved at startup via GetMe.
type BotInfo struct {
	ID        int64
	Username  string
	FirstName string
}

// TelegramConfig holds the bot token and the single privileged operator
// identity. Every inbound sender is compared against AdminID by equality.
type TelegramConfig struct {
	Token   string `mapstructure:"token"    validate:"required"`
	AdminID int64  `mapstructure:"admin_id" validate:"required,gt=0"`

	// BotInfo is populated at runtime, not from configuration.
	BotInfo BotInfo `mapstructure:"-"`
}

// GeminiConfig holds settings for the greeting text generator.
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"     validate:"required"`
	Model       string        `mapstructure:"model"       validate:"required"`
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"min=0,max=5"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"min=100ms,max=30s"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"min=1s,max=5m"`
}

// RelayConfig holds the relay policy constants and user-visible notice text.
type RelayConfig struct {
	// FloodInterval is the minimum gap between two messages from the same
	// conversation; anything faster is dropped silently.
	FloodInterval time.Duration `mapstructure:"flood_interval" validate:"min=100ms,max=1m"`

	// TypingDelay is how long the typing notice is shown before the reply.
	TypingDelay time.Duration `mapstructure:"typing_delay" validate:"min=100ms,max=10s"`

	// NoticeTTL is how long ephemeral acknowledgements stay before deletion.
	NoticeTTL time.Duration `mapstructure:"notice_ttl" validate:"min=1s,max=5m"`

	// RecordRetention bounds the correlation map: relay records older than
	// this are pruned and operator replies to them are rejected.
	RecordRetention time.Duration `mapstructure:"record_retention" validate:"min=1h"`

	// MaxMessageLen caps the inbound text considered for classification.
	MaxMessageLen int `mapstructure:"max_message_len" validate:"min=1,max=4096"`

	Messages MessagesConfig `mapstructure:"messages"`
}

// MessagesConfig holds every user- and operator-visible notice string.
type MessagesConfig struct {
	Typing            string `mapstructure:"typing"              validate:"required"`
	Sent              string `mapstructure:"sent"                validate:"required"`
	BecameAvailable   string `mapstructure:"became_available"    validate:"required"`
	BecameAway        string `mapstructure:"became_away"         validate:"required"`
	Busy              string `mapstructure:"busy"                validate:"required"`
	GreetingFallback  string `mapstructure:"greeting_fallback"   validate:"required"`
	AdminNowAvailable string `mapstructure:"admin_now_available" validate:"required"`
	AdminNowAway      string `mapstructure:"admin_now_away"      validate:"required"`
	OriginNotFound    string `mapstructure:"origin_not_found"    validate:"required"`
	DeliveryFailed    string `mapstructure:"delivery_failed"     validate:"required"`
	Delivered         string `mapstructure:"delivered"           validate:"required"`
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TaskConfig enables a named scheduled task with a cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// ServerConfig controls the keep-alive HTTP endpoint.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// Load reads configuration from defaults, an optional config file at path,
// and BOT_* environment variables, then validates the result.
func Load(path string) (*Config, error) {
	setDefaults()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("BOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing config file is fine, defaults plus env vars apply.
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.json", true)

	viper.SetDefault("gemini.model", "gemini-2.0-flash")
	viper.SetDefault("gemini.temperature", 1.0)
	viper.SetDefault("gemini.max_retries", 2)
	viper.SetDefault("gemini.retry_delay", "2s")
	viper.SetDefault("gemini.timeout", "30s")

	viper.SetDefault("relay.flood_interval", "1200ms")
	viper.SetDefault("relay.typing_delay", "600ms")
	viper.SetDefault("relay.notice_ttl", "5s")
	viper.SetDefault("relay.record_retention", "48h")
	viper.SetDefault("relay.max_message_len", 500)

	viper.SetDefault("relay.messages.typing", "💬 typing…")
	viper.SetDefault("relay.messages.sent", "Message sent ✅")
	viper.SetDefault("relay.messages.became_available", "🟢 Admin available.")
	viper.SetDefault("relay.messages.became_away", "🔴 Admin busy.\nMessage sent ✅\n⏳ Reply within 48 hours.")
	viper.SetDefault("relay.messages.busy", "🔴 Admin busy.\nMessage sent ✅\n⏳ Reply within 48 hours.")
	viper.SetDefault("relay.messages.greeting_fallback", "Message sent ✅")
	viper.SetDefault("relay.messages.admin_now_available", "🟢 Admin is now available.")
	viper.SetDefault("relay.messages.admin_now_away", "🔴 Admin is now away.")
	viper.SetDefault("relay.messages.origin_not_found", "❌ User not found.")
	viper.SetDefault("relay.messages.delivery_failed", "❌ Failed to send.")
	viper.SetDefault("relay.messages.delivered", "Message sent ✅")

	viper.SetDefault("database.path", "storage.db")

	viper.SetDefault("scheduler.tasks.relay_prune.enabled", true)
	viper.SetDefault("scheduler.tasks.relay_prune.schedule", "17 */6 * * *")
	viper.SetDefault("scheduler.tasks.db_maintenance.enabled", true)
	viper.SetDefault("scheduler.tasks.db_maintenance.schedule", "0 4 * * *")

	viper.SetDefault("server.enabled", true)
	viper.SetDefault("server.addr", ":8080")
}
