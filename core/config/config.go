package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coredatabase "github.com/sam17/fxlifesheet/core/database"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	KeysOrder string `yaml:"keys_order"`
	Dir       string `yaml:"dir"`
	BotFile   string `yaml:"bot_file"`
	WebFile   string `yaml:"web_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// MediaConfig describes the S3-compatible object store used for image answers.
type MediaConfig struct {
	Endpoint  string `yaml:"endpoint" envconfig:"MEDIA_ENDPOINT"`
	Region    string `yaml:"region" envconfig:"MEDIA_REGION"`
	Bucket    string `yaml:"bucket" envconfig:"MEDIA_BUCKET"`
	AccessKey string `yaml:"access_key" envconfig:"MEDIA_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" envconfig:"MEDIA_SECRET_KEY"`
}

// WebConfig holds settings for the REST API binary.
type WebConfig struct {
	Listen    string `yaml:"listen" envconfig:"WEB_LISTEN"`
	StaticDir string `yaml:"static_dir" envconfig:"WEB_STATIC_DIR"`
}

// Reminder triggers a catalog command for the listed chats on a cron schedule.
type Reminder struct {
	Cron    string  `yaml:"cron"`
	Command string  `yaml:"command"`
	ChatIDs []int64 `yaml:"chat_ids"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// Config aggregates application configuration for both binaries.
type Config struct {
	Telegram  TelegramConfig      `yaml:"telegram"`
	Webhook   WebhookConfig       `yaml:"webhook"`
	Logging   LoggingConfig       `yaml:"logging"`
	Database  coredatabase.Config `yaml:"database"`
	Media     MediaConfig         `yaml:"media"`
	Web       WebConfig           `yaml:"web"`
	Reminders []Reminder          `yaml:"reminders"`
}

// Load reads configuration from a YAML file and environment variables.
// A .env file next to the process is applied first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	for i, r := range cfg.Reminders {
		if strings.TrimSpace(r.Cron) == "" {
			return fmt.Errorf("reminders[%d].cron is required", i)
		}
		cmd := strings.TrimSpace(r.Command)
		if cmd == "" {
			return fmt.Errorf("reminders[%d].command is required", i)
		}
		if !strings.HasPrefix(cmd, "/") {
			cmd = "/" + cmd
		}
		cfg.Reminders[i].Command = cmd
	}
	return nil
}

// RequireTelegram validates the fields only the bot binary needs.
func RequireTelegram(cfg *Config) error {
	if cfg == nil || strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required")
	}
	return nil
}
