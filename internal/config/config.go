package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Sources struct {
		BorsaItaliana struct {
			BaseURL string `yaml:"base_url"`
			Token   string `yaml:"token"`
		} `yaml:"borsaitaliana"`
		JustETF struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"justetf"`
		MaxAge time.Duration `yaml:"max_age"`
	} `yaml:"sources"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
		DriftCron   string `yaml:"drift_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	HTTP struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	// Portfolio is an optional YAML document imported at startup.
	Portfolio string `yaml:"portfolio"`
	Proxy     string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"TELEGRAM_BOT_TOKEN":  &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":    &c.Telegram.ChatID,
		"BORSAITALIANA_URL":   &c.Sources.BorsaItaliana.BaseURL,
		"BORSAITALIANA_TOKEN": &c.Sources.BorsaItaliana.Token,
		"JUSTETF_URL":         &c.Sources.JustETF.BaseURL,
		"CRON_REFRESH":        &c.Schedule.RefreshCron,
		"CRON_DRIFT":          &c.Schedule.DriftCron,
		"SQLITE_PATH":         &c.Database.SQLitePath,
		"HTTP_ADDR":           &c.HTTP.Addr,
		"LOG_LEVEL":           &c.Log.Level,
		"PORTFOLIO_FILE":      &c.Portfolio,
		"HTTPS_PROXY":         &c.Proxy,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("PRICE_MAX_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PRICE_MAX_AGE: %w", err)
		}
		c.Sources.MaxAge = d
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_PRETTY: %w", err)
		}
		c.Log.Pretty = pretty
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Sources.MaxAge == 0 {
		c.Sources.MaxAge = 24 * time.Hour
	}
	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = "0 0 7 * * *"
	}
	if c.Schedule.DriftCron == "" {
		c.Schedule.DriftCron = "0 0 18 * * 1-5"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/etf_sentinel.db"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// CronParser accepts the six-field expressions used by the schedule section.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks that all required fields are set and well formed.
func (c *Config) Validate() error {
	var errs []error
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		errs = append(errs, errors.New("telegram.bot_token and telegram.chat_id must be set together"))
	}
	if _, err := CronParser.Parse(c.Schedule.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("schedule.refresh_cron: %w", err))
	}
	if _, err := CronParser.Parse(c.Schedule.DriftCron); err != nil {
		errs = append(errs, fmt.Errorf("schedule.drift_cron: %w", err))
	}
	if c.Sources.MaxAge < 0 {
		errs = append(errs, errors.New("sources.max_age must not be negative"))
	}
	if c.Database.SQLitePath == "" {
		errs = append(errs, errors.New("database.sqlite_path is required"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	return errors.Join(errs...)
}

// TelegramEnabled reports whether alerts can be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
