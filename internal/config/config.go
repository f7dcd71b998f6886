// Package config содержит логику чтения конфигурации витрины кафе.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// DefaultSuperadminID — зарезервированный Telegram ID суперадмина.
const DefaultSuperadminID int64 = 732402669

// Config содержит параметры конфигурации витрины кафе.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	BotToken       string `env:"BOT_TOKEN"`
	BotAPIAddress  string `env:"BOT_API_ADDRESS"`
	MediaBaseURL   string `env:"MEDIA_BASE_URL"`
	SuperadminID   int64  `env:"SUPERADMIN_ID"`
	RequestTimeout int    `env:"REQUEST_TIMEOUT"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значение из окружения имеет приоритет над флагом.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envBotToken := cfg.BotToken
	envBotAPIAddress := cfg.BotAPIAddress
	envMediaBaseURL := cfg.MediaBaseURL
	envSuperadminID := cfg.SuperadminID
	envRequestTimeout := cfg.RequestTimeout

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.BotToken, "t", "", "telegram bot token")
	flag.StringVar(&cfg.BotAPIAddress, "b", "https://api.telegram.org", "telegram bot api address")
	flag.StringVar(&cfg.MediaBaseURL, "m", "", "public base URL for uploaded media")
	flag.Int64Var(&cfg.SuperadminID, "s", DefaultSuperadminID, "reserved superadmin telegram id")
	flag.IntVar(&cfg.RequestTimeout, "r", 5, "timeout per remote call, seconds")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envBotToken != "" {
		cfg.BotToken = envBotToken
	}
	if envBotAPIAddress != "" {
		cfg.BotAPIAddress = envBotAPIAddress
	}
	if envMediaBaseURL != "" {
		cfg.MediaBaseURL = envMediaBaseURL
	}
	if envSuperadminID != 0 {
		cfg.SuperadminID = envSuperadminID
	}
	if envRequestTimeout != 0 {
		cfg.RequestTimeout = envRequestTimeout
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
