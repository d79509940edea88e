// Package config loads the bot's JSON configuration files and environment
// credentials.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// TokenFallback is returned when the selected credential env var is unset.
// Startup keeps going so public endpoints still work; the auth probe fails
// with a clear message instead.
const TokenFallback = "Token is not configured"

// Settings values.
const (
	SettingMain = "MAIN"
	SettingTest = "TEST"
)

// Config holds the main bot configuration (configs/config.json) plus the
// resolved credential.
type Config struct {
	LocalTimeZoneName string // IANA name, e.g. Asia/Tehran
	Setting           string // TEST or MAIN
	APIToken          string
	ProfileID         int64 // expected user id; 0 skips the identity check

	Symbol          string
	SrcCurrency     string
	DstCurrency     string
	Resolution      string
	RequiredCandles int
	StoreSize       int

	OrderCategory string // FUTURES or SPOT
	CancelOld     bool   // cancel resting orders before each entry
	MetricsAddr   string
	RedisAddr     string
	JournalPath   string

	TelegramToken  string
	TelegramChatID string
	WebhookURL     string

	Logs LogsConfig
}

// LogsConfig mirrors logs_config.json: per-logger levels plus the file
// handler target.
type LogsConfig struct {
	Levels map[string]string // logger name → level
	File   string
}

// Load reads configs/config.json and configs/logs_config.json from dir and
// resolves the API token from MAIN_TOKEN / TEST_TOKEN.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config.json: %w", err)
	}

	cfg := &Config{
		LocalTimeZoneName: v.GetString("local_time_zone_name"),
		Setting:           strings.ToUpper(v.GetString("setting")),
		ProfileID:         v.GetInt64("profile_id"),
		Symbol:            v.GetString("trading_pair.symbol"),
		SrcCurrency:       strings.ToLower(v.GetString("trading_pair.src_currency")),
		DstCurrency:       strings.ToLower(v.GetString("trading_pair.dst_currency")),
		Resolution:        v.GetString("trading_pair.resolution"),
		RequiredCandles:   v.GetInt("required_candles"),
		StoreSize:         v.GetInt("candle_store_size"),
		OrderCategory:     strings.ToUpper(v.GetString("order.category")),
		CancelOld:         v.GetBool("order.cancel_old"),
		MetricsAddr:       v.GetString("metrics_addr"),
		RedisAddr:         v.GetString("redis_addr"),
		JournalPath:       v.GetString("journal_path"),
		TelegramToken:     v.GetString("notifications.telegram_token"),
		TelegramChatID:    v.GetString("notifications.telegram_chat_id"),
		WebhookURL:        v.GetString("notifications.webhook_url"),
	}
	if cfg.Setting != SettingMain && cfg.Setting != SettingTest {
		return nil, fmt.Errorf("setting must be TEST or MAIN, got %q", cfg.Setting)
	}
	if cfg.Symbol == "" {
		cfg.Symbol = strings.ToUpper(cfg.SrcCurrency + cfg.DstCurrency)
	}
	cfg.APIToken = tokenFromEnv(cfg.Setting)

	logs, err := loadLogs(dir)
	if err != nil {
		return nil, err
	}
	cfg.Logs = logs
	return cfg, nil
}

func tokenFromEnv(setting string) string {
	key := "MAIN_TOKEN"
	if setting == SettingTest {
		key = "TEST_TOKEN"
	}
	if tok := os.Getenv(key); tok != "" {
		return tok
	}
	return TokenFallback
}

// TokenConfigured reports whether a real credential was resolved.
func (c *Config) TokenConfigured() bool {
	return c.APIToken != "" && c.APIToken != TokenFallback
}

func loadLogs(dir string) (LogsConfig, error) {
	v := viper.New()
	v.SetConfigName("logs_config")
	v.SetConfigType("json")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		// Optional file: default everything to INFO.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return LogsConfig{Levels: map[string]string{}}, nil
		}
		return LogsConfig{}, fmt.Errorf("read logs_config.json: %w", err)
	}
	out := LogsConfig{
		Levels: map[string]string{},
		File:   v.GetString("file_path"),
	}
	for name, lvl := range v.GetStringMapString("levels") {
		out.Levels[name] = strings.ToUpper(lvl)
	}
	return out, nil
}

// Level returns the configured level for a named logger, INFO by default.
func (l LogsConfig) Level(name string) string {
	if lvl, ok := l.Levels[strings.ToLower(name)]; ok {
		return lvl
	}
	return "INFO"
}
