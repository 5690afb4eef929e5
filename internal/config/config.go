package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN  string `env:"DATABASE_DSN,required=true"`
	RedisURL     string `env:"REDIS_URL,required=true"`
	RabbitMQURL  string `env:"RABBITMQ_URL,required=true"`
	CreditAPIURL string `env:"CREDIT_API_URL,required=true"`
	CreditAPIKey string `env:"CREDIT_API_KEY,required=true"`

	SMSGatewayURL   string `env:"SMS_GATEWAY_URL,required=true"`
	PushGatewayURL  string `env:"PUSH_GATEWAY_URL,required=true"`
	VoiceGatewayURL string `env:"VOICE_GATEWAY_URL,required=true"`
	EmailAPIURL     string `env:"EMAIL_API_URL,required=true"`
	EmailAPIKey     string `env:"EMAIL_API_KEY,required=true"`
	CompanyName     string `env:"COMPANY_NAME,default=Collection Agency Ltd."`

	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=8"`
	SendRatePerSec    int    `env:"SEND_RATE_PER_SEC,default=50"`

	WindowStartHour       int    `env:"WINDOW_START_HOUR,default=9"`
	WindowEndHour         int    `env:"WINDOW_END_HOUR,default=21"`
	WindowWeekendsAllowed bool   `env:"WINDOW_WEEKENDS_ALLOWED,default=false"`
	WindowHolidaysAllowed bool   `env:"WINDOW_HOLIDAYS_ALLOWED,default=false"`
	Timezone              string `env:"TIMEZONE,default=UTC"`

	DailyNotificationCap int `env:"DAILY_NOTIFICATION_CAP,default=3"`
	RetryMaxAttempts     int `env:"RETRY_MAX_ATTEMPTS,default=3"`
	RetryBackoffBaseMs   int `env:"RETRY_BACKOFF_BASE_MS,default=60000"`

	PollerBatchSize       int    `env:"POLLER_BATCH_SIZE,default=50"`
	PollerCheckIntervalMs int    `env:"POLLER_CHECK_INTERVAL_MS,default=3600000"`
	PollerCron            string `env:"POLLER_CRON,default=0 * * * *"`
	ScannerIntervalMs     int    `env:"SCANNER_INTERVAL_MS,default=1000"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.WindowStartHour < 0 || c.WindowStartHour > 23 {
		return fmt.Errorf("WINDOW_START_HOUR out of range: %d", c.WindowStartHour)
	}
	if c.WindowEndHour < 1 || c.WindowEndHour > 24 {
		return fmt.Errorf("WINDOW_END_HOUR out of range: %d", c.WindowEndHour)
	}
	if c.WindowStartHour >= c.WindowEndHour {
		return fmt.Errorf("delivery window is empty: start %d >= end %d", c.WindowStartHour, c.WindowEndHour)
	}
	if c.DailyNotificationCap < 1 {
		return fmt.Errorf("DAILY_NOTIFICATION_CAP must be >= 1, got %d", c.DailyNotificationCap)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be >= 1, got %d", c.RetryMaxAttempts)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured timezone. validate() has already checked
// it, so a lookup failure falls back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PollerCheckInterval is the minimum age of a plan's last status check
// before the poller examines it again.
func (c *Config) PollerCheckInterval() time.Duration {
	return time.Duration(c.PollerCheckIntervalMs) * time.Millisecond
}

// RetryBackoffBase is the base delay for queue-level retry backoff.
func (c *Config) RetryBackoffBase() time.Duration {
	return time.Duration(c.RetryBackoffBaseMs) * time.Millisecond
}

// ScannerInterval is how often the per-channel task scanners poll the
// delayed-task store.
func (c *Config) ScannerInterval() time.Duration {
	return time.Duration(c.ScannerIntervalMs) * time.Millisecond
}
