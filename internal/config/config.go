// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Config is the process configuration read from the environment.
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	LocationsDatabaseURL string `env:"LOCATIONS_DATABASE_URL"`

	RedisAddr    string `env:"REDIS_ADDR"`
	RedisDB      int    `env:"REDIS_DB" envDefault:"0"`
	HistoryQueue string `env:"HISTORY_QUEUE" envDefault:"spy_rounds"`

	HistoryDatabaseURL   string        `env:"HISTORY_DATABASE_URL"`
	HistoryBatchSize     int           `env:"HISTORY_BATCH_SIZE" envDefault:"20"`
	HistoryFlushInterval time.Duration `env:"HISTORY_FLUSH_INTERVAL" envDefault:"500ms"`

	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	OpenAIModel     string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL"`
	DecisionTimeout time.Duration `env:"DECISION_TIMEOUT" envDefault:"8s"`
	DecisionRetries uint          `env:"DECISION_RETRIES" envDefault:"3"`
	DecisionBackoff time.Duration `env:"DECISION_BACKOFF" envDefault:"2s"`

	ReapAfter     time.Duration `env:"REAP_AFTER" envDefault:"10m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	return cfg, nil
}

// Logger builds the process logger at the configured level.
func (c Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger, nil
}
