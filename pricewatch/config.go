package pricewatch

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/hadef-dev/pricewatch/pricewatch/aliexpress"
	"github.com/hadef-dev/pricewatch/pricewatch/database"
	"github.com/hadef-dev/pricewatch/pricewatch/engagement"
	"github.com/hadef-dev/pricewatch/pricewatch/monitor"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log        LogConfig        `toml:"log"`
	Bot        BotConfig        `toml:"bot"`
	DB         DBSettings       `toml:"db"`
	SQLite     SQLiteConfig     `toml:"sqlite"`
	Mongo      MongoConfig      `toml:"mongodb"`
	AliExpress AliExpressConfig `toml:"aliexpress"`
	Monitor    MonitorConfig    `toml:"monitor"`
	Engagement EngagementConfig `toml:"engagement"`
	Spaces     SpacesConfig     `toml:"spaces"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
}

// DBSettings selects the storage backend and carries the Postgres pool
// options when the postgres driver is active.
type DBSettings struct {
	// Driver is one of postgres, sqlite or mongodb.
	Driver string `toml:"driver"`

	database.DBConfig
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type SQLiteConfig struct {
	Path string `toml:"path"`
}

type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

type AliExpressConfig struct {
	AppKey              string `toml:"app_key"`
	AppSecret           string `toml:"app_secret"`
	TrackingID          string `toml:"tracking_id"`
	RequestTimeoutSecs  int    `toml:"request_timeout"`
	MaxRetries          int    `toml:"max_retries"`
	RateLimitRetryDelay int    `toml:"rate_limit_retry_delay"`
}

func (c AliExpressConfig) ClientConfig() aliexpress.Config {
	return aliexpress.Config{
		AppKey:         c.AppKey,
		AppSecret:      c.AppSecret,
		TrackingID:     c.TrackingID,
		RequestTimeout: time.Duration(c.RequestTimeoutSecs) * time.Second,
		MaxRetries:     c.MaxRetries,
		BackoffBase:    time.Duration(c.RateLimitRetryDelay) * time.Second,
	}
}

type MonitorConfig struct {
	IntervalSecs       int    `toml:"interval"`
	ProductsPerCycle   int    `toml:"products_per_cycle"`
	ConcurrentRequests int    `toml:"concurrent_requests"`
	BatchDelaySecs     int    `toml:"batch_delay"`
	DefaultCountry     string `toml:"default_country"`
}

func (c MonitorConfig) SchedulerConfig() monitor.SchedulerConfig {
	return monitor.SchedulerConfig{
		Interval:        time.Duration(c.IntervalSecs) * time.Second,
		ProductsPerRun:  c.ProductsPerCycle,
		BatchSize:       c.ConcurrentRequests,
		InterBatchDelay: time.Duration(c.BatchDelaySecs) * time.Second,
	}
}

type EngagementConfig struct {
	SweepHours   int `toml:"sweep_hours"`
	ReminderDays int `toml:"reminder_days"`
	ResponseDays int `toml:"response_days"`
}

func (c EngagementConfig) ManagerConfig() engagement.ManagerConfig {
	return engagement.ManagerConfig{
		SweepInterval:  time.Duration(c.SweepHours) * time.Hour,
		ReminderAfter:  time.Duration(c.ReminderDays) * 24 * time.Hour,
		ResponseWindow: time.Duration(c.ResponseDays) * 24 * time.Hour,
	}
}

type SpacesConfig struct {
	Key       string `toml:"key"`
	Secret    string `toml:"secret"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	ImageRoot string `toml:"imageroot"`
}

func (c SpacesConfig) Enabled() bool {
	return c.Key != "" && c.Secret != "" && c.Bucket != ""
}
