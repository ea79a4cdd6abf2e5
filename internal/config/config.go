package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/uroflow/internal/assessment"
	"github.com/rewired-gh/uroflow/internal/ingest"
	"github.com/rewired-gh/uroflow/internal/models"
	"github.com/rewired-gh/uroflow/internal/monitor"
	"github.com/rewired-gh/uroflow/internal/segmenter"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Advisor  AdvisorConfig  `mapstructure:"advisor"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr          string        `mapstructure:"addr"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"` // idle-event flush and rotation period
}

// AnalysisConfig holds segmentation and statistics thresholds
type AnalysisConfig struct {
	EventWindow           time.Duration `mapstructure:"event_window"`
	MinEventVolume        float64       `mapstructure:"min_event_volume"`
	MaxEventVolume        float64       `mapstructure:"max_event_volume"`
	NormalEventMin        float64       `mapstructure:"normal_event_min"`
	NormalEventMax        float64       `mapstructure:"normal_event_max"`
	NormalDailyMin        float64       `mapstructure:"normal_daily_min"`
	NormalDailyMax        float64       `mapstructure:"normal_daily_max"`
	DailyGoal             float64       `mapstructure:"daily_goal"`
	DefaultSampleInterval time.Duration `mapstructure:"default_sample_interval"`
	MinPatternEvents      int           `mapstructure:"min_pattern_events"`
	FrequentIntervalHours float64       `mapstructure:"frequent_interval_hours"`
	SparseIntervalHours   float64       `mapstructure:"sparse_interval_hours"`
	AlertCooldown         time.Duration `mapstructure:"alert_cooldown"`
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	DBPath     string `mapstructure:"db_path"`
	MaxEvents  int    `mapstructure:"max_events"`
	MaxRecords int    `mapstructure:"max_records"`
}

// AdvisorConfig holds the advisory text service configuration
type AdvisorConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// MQTTConfig holds device transport configuration
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic"`
	QoS      byte   `mapstructure:"qos"`
}

// RedisConfig holds completed-event stream configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	MaxLen   int64  `mapstructure:"max_len"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	}

	setDefaults(v)

	// UROFLOW_ADVISOR_API_KEY overrides advisor.api_key, and so on.
	v.SetEnvPrefix("UROFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.sweep_interval", "10s")

	// Analysis defaults
	v.SetDefault("analysis.event_window", "5s")
	v.SetDefault("analysis.min_event_volume", 50)
	v.SetDefault("analysis.max_event_volume", 800)
	v.SetDefault("analysis.normal_event_min", 200)
	v.SetDefault("analysis.normal_event_max", 500)
	v.SetDefault("analysis.normal_daily_min", 800)
	v.SetDefault("analysis.normal_daily_max", 2000)
	v.SetDefault("analysis.daily_goal", 1500)
	v.SetDefault("analysis.default_sample_interval", "1s")
	v.SetDefault("analysis.min_pattern_events", 3)
	v.SetDefault("analysis.frequent_interval_hours", 1.5)
	v.SetDefault("analysis.sparse_interval_hours", 6)
	v.SetDefault("analysis.alert_cooldown", "6h")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/uroflow.db")
	v.SetDefault("storage.max_events", 1000)
	v.SetDefault("storage.max_records", 1000)

	// Advisor defaults
	v.SetDefault("advisor.enabled", false)
	v.SetDefault("advisor.base_url", "https://api.openai.com/v1")
	v.SetDefault("advisor.api_key", "")
	v.SetDefault("advisor.model", "gpt-4o")
	v.SetDefault("advisor.timeout", "120s")
	v.SetDefault("advisor.max_tokens", 2000)
	v.SetDefault("advisor.temperature", 0.7)
	v.SetDefault("advisor.max_retries", 2)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "uroflow")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", "uroflow/+/samples")
	v.SetDefault("mqtt.qos", 1)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "uroflow:events")
	v.SetDefault("redis.max_len", 10000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Server config
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.SweepInterval < 1*time.Second {
		return fmt.Errorf("server.sweep_interval must be at least 1 second")
	}

	// Validate Analysis config
	a := c.Analysis
	if a.EventWindow <= 0 {
		return fmt.Errorf("analysis.event_window must be positive")
	}
	if a.MinEventVolume < 0 {
		return fmt.Errorf("analysis.min_event_volume must not be negative")
	}
	if a.MaxEventVolume != 0 && a.MaxEventVolume <= a.MinEventVolume {
		return fmt.Errorf("analysis.max_event_volume must exceed analysis.min_event_volume")
	}
	if a.NormalEventMin <= 0 || a.NormalEventMax <= a.NormalEventMin {
		return fmt.Errorf("analysis.normal_event_min/max must form a positive range")
	}
	if a.NormalDailyMin <= 0 || a.NormalDailyMax <= a.NormalDailyMin {
		return fmt.Errorf("analysis.normal_daily_min/max must form a positive range")
	}
	if a.DailyGoal <= 0 {
		return fmt.Errorf("analysis.daily_goal must be positive")
	}
	if a.DefaultSampleInterval <= 0 {
		return fmt.Errorf("analysis.default_sample_interval must be positive")
	}
	if a.MinPatternEvents < 1 {
		return fmt.Errorf("analysis.min_pattern_events must be at least 1")
	}
	if a.FrequentIntervalHours <= 0 || a.SparseIntervalHours <= a.FrequentIntervalHours {
		return fmt.Errorf("analysis.sparse_interval_hours must exceed analysis.frequent_interval_hours")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxEvents < 1 {
		return fmt.Errorf("storage.max_events must be at least 1")
	}
	if c.Storage.MaxRecords < 1 {
		return fmt.Errorf("storage.max_records must be at least 1")
	}

	// Validate Advisor config
	if c.Advisor.Enabled {
		if c.Advisor.APIKey == "" {
			return fmt.Errorf("advisor.api_key is required when advisor is enabled")
		}
		if c.Advisor.BaseURL == "" {
			return fmt.Errorf("advisor.base_url is required when advisor is enabled")
		}
		if c.Advisor.Model == "" {
			return fmt.Errorf("advisor.model is required when advisor is enabled")
		}
		if c.Advisor.Temperature < 0 || c.Advisor.Temperature > 2 {
			return fmt.Errorf("advisor.temperature must be between 0 and 2")
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate MQTT config
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic is required when mqtt is enabled")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}

	// Validate Redis config
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when redis is enabled")
		}
		if c.Redis.Stream == "" {
			return fmt.Errorf("redis.stream is required when redis is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// SegmenterConfig returns the segmentation thresholds
func (a AnalysisConfig) SegmenterConfig() segmenter.Config {
	return segmenter.Config{
		Window:    a.EventWindow,
		MinVolume: a.MinEventVolume,
		MaxVolume: a.MaxEventVolume,
	}
}

// MonitorConfig returns the statistics and pattern thresholds
func (a AnalysisConfig) MonitorConfig() monitor.Config {
	cfg := monitor.DefaultConfig()
	cfg.DailyGoal = a.DailyGoal
	cfg.NormalSingle = models.Range{Min: a.NormalEventMin, Max: a.NormalEventMax}
	cfg.NormalDaily = models.Range{Min: a.NormalDailyMin, Max: a.NormalDailyMax}
	cfg.MinPatternEvents = a.MinPatternEvents
	cfg.FrequentIntervalHours = a.FrequentIntervalHours
	cfg.SparseIntervalHours = a.SparseIntervalHours
	return cfg
}

// VolumePolicy returns the sample volume policy
func (a AnalysisConfig) VolumePolicy() ingest.VolumePolicy {
	return ingest.VolumePolicy{DefaultInterval: a.DefaultSampleInterval}
}

// Thresholds returns the risk assessment reference ranges
func (a AnalysisConfig) Thresholds() assessment.Thresholds {
	th := assessment.DefaultThresholds()
	th.NormalSingle = models.Range{Min: a.NormalEventMin, Max: a.NormalEventMax}
	th.NormalDaily = models.Range{Min: a.NormalDailyMin, Max: a.NormalDailyMax}
	return th
}
