package config

import (
	"fmt"
	"os"
	"time"

	"secondbrain/pkg/config"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type StorageConfig struct {
	Driver string `yaml:"driver"`
}

type SessionConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

type CronConfig struct {
	Secret string `yaml:"secret"`
}

type OwnersConfig struct {
	Allowed []int64 `yaml:"allowed"`
}

type UndoConfig struct {
	Limit int `yaml:"limit"`
}

// DefaultsConfig 用户未设置时的默认值
type DefaultsConfig struct {
	Timezone     string `yaml:"timezone"`
	DigestHour   int    `yaml:"digest_hour"`
	RecapHour    int    `yaml:"recap_hour"`
	ReminderHour int    `yaml:"reminder_hour"`
}

type DedupConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// TelemetryConfig OTLP/HTTP 追踪导出
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	DB        config.DBConfig     `yaml:"db"`
	Redis     config.RedisConfig  `yaml:"redis"`
	MQ        config.MQConfig     `yaml:"mq"`
	JWT       config.JWTConfig    `yaml:"jwt"`
	Server    config.ServerConfig `yaml:"server"`
	Oracle    config.OracleConfig `yaml:"oracle"`
	Storage   StorageConfig       `yaml:"storage"`
	Session   SessionConfig       `yaml:"session"`
	Cron      CronConfig          `yaml:"cron"`
	Owners    OwnersConfig        `yaml:"owners"`
	Undo      UndoConfig          `yaml:"undo"`
	Defaults  DefaultsConfig      `yaml:"defaults"`
	Dedup     DedupConfig         `yaml:"dedup"`
	Log       LogConfig           `yaml:"log"`
	Telemetry TelemetryConfig     `yaml:"telemetry"`
}

// Load base.yaml + <env>.yaml + secrets.env，再由环境变量覆盖
func Load(env, dir string) (*Config, error) {
	raw, err := config.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := config.Decode(raw, &cfg); err != nil {
		return nil, err
	}

	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideOracleFromEnv(&cfg.Oracle)
	if secret := os.Getenv("CRON_SECRET"); secret != "" {
		cfg.Cron.Secret = secret
	}
	if owners := os.Getenv("ALLOWED_OWNERS"); owners != "" {
		cfg.Owners.Allowed = config.ParseIDList(owners)
	}
	if driver := os.Getenv("STORAGE_DRIVER"); driver != "" {
		cfg.Storage.Driver = driver
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Telemetry.Endpoint = endpoint
		cfg.Telemetry.Enabled = true
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverPostgres
	}
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Undo.Limit <= 0 {
		c.Undo.Limit = 10
	}
	if c.Defaults.Timezone == "" {
		c.Defaults.Timezone = "America/Denver"
	}
	if c.MQ.Queue == "" {
		c.MQ.Queue = "schedule.trigger.q"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "secondbrain"
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := time.LoadLocation(c.Defaults.Timezone); err != nil {
		return fmt.Errorf("invalid default timezone %q: %w", c.Defaults.Timezone, err)
	}
	for _, h := range []int{c.Defaults.DigestHour, c.Defaults.RecapHour, c.Defaults.ReminderHour} {
		if h < 0 || h > 23 {
			return fmt.Errorf("default hour %d out of range", h)
		}
	}
	return nil
}

func (c *Config) SessionTTL() time.Duration {
	if c.Session.TTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Session.TTLSeconds) * time.Second
}

func (c *Config) DedupTTL() time.Duration {
	if c.Dedup.TTLSeconds <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Dedup.TTLSeconds) * time.Second
}

func (c *Config) JWTTTL() time.Duration {
	if d, err := time.ParseDuration(c.JWT.TTL); err == nil && d > 0 {
		return d
	}
	return 30 * 24 * time.Hour
}
