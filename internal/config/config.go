package config

import (
	"bytes"
	_ "embed"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Throttle   ThrottleConfig   `mapstructure:"throttle"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Providers  []ProviderConfig `mapstructure:"providers"`
	Router     RouterConfig     `mapstructure:"router"`
	Tracking   TrackingConfig   `mapstructure:"tracking"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Sequences  SequencesConfig  `mapstructure:"sequences"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type DispatcherConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	RedispatchDelay time.Duration `mapstructure:"redispatch_delay"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

type WorkerConfig struct {
	SenderCount int `mapstructure:"sender_count"`
}

type ThrottleConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval"`
	UseRedis    bool          `mapstructure:"use_redis"`
	RedisKey    string        `mapstructure:"redis_key"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type ProviderConfig struct {
	Name      string        `mapstructure:"name"`
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	SendPath  string        `mapstructure:"send_path"`
	APIKey    string        `mapstructure:"api_key"`
	TimeoutMs int           `mapstructure:"timeout_ms"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

type RouterConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

type TrackingConfig struct {
	Secret  string `mapstructure:"secret"`
	BaseURL string `mapstructure:"base_url"`
	AppName string `mapstructure:"app_name"`
}

type WebhookConfig struct {
	SigningKey string `mapstructure:"signing_key"`
}

type SequencesConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (SAMPLEPAL_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (SAMPLEPAL_*)
	v.SetEnvPrefix("SAMPLEPAL")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
