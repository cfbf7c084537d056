package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Lock     LockConfig     `mapstructure:"lock"`
	Business BusinessConfig `mapstructure:"business"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port     int   `mapstructure:"port"`
	WorkerID int64 `mapstructure:"worker_id"` // 雪花算法机器号，多实例部署时必须不同
}

// DatabaseConfig 支持 mysql（生产）与 sqlite（单机/测试）
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	LedgerEvents string `mapstructure:"ledger_events"`
}

// LockConfig 账户锁配置，backend 为 redis 或 local（单进程）
type LockConfig struct {
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

type BusinessConfig struct {
	PaymentExpiryMinutes int    `mapstructure:"payment_expiry_minutes"`
	MaxRetryCount        int    `mapstructure:"max_retry_count"`
	HistoryPageSize      int    `mapstructure:"history_page_size"`
	Currency             string `mapstructure:"currency"`

	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// PaymentExpiry 支付单超时时长
func (c *BusinessConfig) PaymentExpiry() time.Duration {
	return time.Duration(c.PaymentExpiryMinutes) * time.Minute
}

// Default 返回全部默认值，测试中直接使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.worker_id", 1)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.database", "printledger")
	v.SetDefault("database.sqlite_path", "printledger.db")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("kafka.topic.ledger_events", "ledger_events")
	v.SetDefault("lock.backend", "redis")
	v.SetDefault("lock.ttl", 30*time.Second)
	v.SetDefault("lock.retry_interval", 100*time.Millisecond)
	v.SetDefault("lock.max_retries", 30)
	v.SetDefault("business.payment_expiry_minutes", 15)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.history_page_size", 20)
	v.SetDefault("business.currency", "VND")
	v.SetDefault("business.reconcile_interval", 5*time.Minute)
	v.SetDefault("log.level", "info")
}

// Load 加载配置文件，APP_ 前缀的环境变量可覆盖文件中的值
// 例如 APP_DATABASE_PASSWORD 覆盖 database.password
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	switch c.Lock.Backend {
	case "redis", "local":
	default:
		return fmt.Errorf("不支持的锁实现: %s", c.Lock.Backend)
	}
	if c.Business.PaymentExpiryMinutes <= 0 {
		return fmt.Errorf("business.payment_expiry_minutes 必须大于0")
	}
	if c.Business.HistoryPageSize <= 0 {
		return fmt.Errorf("business.history_page_size 必须大于0")
	}
	return nil
}
