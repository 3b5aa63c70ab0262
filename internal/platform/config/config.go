package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Cfg 是一个全局变量，用于存储所有应用程序的配置
var Cfg *Config

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Events   EventsConfig   `mapstructure:"events"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Mode       string           `mapstructure:"mode"`
	Address    string           `mapstructure:"address"`
	Cors       CorsConfig       `mapstructure:"cors"`
	FormTokens FormTokensConfig `mapstructure:"formTokens"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// FormTokensConfig 定义了表单防伪令牌的配置
type FormTokensConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Secret 为空时，每次启动随机生成
	Secret string        `mapstructure:"secret"`
	MaxAge time.Duration `mapstructure:"maxAge"`
}

// DatabaseConfig 定义了数据库和缓存相关的配置
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	LogLevel string         `mapstructure:"logLevel"`
	Sqlite   SqliteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// SqliteConfig 定义了SQLite的配置
type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig 定义了PostgreSQL的配置
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 定义了Redis的配置，Address为空表示不启用缓存
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig 定义了投票列表缓存的配置
type CacheConfig struct {
	SummaryTTL time.Duration `mapstructure:"summaryTTL"`
}

// EventsConfig 定义了领域事件发布的配置
type EventsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig 中 Brokers 为空表示不发布事件
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.formTokens.enabled", true)
	v.SetDefault("server.formTokens.secret", "")
	v.SetDefault("server.formTokens.maxAge", 2*time.Hour)

	v.SetDefault("database.driver", DriverSqlite)
	v.SetDefault("database.logLevel", "silent")
	v.SetDefault("database.sqlite.path", "tinyballot.db")
	v.SetDefault("database.postgres.dsn", "")
	v.SetDefault("database.redis.address", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("cache.summaryTTL", 30*time.Second)

	v.SetDefault("events.kafka.brokers", []string{})
	v.SetDefault("events.kafka.topic", "tinyballot.polls")
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 它会在 ./config 和 . 中查找名为 config.yaml 的文件
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("./config", ".")
}

// LoadConfigFrom 在给定的目录中查找 config.yaml，找不到文件时使用默认值
func LoadConfigFrom(paths ...string) (*Config, error) {
	// .env 是可选的，只用于本地开发时注入环境变量
	if err := godotenv.Load(); err != nil {
		fmt.Println("未找到 .env 文件，跳过加载。")
	}

	v := viper.New()
	setDefaults(v)

	// 1. 设置配置文件名和类型
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// 2. 添加配置文件搜索路径
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// 3. 允许通过环境变量覆盖配置，例如 SERVER_ADDRESS=:9090
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
		fmt.Println("未找到配置文件，使用默认配置。")
	}

	// 5. 将配置反序列化到结构体中
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法解析配置: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	Cfg = &cfg
	return Cfg, nil
}

// Validate 检查配置项之间的一致性
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSqlite:
		if strings.TrimSpace(c.Database.Sqlite.Path) == "" {
			return errors.New("配置错误: database.sqlite.path 不能为空")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.Postgres.DSN) == "" {
			return errors.New("配置错误: 使用postgres时必须提供 database.postgres.dsn")
		}
	default:
		return fmt.Errorf("配置错误: 不支持的数据库驱动 %q", c.Database.Driver)
	}
	if c.Cache.SummaryTTL <= 0 {
		return errors.New("配置错误: cache.summaryTTL 必须大于0")
	}
	if c.Server.FormTokens.Enabled && c.Server.FormTokens.MaxAge <= 0 {
		return errors.New("配置错误: server.formTokens.maxAge 必须大于0")
	}
	return nil
}

// CacheEnabled 表示是否配置了Redis
func (c *Config) CacheEnabled() bool {
	return strings.TrimSpace(c.Database.Redis.Address) != ""
}

// EventsEnabled 表示是否配置了Kafka
func (c *Config) EventsEnabled() bool {
	return len(c.Events.Kafka.Brokers) > 0
}
