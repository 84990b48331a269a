package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	Auth       AuthConfig
	Classifier ClassifierConfig
	Evaluation EvaluationConfig
	Feedback   FeedbackConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver       string // postgres | memory
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // console | json
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret   string
	TokenTTL    int // 小时
	AutoApprove bool
}

// ClassifierConfig 分类器配置
type ClassifierConfig struct {
	UncertaintyThreshold float64
	ConfidenceFloor      float64
	MaxAlternatives      int
}

// EvaluationConfig 评估配置
type EvaluationConfig struct {
	SamplePredictions int
	HoldoutRatio      float64
	Workers           int
	CacheTTL          int // 小时
}

// FeedbackConfig 反馈配置
type FeedbackConfig struct {
	SuggestionLimit int
}

var globalConfig *Config

// Load 加载配置
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("NEXT_INTENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// IsMemory 是否使用内存存储
func (c *DatabaseConfig) IsMemory() bool {
	return strings.EqualFold(c.Driver, "memory")
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TokenDuration 令牌有效期
func (c *AuthConfig) TokenDuration() time.Duration {
	return time.Duration(c.TokenTTL) * time.Hour
}

// CacheDuration 评估结果缓存有效期
func (c *EvaluationConfig) CacheDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Hour
}

// Defaults 返回仅含默认值的配置，测试与离线命令使用
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "next-intent")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", true)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Database
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "next_intent")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Auth
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.tokenTTL", 24)
	v.SetDefault("auth.autoApprove", true)

	// Classifier
	v.SetDefault("classifier.uncertaintyThreshold", 0.8)
	v.SetDefault("classifier.confidenceFloor", 0.1)
	v.SetDefault("classifier.maxAlternatives", 3)

	// Evaluation
	v.SetDefault("evaluation.samplePredictions", 10)
	v.SetDefault("evaluation.holdoutRatio", 0.2)
	v.SetDefault("evaluation.workers", 4)
	v.SetDefault("evaluation.cacheTTL", 24)

	// Feedback
	v.SetDefault("feedback.suggestionLimit", 10)
}
