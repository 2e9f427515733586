package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Region    RegionConfig    `mapstructure:"region"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Forward   ForwardConfig   `mapstructure:"forward"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// RegionConfig 节点地域配置
type RegionConfig struct {
	Name      string `mapstructure:"name"`       // 当前节点所属地域
	Fallback  string `mapstructure:"fallback"`   // 未识别位置时的兜底地域
	TablePath string `mapstructure:"table_path"` // 地域表 yaml 文件路径（可选，留空用内置表）
}

// IdentityConfig 外部身份/计费服务配置
type IdentityConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	VerifyPath     string `mapstructure:"verify_path"`
	UsagePath      string `mapstructure:"usage_path"`
	SharedSecret   string `mapstructure:"shared_secret"`
	Service        string `mapstructure:"service"`         // 上报时的服务标识
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // 调用身份服务的超时
}

// CacheConfig 令牌验证缓存配置
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"` // 正向验证结果缓存时长
}

// LedgerConfig 用量账本配置
type LedgerConfig struct {
	FlushIntervalSeconds int `mapstructure:"flush_interval_seconds"` // 定时上报间隔
	MaxPending           int `mapstructure:"max_pending"`            // 触发强制上报的积压上限
}

// ForwardConfig 转发引擎配置
type ForwardConfig struct {
	MaxTimeoutMs int    `mapstructure:"max_timeout_ms"` // 单次转发超时上限
	UserAgent    string `mapstructure:"user_agent"`     // 默认标识头
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerSecond int  `mapstructure:"requests_per_second"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	BurstSize         int  `mapstructure:"burst_size"`
	UseRedis          bool `mapstructure:"use_redis"` // 多节点部署时启用 Redis 计数
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)
	Mode string `mapstructure:"mode"`

	// 单节点模式配置
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// 哨兵模式配置
	MasterName       string   `mapstructure:"master_name"`
	SentinelAddrs    []string `mapstructure:"sentinel_addrs"`
	SentinelPassword string   `mapstructure:"sentinel_password"`

	// 集群模式配置
	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	// 通用配置
	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var globalConfig *Config

// setDefaults 设置默认值，保证仅靠环境变量也能启动
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 60)
	v.SetDefault("server.write_timeout", 60)

	v.SetDefault("region.name", "us-east")
	v.SetDefault("region.fallback", "us-east")

	v.SetDefault("identity.base_url", "http://localhost:9000")
	v.SetDefault("identity.verify_path", "/api/v1/verify")
	v.SetDefault("identity.usage_path", "/api/v1/usage/batch")
	v.SetDefault("identity.service", "fetch-gateway")
	v.SetDefault("identity.timeout_seconds", 10)

	v.SetDefault("cache.ttl_seconds", 60)

	v.SetDefault("ledger.flush_interval_seconds", 30)
	v.SetDefault("ledger.max_pending", 10000)

	v.SetDefault("forward.max_timeout_ms", 30000)
	v.SetDefault("forward.user_agent", "FetchGateway/1.0")

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests_per_second", 10)
	v.SetDefault("ratelimit.requests_per_minute", 300)
	v.SetDefault("ratelimit.burst_size", 20)

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("metrics.enabled", true)
}

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件名和路径
	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP") // 环境变量前缀：APP_
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_IDENTITY_BASE_URL

	setDefaults(v)

	// 读取配置文件；文件不存在时仅依赖默认值和环境变量
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// VerifyURL 拼接身份验证端点完整地址
func (c *IdentityConfig) VerifyURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.VerifyPath
}

// UsageURL 拼接用量上报端点完整地址
func (c *IdentityConfig) UsageURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.UsagePath
}
