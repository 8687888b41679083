package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/threadline/storefront/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	UserJWT  JWTConfig      `mapstructure:"user_jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
	Email    EmailConfig    `mapstructure:"email"`
	Order    OrderConfig    `mapstructure:"order"`
	Razorpay RazorpayConfig `mapstructure:"razorpay"`
	Cron     CronConfig     `mapstructure:"cron"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Stdout     bool   `mapstructure:"stdout"`
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Level,
		Stdout:     c.Stdout,
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// OrderConfig 订单配置
type OrderConfig struct {
	Currency              string  `mapstructure:"currency"`
	TaxRatePercent        float64 `mapstructure:"tax_rate_percent"`
	ShippingFee           float64 `mapstructure:"shipping_fee"`
	FreeShippingThreshold float64 `mapstructure:"free_shipping_threshold"`
	AbandonedMinutes      int     `mapstructure:"abandoned_minutes"`
	SweepEnabled          bool    `mapstructure:"sweep_enabled"`
	SweepSchedule         string  `mapstructure:"sweep_schedule"`
}

// RazorpayConfig 支付网关配置
type RazorpayConfig struct {
	KeyID          string `mapstructure:"key_id"`
	KeySecret      string `mapstructure:"key_secret"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	APIBaseURL     string `mapstructure:"api_base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CronConfig 定时任务鉴权配置
type CronConfig struct {
	Secret string `mapstructure:"secret"`
}

// EmailConfig 邮件服务配置
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
	UseTLS   bool   `mapstructure:"use_tls"`
	UseSSL   bool   `mapstructure:"use_ssl"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	LoginRateLimit  RateLimitConfig `mapstructure:"login_rate_limit"`
	CouponRateLimit RateLimitConfig `mapstructure:"coupon_rate_limit"`
	VerifyRateLimit RateLimitConfig `mapstructure:"verify_rate_limit"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxAttempts   int `mapstructure:"max_attempts"`
}

// Load 读取工作目录下的 config.yml 与环境变量，配置非法时 panic
func Load() *Config {
	cfg, err := LoadFrom(viper.New(), ".", "../", "./etc")
	if err != nil {
		logger.Errorw("config_load_failed", "error", err)
		panic(fmt.Errorf("配置加载失败: %w", err))
	}
	return cfg
}

// LoadFrom 在给定目录中查找 config.yml；文件缺失时只用默认值与环境变量
// 环境变量按键名映射，例如 razorpay.webhook_secret -> RAZORPAY_WEBHOOK_SECRET
func LoadFrom(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logger.Warnw("config_file_missing", "fallback", "env_or_defaults")
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验启动必需的配置项
func (c *Config) Validate() error {
	var problems []string
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		problems = append(problems, "database.dsn is required")
	}
	if len(strings.TrimSpace(c.Order.Currency)) != 3 {
		problems = append(problems, "order.currency must be an ISO 4217 code")
	}
	if c.Order.AbandonedMinutes <= 0 || c.Order.AbandonedMinutes > maxAbandonedMinutes {
		problems = append(problems, fmt.Sprintf("order.abandoned_minutes must be within 1..%d", maxAbandonedMinutes))
	}
	if c.Order.TaxRatePercent < 0 || c.Order.ShippingFee < 0 || c.Order.FreeShippingThreshold < 0 {
		problems = append(problems, "order pricing values must not be negative")
	}
	for name, limit := range map[string]RateLimitConfig{
		"login_rate_limit":  c.Security.LoginRateLimit,
		"coupon_rate_limit": c.Security.CouponRateLimit,
		"verify_rate_limit": c.Security.VerifyRateLimit,
	} {
		if limit.WindowSeconds < 0 || limit.MaxAttempts < 0 {
			problems = append(problems, "security."+name+" must not be negative")
		}
	}
	if c.Email.Enabled && (strings.TrimSpace(c.Email.Host) == "" || strings.TrimSpace(c.Email.From) == "") {
		problems = append(problems, "email.host and email.from are required when email is enabled")
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

// maxAbandonedMinutes 与清理接口的上限一致（30 天）
const maxAbandonedMinutes = 30 * 24 * 60

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("invalid config")

// envAliases 部署平台常用的环境变量名
var envAliases = map[string]string{
	"database.dsn": "DATABASE_URL",
}

var defaults = map[string]interface{}{
	"server.host":                  "0.0.0.0",
	"server.port":                  "8080",
	"server.mode":                  "debug",
	"log.level":                    "",
	"log.stdout":                   false,
	"log.dir":                      "",
	"log.filename":                 "storefront.log",
	"log.max_size_mb":              100,
	"log.max_backups":              7,
	"log.max_age_days":             30,
	"log.compress":                 true,
	"database.driver":              "sqlite",
	"database.dsn":                 "./db/storefront.db",
	"database.pool.max_open_conns": 1,
	"database.pool.max_idle_conns": 1,
	"database.pool.conn_max_lifetime_seconds":  0,
	"database.pool.conn_max_idle_time_seconds": 0,
	"jwt.secret":            "change-me-in-production",
	"jwt.expire_hours":      24,
	"user_jwt.secret":       "user-change-me-in-production",
	"user_jwt.expire_hours": 168,
	"redis.enabled":         true,
	"redis.host":            "127.0.0.1",
	"redis.port":            6379,
	"redis.password":        "",
	"redis.db":              0,
	"redis.prefix":          "sf",
	"queue.enabled":         true,
	"queue.host":            "127.0.0.1",
	"queue.port":            6379,
	"queue.password":        "",
	"queue.db":              1,
	"queue.concurrency":     10,
	"queue.queues":          map[string]int{"default": 10, "critical": 5},
	"cors.allowed_origins":  []string{"*"},
	"cors.allowed_methods":  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
	"cors.allowed_headers": []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Request-ID",
		"X-Cron-Secret",
		"X-Razorpay-Signature",
	},
	"cors.allow_credentials":                    true,
	"cors.max_age":                              600,
	"security.login_rate_limit.window_seconds":  300,
	"security.login_rate_limit.max_attempts":    5,
	"security.coupon_rate_limit.window_seconds": 60,
	"security.coupon_rate_limit.max_attempts":   20,
	"security.verify_rate_limit.window_seconds": 60,
	"security.verify_rate_limit.max_attempts":   10,
	"email.enabled":                             false,
	"email.host":                                "",
	"email.port":                                587,
	"email.username":                            "",
	"email.password":                            "",
	"email.from":                                "",
	"email.from_name":                           "",
	"email.use_tls":                             true,
	"email.use_ssl":                             false,
	"order.currency":                            "INR",
	"order.tax_rate_percent":                    0,
	"order.shipping_fee":                        0,
	"order.free_shipping_threshold":             0,
	"order.abandoned_minutes":                   30,
	"order.sweep_enabled":                       true,
	"order.sweep_schedule":                      "*/10 * * * *",
	"razorpay.key_id":                           "",
	"razorpay.key_secret":                       "",
	"razorpay.webhook_secret":                   "",
	"razorpay.api_base_url":                     "https://api.razorpay.com",
	"razorpay.timeout_seconds":                  10,
	"cron.secret":                               "",
}
