package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	App         AppConfig         `mapstructure:"app"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // 小时
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
	URL   string `mapstructure:"url"` // 对外地址，用于拼接回调 URL
}

// GatewayConfig 支付网关配置
// Env 为 "sandbox" 时使用沙箱地址，其它使用生产地址
type GatewayConfig struct {
	Env             string        `mapstructure:"env"`
	APIKey          string        `mapstructure:"api_key"`
	IPNSecret       string        `mapstructure:"ipn_secret"`
	SandboxURL      string        `mapstructure:"sandbox_url"`
	LiveURL         string        `mapstructure:"live_url"`
	CallbackPath    string        `mapstructure:"callback_path"`
	PayoutEmail     string        `mapstructure:"payout_email"`
	PayoutPassword  string        `mapstructure:"payout_password"`
	PayoutEnabled   bool          `mapstructure:"payout_enabled"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	RetryCount      int           `mapstructure:"retry_count"`
	DefaultCurrency string        `mapstructure:"default_currency"`
}

// BaseURL 根据环境返回网关 API 地址
func (g GatewayConfig) BaseURL() string {
	if g.Env == "sandbox" {
		return g.SandboxURL
	}
	return g.LiveURL
}

// IsSandbox 是否运行在沙箱环境
func (g GatewayConfig) IsSandbox() bool {
	return g.Env == "sandbox"
}

// CurrencyConfig 结算币种元数据
type CurrencyConfig struct {
	Code      string `mapstructure:"code"`
	Decimals  int    `mapstructure:"decimals"`
	URIScheme string `mapstructure:"uri_scheme"` // 如 monero、bitcoin
}

// MarketplaceConfig 市场业务配置
type MarketplaceConfig struct {
	CommissionPercentage float64          `mapstructure:"commission_percentage"`
	PaymentWindowMinutes int              `mapstructure:"payment_window_minutes"`
	ShipDeadlineHours    int              `mapstructure:"ship_deadline_hours"`
	ConfirmDeadlineHours int              `mapstructure:"confirm_deadline_hours"`
	ScanInterval         time.Duration    `mapstructure:"scan_interval"`
	VendorFeeAmount      float64          `mapstructure:"vendor_fee_amount"`
	AdPricePerDay        float64          `mapstructure:"ad_price_per_day"`
	Currencies           []CurrencyConfig `mapstructure:"currencies"`
}

// Currency 查找币种元数据，找不到时返回 false
func (m MarketplaceConfig) Currency(code string) (CurrencyConfig, bool) {
	code = strings.ToLower(code)
	for _, c := range m.Currencies {
		if c.Code == code {
			return c, true
		}
	}
	return CurrencyConfig{}, false
}

var GlobalConfig Config

// Validate 验证配置
func (c *Config) Validate() error {
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if c.Gateway.APIKey == "" {
		return errors.New("payment gateway api key is required")
	}
	if strings.TrimSpace(c.Gateway.IPNSecret) == "" {
		return errors.New("payment gateway ipn secret is required")
	}

	if c.Marketplace.CommissionPercentage < 0 || c.Marketplace.CommissionPercentage >= 100 {
		return errors.New("commission percentage must be in [0, 100)")
	}
	if c.Marketplace.PaymentWindowMinutes <= 0 {
		return errors.New("payment window must be positive")
	}

	return nil
}

// LoadConfig 加载配置
func LoadConfig() {
	// 获取环境变量，默认为dev
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 根据环境选择配置文件
	configName := "config"
	if env != "" && env != "dev" {
		configName = "config." + env
	}

	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("jwt.expire", 24)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("app.env", "dev")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("gateway.env", "sandbox")
	viper.SetDefault("gateway.sandbox_url", "https://api-sandbox.nowpayments.io/v1")
	viper.SetDefault("gateway.live_url", "https://api.nowpayments.io/v1")
	viper.SetDefault("gateway.callback_path", "/webhooks/payment-gateway")
	viper.SetDefault("gateway.payout_enabled", true)
	viper.SetDefault("gateway.timeout", "30s")
	viper.SetDefault("gateway.connect_timeout", "10s")
	viper.SetDefault("gateway.retry_count", 3)
	viper.SetDefault("gateway.default_currency", "xmr")
	viper.SetDefault("marketplace.commission_percentage", 5.0)
	viper.SetDefault("marketplace.payment_window_minutes", 1440)
	viper.SetDefault("marketplace.ship_deadline_hours", 96)
	viper.SetDefault("marketplace.confirm_deadline_hours", 192)
	viper.SetDefault("marketplace.scan_interval", "5m")
	viper.SetDefault("marketplace.vendor_fee_amount", 150.0)
	viper.SetDefault("marketplace.ad_price_per_day", 5.0)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	// 绑定环境变量
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}

	// 手动覆盖，以防 viper 无法正确解析复杂结构或环境变量
	if host := os.Getenv("DB_HOST"); host != "" {
		GlobalConfig.Database.Host = host
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		GlobalConfig.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		GlobalConfig.JWT.Secret = jwtSecret
	}
	if apiKey := os.Getenv("GATEWAY_API_KEY"); apiKey != "" {
		GlobalConfig.Gateway.APIKey = apiKey
	}
	if ipnSecret := os.Getenv("GATEWAY_IPN_SECRET"); ipnSecret != "" {
		GlobalConfig.Gateway.IPNSecret = ipnSecret
	}

	// 验证配置
	if err := GlobalConfig.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Configuration loaded and validated successfully. Environment: %s", GlobalConfig.App.Env)
}
