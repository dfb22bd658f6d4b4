package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Naver    NaverConfig    `mapstructure:"naver"`
	Batch    BatchConfig    `mapstructure:"batch"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	URL             string        `mapstructure:"url"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
// Parameters: none.
// Returns:
//   - string: PostgreSQL URL or SQLite file path.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.URL
	}
	return c.Path
}

type NaverConfig struct {
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	APIURL         string        `mapstructure:"api_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryCount     int           `mapstructure:"retry_count"`
	PageSize       int           `mapstructure:"page_size"`
}

type BatchConfig struct {
	RateLimitSeconds  int           `mapstructure:"rate_limit_seconds"`
	CollectTimeout    time.Duration `mapstructure:"collect_timeout"`
	CollectMaxResults int           `mapstructure:"collect_max_results"`
	UpdateChunkSize   int           `mapstructure:"update_chunk_size"`
	SubscriberBuffer  int           `mapstructure:"subscriber_buffer"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/products.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("naver.api_url", "https://openapi.naver.com/v1/search/shop.json")
	v.SetDefault("naver.request_timeout", 30*time.Second)
	v.SetDefault("naver.retry_count", 3)
	v.SetDefault("naver.page_size", 100)
	v.SetDefault("batch.rate_limit_seconds", 60)
	v.SetDefault("batch.collect_timeout", 600*time.Second)
	v.SetDefault("batch.collect_max_results", 1000)
	v.SetDefault("batch.update_chunk_size", 50)
	v.SetDefault("batch.subscriber_buffer", 8)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("naver.client_id", "NAVER_CLIENT_ID")
	v.BindEnv("naver.client_secret", "NAVER_CLIENT_SECRET")
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.path", "DATABASE_PATH")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Naver.ClientID == "" || cfg.Naver.ClientSecret == "" {
		return nil, fmt.Errorf("naver API credentials are not configured (NAVER_CLIENT_ID / NAVER_CLIENT_SECRET)")
	}

	return &cfg, nil
}
