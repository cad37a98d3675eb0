package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TM_SERVER_ADDR.
const EnvPrefix = "TM"

// ServerConfig configures cmd/server.
type ServerConfig struct {
	Addr         string `mapstructure:"addr" yaml:"addr"`
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	// RateLimit is the sustained per-user request rate on /api; 0 disables it.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// ClientConfig configures cmd/notifyctl.
type ClientConfig struct {
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	PageSize int    `mapstructure:"page_size" yaml:"page_size"`

	ResyncInterval time.Duration `mapstructure:"resync_interval" yaml:"resync_interval"`
	ReconnectBase  time.Duration `mapstructure:"reconnect_base" yaml:"reconnect_base"`
	ReconnectMax   time.Duration `mapstructure:"reconnect_max" yaml:"reconnect_max"`
	DedupTTL       time.Duration `mapstructure:"dedup_ttl" yaml:"dedup_ttl"`
}

// Config is the top-level configuration file.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Client ClientConfig `mapstructure:"client" yaml:"client"`
}

// DefaultConfigPath returns ~/.config/task-notifications/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "task-notifications", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8008")
	v.SetDefault("server.database_path", "task-notifications.db")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.jwt_secret", "development-insecure-secret-change-me")
	v.SetDefault("server.jwt_issuer", "task-notifications-api")
	v.SetDefault("server.jwt_audience", "task-notifications-clients")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)

	v.SetDefault("client.base_url", "http://localhost:8008")
	v.SetDefault("client.username", "")
	v.SetDefault("client.password", "")
	v.SetDefault("client.page_size", 20)
	v.SetDefault("client.resync_interval", "2m")
	v.SetDefault("client.reconnect_base", "500ms")
	v.SetDefault("client.reconnect_max", "30s")
	v.SetDefault("client.dedup_ttl", "10m")
}

// Load reads the YAML file at path, falling back to defaults when it does
// not exist. TM_-prefixed environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			var pathErr *os.PathError
			if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// maxPageSize is the largest page the notifications endpoint serves.
const maxPageSize = 100

func (c *Config) validate() error {
	if c.Server.JWTSecret == "" {
		return errors.New("config: server.jwt_secret must not be empty")
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return errors.New("config: server rate limit must not be negative")
	}
	if c.Client.PageSize < 1 || c.Client.PageSize > maxPageSize {
		return fmt.Errorf("config: client.page_size must be between 1 and %d, got %d", maxPageSize, c.Client.PageSize)
	}
	if c.Client.ReconnectMax < c.Client.ReconnectBase {
		return errors.New("config: client.reconnect_max must be at least client.reconnect_base")
	}
	return nil
}
