package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the workflow client, the MCP gateway
// and the emulator.
type Config struct {
	Zosmf struct {
		Host               string `mapstructure:"host"`
		Port               int    `mapstructure:"port"`
		Protocol           string `mapstructure:"protocol"`
		BasePath           string `mapstructure:"base_path"`
		Version            string `mapstructure:"version"`
		RejectUnauthorized bool   `mapstructure:"reject_unauthorized"`
	} `mapstructure:"zosmf"`
	Auth struct {
		User         string   `mapstructure:"user"`
		Password     string   `mapstructure:"password"`
		Token        string   `mapstructure:"token"`
		TokenURL     string   `mapstructure:"token_url"`
		ClientID     string   `mapstructure:"client_id"`
		ClientSecret string   `mapstructure:"client_secret"`
		Scopes       []string `mapstructure:"scopes"`
		Issuer       string   `mapstructure:"issuer"`
	} `mapstructure:"auth"`
	Polling struct {
		Interval    time.Duration `mapstructure:"interval"`
		MaxInterval time.Duration `mapstructure:"max_interval"`
		Timeout     time.Duration `mapstructure:"timeout"`
	} `mapstructure:"polling"`
	RateLimit struct {
		RequestsPerSecond float64 `mapstructure:"rps"`
		Burst             int     `mapstructure:"burst"`
	} `mapstructure:"rate_limit"`
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		File   string `mapstructure:"file"`
	} `mapstructure:"logging"`
	DB struct {
		Enable   bool   `mapstructure:"enable"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Server struct {
		Addr      string `mapstructure:"addr"`
		SeedFile  string `mapstructure:"seed_file"`
		DevBypass bool   `mapstructure:"dev_bypass"`
	} `mapstructure:"server"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
}

// LoadConfig loads the configuration from a file and the environment.
// With an empty path, config.yaml is searched in the usual places and a
// missing file is not an error. Environment variables use the ZWF_ prefix,
// e.g. ZWF_ZOSMF_HOST.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("zwf")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.zwf")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	config.Zosmf.BasePath = normalizeBasePath(config.Zosmf.BasePath)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks values that would otherwise fail later in confusing ways.
func (c *Config) Validate() error {
	if c.Zosmf.Version == "" {
		return errors.New("zosmf.version must not be empty")
	}
	if c.Polling.Interval <= 0 {
		return errors.New("polling.interval must be positive")
	}
	if c.Polling.MaxInterval < c.Polling.Interval {
		c.Polling.MaxInterval = c.Polling.Interval
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return errors.New("rate_limit.rps must not be negative")
	}
	return nil
}

// BaseURL is the scheme, host, port and base path of the z/OSMF server.
func (c *Config) BaseURL() string {
	protocol := c.Zosmf.Protocol
	if protocol == "" {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s:%d%s", protocol, c.Zosmf.Host, c.Zosmf.Port, c.Zosmf.BasePath)
}

// DSN is the Postgres connection string for the run history store.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode,
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("zosmf.host", "localhost")
	v.SetDefault("zosmf.port", 443)
	v.SetDefault("zosmf.protocol", "https")
	v.SetDefault("zosmf.version", "1.0")
	v.SetDefault("zosmf.reject_unauthorized", true)
	v.SetDefault("polling.interval", 2*time.Second)
	v.SetDefault("polling.max_interval", 15*time.Second)
	v.SetDefault("polling.timeout", 30*time.Minute)
	v.SetDefault("rate_limit.rps", 0)
	v.SetDefault("rate_limit.burst", 1)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "human")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("server.addr", ":8080")
}

// normalizeBasePath makes an optional API mediation layer prefix start with
// a slash and drops any trailing slash.
func normalizeBasePath(input string) string {
	p := strings.TrimSpace(input)
	p = strings.TrimRight(p, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
