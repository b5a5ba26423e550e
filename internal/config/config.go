package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "LOCALLINK"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultDatabasePath   = "locallink.db"
	defaultLogLevel       = "info"
	defaultRateLimitRPS   = 5.0
	defaultRateLimitBurst = 10
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress      string
	LogLevel         string
	DatabasePath     string
	AuthIssuer       string
	AuthAudience     string
	AuthJWKSURL      string
	DirectoryBaseURL string
	DirectoryOrg     string
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("rate_limit.enabled", true)
	configViper.SetDefault("rate_limit.rps", defaultRateLimitRPS)
	configViper.SetDefault("rate_limit.burst", defaultRateLimitBurst)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		LogLevel:         configViper.GetString("log.level"),
		DatabasePath:     configViper.GetString("database.path"),
		AuthIssuer:       configViper.GetString("auth.issuer"),
		AuthAudience:     configViper.GetString("auth.audience"),
		AuthJWKSURL:      configViper.GetString("auth.jwks_url"),
		DirectoryBaseURL: configViper.GetString("directory.base_url"),
		DirectoryOrg:     configViper.GetString("directory.org"),
		RateLimitEnabled: configViper.GetBool("rate_limit.enabled"),
		RateLimitRPS:     configViper.GetFloat64("rate_limit.rps"),
		RateLimitBurst:   configViper.GetInt("rate_limit.burst"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"database.path", c.DatabasePath},
		{"auth.issuer", c.AuthIssuer},
		{"auth.audience", c.AuthAudience},
		{"auth.jwks_url", c.AuthJWKSURL},
		{"directory.base_url", c.DirectoryBaseURL},
		{"directory.org", c.DirectoryOrg},
	}
	for _, entry := range required {
		if strings.TrimSpace(entry.value) == "" {
			return fmt.Errorf("%s is required", entry.key)
		}
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("rate_limit.rps and rate_limit.burst must be positive when rate limiting is enabled")
	}
	return nil
}
