// Package config provides configuration management for the certificate
// lifecycle manager. It handles loading, validation, and parsing of
// configuration from environment variables and configuration files using
// the TLSCERTD_ prefix convention.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration structure.
// All configuration uses the TLSCERTD_ prefix for environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Cert     CertConfig     `mapstructure:"cert" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Bus      BusConfig      `mapstructure:"bus"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig contains HTTP API server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host" default:"0.0.0.0"`
	Port            int           `mapstructure:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" default:"30s"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" default:"60s"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout" default:"30s"`
}

// CertConfig contains certificate pool and ACME issuance configuration.
type CertConfig struct {
	CertsDir           string        `mapstructure:"certs_dir" validate:"required"`
	ACMEChallengeDir   string        `mapstructure:"acme_challenge_dir" validate:"required"`
	ACMEEmail          string        `mapstructure:"acme_email" validate:"required,email"`
	Staging            bool          `mapstructure:"staging" default:"false"`
	MaxWaitTime        time.Duration `mapstructure:"max_wait_time" default:"90s"`
	ReadOnStartup      bool          `mapstructure:"read_on_startup" default:"true"`
	AutoRenewThreshold int           `mapstructure:"auto_renew_threshold_days" default:"30" validate:"min=1"`
	CertbotBinary      string        `mapstructure:"certbot_binary" default:"certbot"`
}

// GetCAEndpoint returns the appropriate ACME CA endpoint based on staging configuration.
func (c *CertConfig) GetCAEndpoint() string {
	if c.Staging {
		return "https://acme-staging-v02.api.letsencrypt.org/directory"
	}
	return "https://acme-v02.api.letsencrypt.org/directory"
}

// DatabaseConfig contains the MySQL connection configuration for the
// certificate store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" default:"25"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" default:"5"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" default:"30m"`
}

// CacheConfig contains the Redis connection configuration for the read
// cache.
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled" default:"true"`
	Addr        string        `mapstructure:"addr" default:"localhost:6379"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db" default:"0"`
	ListTTL     time.Duration `mapstructure:"list_ttl" default:"300s"`
	DetailTTL   time.Duration `mapstructure:"detail_ttl" default:"60s"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" default:"5s"`
}

// BusConfig contains the Kafka event bus configuration.
type BusConfig struct {
	Enabled           bool     `mapstructure:"enabled" default:"true"`
	BootstrapServers  []string `mapstructure:"bootstrap_servers" validate:"required_if=Enabled true"`
	RefreshTopic      string   `mapstructure:"refresh_topic" default:"certificate.refresh"`
	CacheInvalidTopic string   `mapstructure:"cache_invalidate_topic" default:"certificate.cache-invalidate"`
	ConsumerGroup     string   `mapstructure:"consumer_group" default:"tlscertd-worker"`
}

// ScheduleConfig contains the weekly pool import and daily auto-renewal
// cron configuration.
type ScheduleConfig struct {
	Enabled      bool `mapstructure:"enabled" default:"true"`
	WeeklyDay    int  `mapstructure:"weekly_day" default:"0" validate:"min=0,max=6"`
	WeeklyHour   int  `mapstructure:"weekly_hour" default:"3" validate:"min=0,max=23"`
	WeeklyMinute int  `mapstructure:"weekly_minute" default:"0" validate:"min=0,max=59"`
	DailyHour    int  `mapstructure:"daily_hour" default:"4" validate:"min=0,max=23"`
	DailyMinute  int  `mapstructure:"daily_minute" default:"0" validate:"min=0,max=59"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" default:"json" validate:"oneof=json text"`
	Output string `mapstructure:"output" default:"stdout"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" default:"true"`
	Path    string `mapstructure:"path" default:"/metrics"`
	Port    int    `mapstructure:"port" default:"9090" validate:"min=1,max=65535"`
}

// GetServerAddress returns the formatted server address for HTTP listening.
func (s *ServerConfig) GetServerAddress() string {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WebsitesDir returns the pool directory for the websites store.
func (c *CertConfig) WebsitesDir() string {
	return c.CertsDir + "/Websites"
}

// APIsDir returns the pool directory for the apis store.
func (c *CertConfig) APIsDir() string {
	return c.CertsDir + "/Apis"
}
