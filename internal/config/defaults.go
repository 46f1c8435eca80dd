package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults configures all default values for the application configuration.
// This ensures consistent behavior when configuration values are not explicitly set.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "30s")

	// Cert pool / ACME defaults
	v.SetDefault("cert.staging", false)
	v.SetDefault("cert.max_wait_time", "90s")
	v.SetDefault("cert.read_on_startup", true)
	v.SetDefault("cert.auto_renew_threshold_days", 30)
	v.SetDefault("cert.certbot_binary", "certbot")

	// Database defaults
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.list_ttl", "300s")
	v.SetDefault("cache.detail_ttl", "60s")
	v.SetDefault("cache.dial_timeout", "5s")

	// Event bus defaults
	v.SetDefault("bus.enabled", true)
	v.SetDefault("bus.refresh_topic", "certificate.refresh")
	v.SetDefault("bus.cache_invalidate_topic", "certificate.cache-invalidate")
	v.SetDefault("bus.consumer_group", "tlscertd-worker")

	// Scheduler defaults
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.weekly_day", 0)
	v.SetDefault("schedule.weekly_hour", 3)
	v.SetDefault("schedule.weekly_minute", 0)
	v.SetDefault("schedule.daily_hour", 4)
	v.SetDefault("schedule.daily_minute", 0)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Keys without a default are bound explicitly so that values supplied
	// only through TLSCERTD_ environment variables reach Unmarshal.
	for _, key := range []string{
		"cert.certs_dir", "cert.acme_challenge_dir", "cert.acme_email",
		"database.dsn", "cache.password", "bus.bootstrap_servers",
	} {
		_ = v.BindEnv(key)
	}
}

// GetDefaultConfig returns a configuration object with all default values applied.
// This is useful for testing and documentation purposes.
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			GracefulTimeout: 30 * time.Second,
		},
		Cert: CertConfig{
			Staging:            false,
			MaxWaitTime:        90 * time.Second,
			ReadOnStartup:      true,
			AutoRenewThreshold: 30,
			CertbotBinary:      "certbot",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled:     true,
			Addr:        "localhost:6379",
			DB:          0,
			ListTTL:     300 * time.Second,
			DetailTTL:   60 * time.Second,
			DialTimeout: 5 * time.Second,
		},
		Bus: BusConfig{
			Enabled:           true,
			RefreshTopic:      "certificate.refresh",
			CacheInvalidTopic: "certificate.cache-invalidate",
			ConsumerGroup:     "tlscertd-worker",
		},
		Schedule: ScheduleConfig{
			Enabled:      true,
			WeeklyDay:    0,
			WeeklyHour:   3,
			WeeklyMinute: 0,
			DailyHour:    4,
			DailyMinute:  0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
	}
}
