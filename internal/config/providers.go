package config

import (
	"context"
	"fmt"

	"github.com/nfxvault/tlscertd/internal/observability"
)

// ProvideConfig loads and returns the main configuration.
// It first attempts to load secrets from Doppler if available,
// then proceeds with the regular configuration loading process.
func ProvideConfig() (*Config, error) {
	// The real logger depends on configuration, so bootstrap with the
	// plain stdout logger until the config is loaded.
	logger := &basicLogger{}

	// Secret injection is best-effort; a broken Doppler setup must not
	// keep a node from booting with env-provided credentials.
	if err := NewDopplerProvider(logger).LoadSecrets(context.Background()); err != nil {
		logger.Warn(context.Background(), fmt.Sprintf("doppler secret injection failed: %v", err))
	}

	loader := NewConfigLoader()
	return loader.Load()
}

// basicLogger is a simple implementation of the observability.Logger interface
// used during initial configuration loading.
type basicLogger struct{}

func (l *basicLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {
	fmt.Printf("[DEBUG] %s\n", msg)
}

func (l *basicLogger) Info(ctx context.Context, msg string, fields ...observability.Field) {
	fmt.Printf("[INFO] %s\n", msg)
}

func (l *basicLogger) Warn(ctx context.Context, msg string, fields ...observability.Field) {
	fmt.Printf("[WARN] %s\n", msg)
}

func (l *basicLogger) Error(ctx context.Context, err error, msg string, fields ...observability.Field) {
	fmt.Printf("[ERROR] %s: %v\n", msg, err)
}

func (l *basicLogger) WithFields(fields ...observability.Field) observability.Logger {
	return l
}

func (l *basicLogger) WithContext(ctx context.Context) observability.Logger {
	return l
}

// ProvideServerConfig extracts server configuration from environment variables.
func ProvideServerConfig() (ServerConfig, error) {
	cfg, err := ProvideConfig()
	if err != nil {
		return ServerConfig{}, err
	}
	return cfg.Server, nil
}

// ProvideCertConfig extracts certificate pool and ACME configuration.
func ProvideCertConfig() (CertConfig, error) {
	cfg, err := ProvideConfig()
	if err != nil {
		return CertConfig{}, err
	}
	return cfg.Cert, nil
}

// ProvideDatabaseConfig extracts the certificate store's MySQL configuration.
func ProvideDatabaseConfig() (DatabaseConfig, error) {
	cfg, err := ProvideConfig()
	if err != nil {
		return DatabaseConfig{}, err
	}
	return cfg.Database, nil
}

// ProvideCacheConfig extracts the read-cache's Redis configuration.
func ProvideCacheConfig() (CacheConfig, error) {
	cfg, err := ProvideConfig()
	if err != nil {
		return CacheConfig{}, err
	}
	return cfg.Cache, nil
}

// ProvideBusConfig extracts the Kafka event bus configuration.
func ProvideBusConfig() (BusConfig, error) {
	cfg, err := ProvideConfig()
	if err != nil {
		return BusConfig{}, err
	}
	return cfg.Bus, nil
}

// ProvideScheduleConfig extracts the cron schedule configuration.
func ProvideScheduleConfig() (ScheduleConfig, error) {
	cfg, err := ProvideConfig()
	if err != nil {
		return ScheduleConfig{}, err
	}
	return cfg.Schedule, nil
}

// ProvideLoggingConfig extracts logging configuration from environment variables.
func ProvideLoggingConfig() (observability.LoggingConfig, error) {
	cfg, err := ProvideConfig()
	if err != nil {
		return observability.LoggingConfig{}, err
	}

	// Convert config.LoggingConfig to observability.LoggingConfig
	return observability.LoggingConfig{
		Level:      observability.ParseLogLevel(cfg.Logging.Level),
		Format:     observability.ParseLogFormat(cfg.Logging.Format),
		Output:     cfg.Logging.Output,
		AddSource:  false, // Default value, can be made configurable
		TimeFormat: "",    // Default value, can be made configurable
	}, nil
}

// ProvideMetricsConfig extracts metrics configuration from environment variables.
func ProvideMetricsConfig() (observability.MetricsConfig, error) {
	cfg, err := ProvideConfig()
	if err != nil {
		return observability.MetricsConfig{}, err
	}

	// Convert config.MetricsConfig to observability.MetricsConfig
	return observability.MetricsConfig{
		Enabled:   cfg.Metrics.Enabled,
		Address:   "",
		Path:      cfg.Metrics.Path,
		Namespace: "tlscertd",
		Subsystem: "certificate",
	}, nil
}

// Provider functions that extract configs from an existing Config instance
// These are used when the Config is already loaded and passed to Wire

// ProvideServerConfigFromConfig extracts server config from a main config.
func ProvideServerConfigFromConfig(cfg *Config) ServerConfig {
	return cfg.Server
}

// ProvideCertConfigFromConfig extracts cert config from a main config.
func ProvideCertConfigFromConfig(cfg *Config) CertConfig {
	return cfg.Cert
}

// ProvideDatabaseConfigFromConfig extracts database config from a main config.
func ProvideDatabaseConfigFromConfig(cfg *Config) DatabaseConfig {
	return cfg.Database
}

// ProvideCacheConfigFromConfig extracts cache config from a main config.
func ProvideCacheConfigFromConfig(cfg *Config) CacheConfig {
	return cfg.Cache
}

// ProvideBusConfigFromConfig extracts bus config from a main config.
func ProvideBusConfigFromConfig(cfg *Config) BusConfig {
	return cfg.Bus
}

// ProvideScheduleConfigFromConfig extracts schedule config from a main config.
func ProvideScheduleConfigFromConfig(cfg *Config) ScheduleConfig {
	return cfg.Schedule
}

// ProvideLoggingConfigFromConfig extracts logging config from a main config.
func ProvideLoggingConfigFromConfig(cfg *Config) observability.LoggingConfig {
	return observability.LoggingConfig{
		Level:      observability.ParseLogLevel(cfg.Logging.Level),
		Format:     observability.ParseLogFormat(cfg.Logging.Format),
		Output:     cfg.Logging.Output,
		AddSource:  false, // Default value, can be made configurable
		TimeFormat: "",    // Default value, can be made configurable
	}
}

// ProvideMetricsConfigFromConfig extracts metrics config from a main config.
func ProvideMetricsConfigFromConfig(cfg *Config) observability.MetricsConfig {
	return observability.MetricsConfig{
		Enabled:   cfg.Metrics.Enabled,
		Address:   "",
		Path:      cfg.Metrics.Path,
		Namespace: "tlscertd",
		Subsystem: "certificate",
	}
}
