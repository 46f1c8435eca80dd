package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ConfigLoader defines the interface for loading and validating configuration.
type ConfigLoader interface {
	Load() (*Config, error)
	Watch(ctx context.Context) (<-chan *Config, error)
	Validate(cfg *Config) error
}

// configLoader implements ConfigLoader using Viper for configuration management.
type configLoader struct {
	validator *validator.Validate
}

// NewConfigLoader creates a new configuration loader with validation.
func NewConfigLoader() ConfigLoader {
	return &configLoader{
		validator: validator.New(),
	}
}

// Load loads configuration from environment variables and config files.
// It follows the TLSCERTD_ environment variable prefix convention.
func (l *configLoader) Load() (*Config, error) {
	v := viper.New()

	// Set configuration file properties
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/tlscertd/")
	v.AddConfigPath("$HOME/.tlscertd")
	v.AddConfigPath(".")

	// Environment variable configuration
	v.SetEnvPrefix("TLSCERTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file if it exists (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is acceptable, continue with env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Watch monitors configuration changes and returns a channel with updated configs.
// This enables live configuration reloading.
func (l *configLoader) Watch(ctx context.Context) (<-chan *Config, error) {
	v := viper.New()

	// Set configuration file properties
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/tlscertd/")
	v.AddConfigPath("$HOME/.tlscertd")
	v.AddConfigPath(".")

	// Environment variable configuration
	v.SetEnvPrefix("TLSCERTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read initial config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read initial config file: %w", err)
		}
	}

	configCh := make(chan *Config, 1)

	// Send initial configuration
	var initialCfg Config
	if err := v.Unmarshal(&initialCfg); err == nil {
		if err := l.Validate(&initialCfg); err == nil {
			select {
			case configCh <- &initialCfg:
			case <-ctx.Done():
				close(configCh)
				return nil, ctx.Err()
			}
		}
	}

	// Watch for configuration changes
	v.WatchConfig()
	v.OnConfigChange(func(in fsnotify.Event) {
		var newCfg Config
		if err := v.Unmarshal(&newCfg); err != nil {
			// Log error but continue watching
			return
		}

		if err := l.Validate(&newCfg); err != nil {
			// Log validation error but continue watching
			return
		}

		select {
		case configCh <- &newCfg:
		case <-ctx.Done():
			return
		}
	})

	// Monitor context cancellation
	go func() {
		defer close(configCh)
		<-ctx.Done()
	}()

	return configCh, nil
}

// Validate validates the configuration using struct tags and custom validation rules.
func (l *configLoader) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	if err := l.validator.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// Custom validation rules
	if err := l.validateCustomRules(cfg); err != nil {
		return fmt.Errorf("custom validation failed: %w", err)
	}

	return nil
}

// validateCustomRules performs additional validation beyond struct tags.
func (l *configLoader) validateCustomRules(cfg *Config) error {
	if cfg.Server.Port == cfg.Metrics.Port {
		return fmt.Errorf("metrics port cannot conflict with the server port")
	}

	if cfg.Bus.Enabled && len(cfg.Bus.BootstrapServers) == 0 {
		return fmt.Errorf("bus.bootstrap_servers is required when the event bus is enabled")
	}

	if cfg.Schedule.Enabled {
		if cfg.Schedule.WeeklyDay < 0 || cfg.Schedule.WeeklyDay > 6 {
			return fmt.Errorf("schedule.weekly_day must be between 0 and 6")
		}
		if cfg.Schedule.DailyHour < 0 || cfg.Schedule.DailyHour > 23 {
			return fmt.Errorf("schedule.daily_hour must be between 0 and 23")
		}
	}

	return nil
}
