package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/nfxvault/tlscertd/internal/observability"
)

// DopplerProvider pre-populates the environment from a Doppler project
// before Viper reads it, so the MySQL DSN, Redis password, and Kafka
// credentials never have to live in a config file. Everything is a
// no-op when the Doppler CLI is absent or unconfigured.
type DopplerProvider struct {
	logger observability.Logger

	// seams for tests
	lookPath func(file string) (string, error)
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewDopplerProvider(logger observability.Logger) *DopplerProvider {
	return &DopplerProvider{
		logger:   logger,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// LoadSecrets fetches the configured Doppler secrets and exports each
// one as an environment variable. Variables already present in the
// environment win over Doppler, so a local override stays an override.
func (p *DopplerProvider) LoadSecrets(ctx context.Context) error {
	if _, err := p.lookPath("doppler"); err != nil {
		p.logger.Debug(ctx, "doppler CLI not found, skipping secret injection")
		return nil
	}
	if !p.configured() {
		p.logger.Debug(ctx, "doppler not configured, skipping secret injection")
		return nil
	}

	secrets, err := p.fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch doppler secrets: %w", err)
	}

	injected := 0
	for key, value := range secrets {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("export secret %s: %w", key, err)
		}
		injected++
	}

	p.logger.Info(ctx, "doppler secrets injected into environment",
		observability.Int("injected", injected),
		observability.Int("fetched", len(secrets)),
	)
	return nil
}

// configured reports whether a token or a project config file is
// available for the CLI to act on.
func (p *DopplerProvider) configured() bool {
	if os.Getenv("DOPPLER_TOKEN") != "" {
		return true
	}
	if _, err := os.Stat("doppler.yaml"); err == nil {
		return true
	}
	if home, err := os.UserHomeDir(); err == nil {
		if _, err := os.Stat(filepath.Join(home, ".doppler.yaml")); err == nil {
			return true
		}
	}
	return false
}

func (p *DopplerProvider) fetch(ctx context.Context) (map[string]string, error) {
	args := []string{"secrets", "download", "--no-file", "--format", "json"}
	if project := os.Getenv("DOPPLER_PROJECT"); project != "" {
		args = append(args, "--project", project)
	}
	if cfg := os.Getenv("DOPPLER_CONFIG"); cfg != "" {
		args = append(args, "--config", cfg)
	}

	out, err := p.run(ctx, "doppler", args...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("doppler: %s", string(exitErr.Stderr))
		}
		return nil, err
	}

	secrets := make(map[string]string)
	if err := json.Unmarshal(out, &secrets); err != nil {
		return nil, fmt.Errorf("decode doppler output: %w", err)
	}
	return secrets, nil
}
