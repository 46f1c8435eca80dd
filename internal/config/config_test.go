package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	assert.False(t, cfg.Cert.Staging)
	assert.Equal(t, 30, cfg.Cert.AutoRenewThreshold)
	assert.Equal(t, "certbot", cfg.Cert.CertbotBinary)

	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Cache.Addr)

	assert.True(t, cfg.Bus.Enabled)
	assert.Equal(t, "certificate.refresh", cfg.Bus.RefreshTopic)
	assert.Equal(t, "certificate.cache-invalidate", cfg.Bus.CacheInvalidTopic)

	assert.True(t, cfg.Schedule.Enabled)
	assert.Equal(t, 0, cfg.Schedule.WeeklyDay)
	assert.Equal(t, 4, cfg.Schedule.DailyHour)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestCertConfig_GetCAEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		staging bool
		want    string
	}{
		{"production", false, "https://acme-v02.api.letsencrypt.org/directory"},
		{"staging", true, "https://acme-staging-v02.api.letsencrypt.org/directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CertConfig{Staging: tt.staging}
			assert.Equal(t, tt.want, c.GetCAEndpoint())
		})
	}
}

func TestCertConfig_PoolDirs(t *testing.T) {
	c := CertConfig{CertsDir: "/var/lib/tlscertd/pool"}
	assert.Equal(t, "/var/lib/tlscertd/pool/Websites", c.WebsitesDir())
	assert.Equal(t, "/var/lib/tlscertd/pool/Apis", c.APIsDir())
}

func TestServerConfig_GetServerAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"explicit host", ServerConfig{Host: "localhost", Port: 9090}, "localhost:9090"},
		{"empty host defaults to all interfaces", ServerConfig{Host: "", Port: 8080}, "0.0.0.0:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			assert.Equal(t, tt.want, cfg.GetServerAddress())
		})
	}
}
