package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *RelayConfig {
	cfg := &RelayConfig{}
	cfg.applyDefaults()
	cfg.Observability.Metrics.Enabled = true
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, Validate(validConfig()))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RelayConfig)
	}{
		{
			name:   "nil config is handled by caller",
			mutate: nil,
		},
		{
			name:   "server port zero",
			mutate: func(c *RelayConfig) { c.Server.Port = -1 },
		},
		{
			name:   "server port too large",
			mutate: func(c *RelayConfig) { c.Server.Port = 70000 },
		},
		{
			name:   "empty service domain",
			mutate: func(c *RelayConfig) { c.Upstream.ServiceDomain = "" },
		},
		{
			name:   "non numeric facade port",
			mutate: func(c *RelayConfig) { c.Upstream.FacadePort = "http" },
		},
		{
			name:   "non numeric dev console port",
			mutate: func(c *RelayConfig) { c.Upstream.DevConsole.Port = "" },
		},
		{
			name:   "lsp url not websocket",
			mutate: func(c *RelayConfig) { c.Upstream.LSPURL = "http://lsp:8081/lsp" },
		},
		{
			name:   "lsp url relative",
			mutate: func(c *RelayConfig) { c.Upstream.LSPURL = "/lsp" },
		},
		{
			name:   "zero dial timeout",
			mutate: func(c *RelayConfig) { c.Upstream.DialTimeout = 0 },
		},
		{
			name:   "metrics port collides with server port",
			mutate: func(c *RelayConfig) { c.Observability.Metrics.Port = c.Server.Port },
		},
		{
			name:   "invalid metrics port",
			mutate: func(c *RelayConfig) { c.Observability.Metrics.Port = -5 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.mutate == nil {
				assert.Error(t, Validate(nil))
				return
			}
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestValidateMetricsDisabledSkipsPortChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Observability.Metrics.Enabled = false
	cfg.Observability.Metrics.Port = -5

	assert.NoError(t, Validate(cfg))
}

func TestValidateAcceptsWSSURL(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.LSPURL = "wss://lsp.internal:443/lsp"

	assert.NoError(t, Validate(cfg))
}
