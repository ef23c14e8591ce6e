// Package config defines and loads the relay configuration.
package config

import (
	"os"
	"strconv"
	"time"
)

// Default values for the relay configuration. Every default can be
// overridden through the YAML file or the RELAY_* environment variables.
const (
	DefaultPort        = 8080
	DefaultMetricsPort = 9090
	DefaultMetricsPath = "/metrics"

	DefaultServiceDomain = "svc.cluster.local"
	DefaultFacadePort    = "8080"
	DefaultLSPURL        = "ws://lsp.lsp.svc.cluster.local:8081/lsp"

	DefaultDevConsoleService   = "dev-console"
	DefaultDevConsoleNamespace = "test"
	DefaultDevConsolePort      = "8080"
	DefaultDevConsoleAgent     = "dev-console"

	DefaultDialTimeout     = 10 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// RelayConfig is the top-level configuration document. It is constructed
// once at process start and read-only afterwards.
type RelayConfig struct {
	Server        ServerConfig        `yaml:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig configures the relay listener.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	Address         string   `yaml:"address,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty"`
}

// UpstreamConfig holds the static knobs for upstream address construction.
type UpstreamConfig struct {
	// ServiceDomain is the cluster-internal DNS suffix appended to
	// {service}.{namespace} when building upstream hosts.
	ServiceDomain string `yaml:"serviceDomain"`

	// FacadePort is the port the per-agent facade service listens on.
	FacadePort string `yaml:"facadePort"`

	// LSPURL is the fully qualified ws:// address of the shared
	// language-server endpoint. It is used as-is, never derived.
	LSPURL string `yaml:"lspURL"`

	// DevConsole configures the per-session dev console route.
	DevConsole DevConsoleConfig `yaml:"devConsole"`

	// DialTimeout bounds the wait for an upstream connection to open.
	DialTimeout Duration `yaml:"dialTimeout"`
}

// DevConsoleConfig holds the dev-console route defaults.
type DevConsoleConfig struct {
	Service      string `yaml:"service"`
	Namespace    string `yaml:"namespace"`
	Port         string `yaml:"port"`
	DefaultAgent string `yaml:"defaultAgent"`
}

// ObservabilityConfig groups logging, metrics, and tracing settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	Output string `yaml:"output,omitempty"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// TracingConfig represents tracing configuration.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty"`
}

// Default returns a RelayConfig populated from the RELAY_* environment
// variables, falling back to the package defaults. It is used when no
// configuration file is supplied.
func Default() *RelayConfig {
	return &RelayConfig{
		Server: ServerConfig{
			Port:            envInt("RELAY_PORT", DefaultPort),
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		Upstream: UpstreamConfig{
			ServiceDomain: envString("RELAY_SERVICE_DOMAIN", DefaultServiceDomain),
			FacadePort:    envString("RELAY_FACADE_PORT", DefaultFacadePort),
			LSPURL:        envString("RELAY_LSP_URL", DefaultLSPURL),
			DevConsole: DevConsoleConfig{
				Service:      envString("RELAY_DEV_CONSOLE_SERVICE", DefaultDevConsoleService),
				Namespace:    envString("RELAY_DEV_CONSOLE_NAMESPACE", DefaultDevConsoleNamespace),
				Port:         envString("RELAY_DEV_CONSOLE_PORT", DefaultDevConsolePort),
				DefaultAgent: envString("RELAY_DEV_CONSOLE_AGENT", DefaultDevConsoleAgent),
			},
			DialTimeout: Duration(DefaultDialTimeout),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  envString("RELAY_LOG_LEVEL", "info"),
				Format: envString("RELAY_LOG_FORMAT", "json"),
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Port:    envInt("RELAY_METRICS_PORT", DefaultMetricsPort),
				Path:    DefaultMetricsPath,
			},
			Tracing: TracingConfig{
				Enabled:      false,
				SamplingRate: 1.0,
			},
		},
	}
}

// applyDefaults fills zero-valued fields after a YAML load.
func (c *RelayConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if c.Upstream.ServiceDomain == "" {
		c.Upstream.ServiceDomain = DefaultServiceDomain
	}
	if c.Upstream.FacadePort == "" {
		c.Upstream.FacadePort = DefaultFacadePort
	}
	if c.Upstream.LSPURL == "" {
		c.Upstream.LSPURL = DefaultLSPURL
	}
	if c.Upstream.DevConsole.Service == "" {
		c.Upstream.DevConsole.Service = DefaultDevConsoleService
	}
	if c.Upstream.DevConsole.Namespace == "" {
		c.Upstream.DevConsole.Namespace = DefaultDevConsoleNamespace
	}
	if c.Upstream.DevConsole.Port == "" {
		c.Upstream.DevConsole.Port = DefaultDevConsolePort
	}
	if c.Upstream.DevConsole.DefaultAgent == "" {
		c.Upstream.DevConsole.DefaultAgent = DefaultDevConsoleAgent
	}
	if c.Upstream.DialTimeout == 0 {
		c.Upstream.DialTimeout = Duration(DefaultDialTimeout)
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "json"
	}
	if c.Observability.Metrics.Port == 0 {
		c.Observability.Metrics.Port = DefaultMetricsPort
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = DefaultMetricsPath
	}
	if c.Observability.Tracing.SamplingRate == 0 {
		c.Observability.Tracing.SamplingRate = 1.0
	}
}

// envString returns the environment variable value or a default.
func envString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envInt returns the environment variable as an int or a default.
func envInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
