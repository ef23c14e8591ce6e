package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Validate checks the configuration for values the relay cannot run with.
func Validate(cfg *RelayConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}

	if cfg.Upstream.ServiceDomain == "" {
		return fmt.Errorf("upstream.serviceDomain must not be empty")
	}

	if err := validatePort("upstream.facadePort", cfg.Upstream.FacadePort); err != nil {
		return err
	}
	if err := validatePort("upstream.devConsole.port", cfg.Upstream.DevConsole.Port); err != nil {
		return err
	}

	if err := validateWSURL("upstream.lspURL", cfg.Upstream.LSPURL); err != nil {
		return err
	}

	if cfg.Upstream.DialTimeout.Duration() <= 0 {
		return fmt.Errorf("upstream.dialTimeout must be positive")
	}

	if cfg.Observability.Metrics.Enabled {
		port := cfg.Observability.Metrics.Port
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid metrics port %d", port)
		}
		if port == cfg.Server.Port {
			return fmt.Errorf("metrics port %d collides with server port", port)
		}
	}

	return nil
}

// validatePort checks that a string port field is a valid TCP port.
func validatePort(field, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("%s: invalid port %q", field, value)
	}
	return nil
}

// validateWSURL checks that a URL is an absolute ws:// or wss:// address.
func validateWSURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if !strings.HasPrefix(u.Scheme, "ws") || u.Host == "" {
		return fmt.Errorf("%s: %q is not an absolute ws:// or wss:// URL", field, value)
	}
	return nil
}
