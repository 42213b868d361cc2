package app

import (
	"fmt"
	"strings"
	"time"
)

// ApplyRuntimeDefaults fills gaps a partial configuration leaves behind.
// It returns a map describing which keys were defaulted so callers can log
// the event.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	applied := make(map[string]bool)

	if strings.TrimSpace(cfg.Server.LogLevel) == "" {
		cfg.Server.LogLevel = "info"
		applied["server.log_level"] = true
	}

	if cfg.Auth.Session.TTL <= 0 {
		cfg.Auth.Session.TTL = 8 * time.Hour
		applied["auth.session.ttl"] = true
	}
	if cfg.Auth.Session.RefreshThreshold <= 0 {
		cfg.Auth.Session.RefreshThreshold = 20 * time.Minute
		applied["auth.session.refresh_threshold"] = true
	}
	if cfg.Auth.Session.RefreshThreshold >= cfg.Auth.Session.TTL {
		return nil, fmt.Errorf("config: refresh threshold must be shorter than the session ttl")
	}

	if cfg.Remote.Timeout <= 0 {
		cfg.Remote.Timeout = 30 * time.Second
		applied["remote.timeout"] = true
	}
	if strings.TrimSpace(cfg.Remote.ClientTag) == "" {
		cfg.Remote.ClientTag = "sitebridge"
		applied["remote.client_tag"] = true
	}

	return applied, nil
}
