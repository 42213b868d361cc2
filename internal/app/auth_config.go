package app

import (
	"fmt"

	"github.com/sitebridgehq/sitebridge/internal/auth"
	"github.com/sitebridgehq/sitebridge/internal/database"
	"github.com/sitebridgehq/sitebridge/internal/erp"
)

// BrokerConfig converts AuthConfig into SessionBroker parameters. The
// encryption key and classifier rules are resolved separately because the
// key may come from persisted runtime state.
func (c AuthConfig) BrokerConfig(encryptionKey []byte, rules []erp.ClassifierRule) auth.BrokerConfig {
	return auth.BrokerConfig{
		SessionTTL:       c.Session.TTL,
		RefreshThreshold: c.Session.RefreshThreshold,
		TokenLength:      c.Session.TokenLength,
		Admin: auth.AdminRealm{
			AccessCode: c.Admin.AccessCode,
			Users:      c.Admin.Users,
		},
		EncryptionKey:   encryptionKey,
		ClassifierRules: rules,
	}
}

// ClassifierRules parses configured classifier overrides. An empty list
// means the built-in defaults apply.
func (c RemoteConfig) ClassifierRules() ([]erp.ClassifierRule, error) {
	if len(c.Classifier) == 0 {
		return nil, nil
	}

	rules := make([]erp.ClassifierRule, 0, len(c.Classifier))
	for _, rule := range c.Classifier {
		kind, ok := erp.ParseFailureKind(rule.Kind)
		if !ok {
			return nil, fmt.Errorf("config: unknown classifier kind %q", rule.Kind)
		}
		rules = append(rules, erp.ClassifierRule{Contains: rule.Contains, Kind: kind})
	}
	return rules, nil
}

// StoreConfig converts DatabaseConfig into the database layer's parameters.
func (c DatabaseConfig) StoreConfig() database.Config {
	cfg := database.Config{
		Driver: c.Driver,
		Path:   c.Path,
		DSN:    c.DSN,
	}

	switch {
	case c.Driver == "postgres" && c.Postgres.Enabled:
		cfg.Host = c.Postgres.Host
		cfg.Port = c.Postgres.Port
		cfg.Name = c.Postgres.Database
		cfg.User = c.Postgres.Username
		cfg.Password = c.Postgres.Password
	case c.Driver == "mysql" && c.MySQL.Enabled:
		cfg.Host = c.MySQL.Host
		cfg.Port = c.MySQL.Port
		cfg.Name = c.MySQL.Database
		cfg.User = c.MySQL.Username
		cfg.Password = c.MySQL.Password
	}

	return cfg
}
