package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	switch strings.ToLower(strings.TrimSpace(c.App.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level %q invalid", c.App.LogLevel)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path cannot be empty")
	}
	if c.Seed.InitialBalance < 0 {
		return fmt.Errorf("seed.initial_balance must not be negative")
	}
	seen := make(map[string]bool, len(c.Seed.Accounts))
	for i, acc := range c.Seed.Accounts {
		id := strings.TrimSpace(acc.ID)
		if id == "" {
			return fmt.Errorf("seed.accounts[%d].id cannot be empty", i)
		}
		if seen[id] {
			return fmt.Errorf("seed.accounts: duplicate id %q", id)
		}
		seen[id] = true
	}
	return nil
}
