package config

// Default is the stock deployment: three equally funded agents, one SQLite
// file next to the binary.
func Default() Config {
	return Config{
		App: AppConfig{
			Env:      "dev",
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Path: "data/gridledger.db",
		},
		Seed: SeedConfig{
			InitialBalance: 10000,
			Accounts: []SeedAccount{
				{ID: "LLM-A", Provider: "openai", Model: "gpt-4o"},
				{ID: "LLM-B", Provider: "anthropic", Model: "claude-sonnet"},
				{ID: "LLM-C", Provider: "deepseek", Model: "deepseek-chat"},
			},
		},
	}
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.App.Env == "" {
		c.App.Env = def.App.Env
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = def.App.LogLevel
	}
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.Seed.InitialBalance == 0 {
		c.Seed.InitialBalance = def.Seed.InitialBalance
	}
	if len(c.Seed.Accounts) == 0 {
		c.Seed.Accounts = def.Seed.Accounts
	}
}
