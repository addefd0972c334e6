package config

// Config is the gridledger configuration root.
type Config struct {
	App      AppConfig      `toml:"app" yaml:"app"`
	Database DatabaseConfig `toml:"database" yaml:"database"`
	Seed     SeedConfig     `toml:"seed" yaml:"seed"`
}

type AppConfig struct {
	Env      string `toml:"env" yaml:"env"`
	LogLevel string `toml:"log_level" yaml:"log_level"`
	LogPath  string `toml:"log_path" yaml:"log_path"`
}

type DatabaseConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// SeedConfig names the agent roster installed at deployment time. Seeding is
// idempotent: re-running resets balances and counters without discarding the
// accounts' identity metadata.
type SeedConfig struct {
	InitialBalance float64       `toml:"initial_balance" yaml:"initial_balance"`
	Accounts       []SeedAccount `toml:"accounts" yaml:"accounts"`
}

type SeedAccount struct {
	ID       string `toml:"id" yaml:"id"`
	Provider string `toml:"provider" yaml:"provider"`
	Model    string `toml:"model" yaml:"model"`
}
