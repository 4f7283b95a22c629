package core

// LibraryConfig declares a named dataset library (the LIB in LIB.TABLE).
type LibraryConfig struct {
	Type string `koanf:"type"` // csv, duckdb, sqlite, postgres

	// File-based libraries: a directory for csv, a database file otherwise.
	Path string `koanf:"path"`

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Schema   string `koanf:"schema"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`
}

// ToAdapterConfig converts a library declaration into adapter settings.
func (l *LibraryConfig) ToAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Type:     l.Type,
		Path:     l.Path,
		Host:     l.Host,
		Port:     l.Port,
		Database: l.Database,
		Username: l.User,
		Password: l.Password,
		Schema:   l.Schema,
		Options:  l.Options,
	}
}

// DisplayConfig controls how numeric values are rendered.
type DisplayConfig struct {
	Decimals  int  `koanf:"decimals"`
	TrimZeros bool `koanf:"trim_zeros"`
}

// FormatsConfig controls FORMAT table declaration checks.
type FormatsConfig struct {
	// Overlap is one of ignore, warn, reject.
	Overlap string `koanf:"overlap"`
}
