package core

// AdapterConfig holds configuration for connecting a dataset library.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any
}

// Column describes a stored table column as reported by a library.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}
