package engine

// Loader turns a configuration file into a plain document. Implementations
// return nested map[string]any, []any and scalar values only.
type Loader interface {
	// Name returns the loader name, e.g. "yaml".
	Name() string

	// Supports reports whether the loader handles the given file.
	Supports(path string) bool

	// LoadFile reads and decodes the file.
	LoadFile(path string) (map[string]any, error)
}

// Environment provides environment variable lookups.
type Environment interface {
	LookupEnv(name string) (string, bool)
}

// Constants provides host constant lookups.
type Constants interface {
	LookupConstant(name string) (any, bool)
}
