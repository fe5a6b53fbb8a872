package v1

import "github.com/charmbracelet/log"

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	dataDir   string
	dimension int
	scope     string
	logger    *log.Logger
}

// WithDataDir sets the store location (default ~/.loci).
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.dataDir = dir
	}
}

// WithDimension overrides the configured embedding dimension.
func WithDimension(dim int) Option {
	return func(c *clientConfig) {
		c.dimension = dim
	}
}

// WithScope sets the default scope for Store (default inbox).
func WithScope(scope string) Option {
	return func(c *clientConfig) {
		c.scope = scope
	}
}

// WithLogger routes engine logs somewhere; the default client is silent.
func WithLogger(logger *log.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}
