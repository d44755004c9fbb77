package server

import "time"

// Config configures the WebDAV HTTP server.
type Config struct {
	// Port is the HTTP port WebDAV is served on.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10s
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. Zero means no timeout, which large PUT bodies need.
	// Default: 0
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Zero means no timeout, which long COPY and MOVE requests need.
	// Default: 0
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// Health controls whether the /health endpoints are served.
	// Use a pointer to distinguish "not set" from "explicitly false".
	// Default: true
	Health *bool `mapstructure:"health" yaml:"health"`
}

// IsHealthEnabled returns whether the health endpoints are served.
func (c *Config) IsHealthEnabled() bool {
	if c.Health == nil {
		return true
	}
	return *c.Health
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}
