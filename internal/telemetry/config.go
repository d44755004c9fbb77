package telemetry

import "fmt"

// Config selects where DAV spans are exported.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP/gRPC collector address, host:port.
	Endpoint string
	// Insecure disables TLS to the collector.
	Insecure bool

	// SampleRate is the fraction of root spans kept, 0 to 1.
	SampleRate float64
}

// DefaultConfig exports nothing; enabling it targets a local collector.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "dittodav",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

// Validate checks an enabled configuration.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("telemetry endpoint is required when tracing is enabled")
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("telemetry sample rate %v is outside [0, 1]", c.SampleRate)
	}
	return nil
}
