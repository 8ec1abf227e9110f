package telemetry

// Config controls the tracing subsystem.
type Config struct {
	// Enabled switches span export on. When false every span in the
	// process is a no-op.
	Enabled bool

	// ServiceName identifies this process in the trace backend.
	ServiceName string

	// ServiceVersion is reported alongside the service name so traces
	// can be pinned to a build.
	ServiceVersion string

	// Endpoint is the OTLP/gRPC collector address as host:port,
	// without a scheme.
	Endpoint string

	// Insecure disables TLS on the collector connection. Meant for
	// collectors reached over localhost or a private network.
	Insecure bool

	// SampleRate is the fraction of traces to keep, 0.0 to 1.0.
	SampleRate float64
}

// DefaultConfig returns the settings used when the configuration file
// has no tracing section: tracing off, local collector, keep every
// trace that does get started.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "tollgate",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
