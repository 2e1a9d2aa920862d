package config

const (
	// Petstore API configuration
	DefaultBaseURL = "https://petstore3.swagger.io/api/v3"
	DefaultAPIKey  = "special-key"
	DefaultTimeout = 10 // seconds

	// Resilience configuration
	RequestsPerSecond = 5
	Burst             = 2

	// Server configuration
	MetricsPort = ":2112"

	// OpenTelemetry configuration
	OTLPEndpoint   = "localhost:4317"
	ServiceName    = "sentinel-rest-petstore-example"
	ServiceVersion = "0.1.0"

	// Operation intervals
	OperationInterval = 5 // seconds
)
