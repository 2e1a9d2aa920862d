// Package httptransport implements restclient.Transport over net/http.
//
// A Transport converts each resolved request descriptor into an HTTP
// exchange and classifies the outcome: a 2xx response yields the parsed
// body, anything else a *restclient.ErrorResponse. It never retries.
//
// # Instrumentation
//
// Every exchange gets an OpenTelemetry client span following the HTTP
// semantic conventions, W3C trace context propagation and the
// http.client.* metrics, using the global providers unless
// WithTracerProvider and WithMeterProvider say otherwise.
//
// # Resilience
//
// Optional wrappers, all off by default:
//
//	t := httptransport.New(
//	    httptransport.WithServiceName("petstore"),
//	    httptransport.WithBreaker(httptransport.DefaultBreakerConfig()),
//	    httptransport.WithRateLimit(httptransport.DefaultRateLimitConfig()),
//	    httptransport.WithCoalescing(true),
//	)
//
// The breaker state can be shared between processes through Redis with
// NewRedisStore and DistributedBreakerConfig. WithChaos injects latency
// and failures for testing the failure paths of a client.
//
// # Testing
//
// MockRoundTripper stubs the network below the wrappers:
//
//	mock := httptransport.NewMockRoundTripper().StubJSON(http.StatusOK, pet)
//	t := httptransport.New(httptransport.WithRoundTripper(mock))
package httptransport
