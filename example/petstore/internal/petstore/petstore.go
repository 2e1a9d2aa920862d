package petstore

import (
	"context"
	"time"

	"github.com/kroma-labs/sentinel-rest/example/petstore/internal/config"
	"github.com/kroma-labs/sentinel-rest/httptransport"
	"github.com/kroma-labs/sentinel-rest/restclient"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Pet is the petstore resource.
type Pet struct {
	ID        int64    `json:"id,omitempty"`
	Name      string   `json:"name"`
	Status    string   `json:"status,omitempty"`
	PhotoURLs []string `json:"photoUrls"`
}

// Service declares the petstore endpoints.
var Service = restclient.NewService("petstore").
	BaseURL(config.DefaultBaseURL).
	DefaultHeaders(restclient.StringMap{"Accept": "application/json"}).
	GET("FindByStatus", "/pet/findByStatus", restclient.Query("status")).
	GET("GetPet", "/pet/{petId}", restclient.Path("petId")).
	POST("AddPet", "/pet", restclient.Body()).
	DELETE("DeletePet", "/pet/{petId}", restclient.Path("petId"), restclient.Header("api_key")).
	MustBuild()

// Client is a typed petstore client.
type Client struct {
	rest      *restclient.Client
	transport *httptransport.Transport
}

// New creates a petstore client with tracing, metrics, a circuit breaker
// and a client-side rate limit.
func New(logger zerolog.Logger) *Client {
	cfg := httptransport.DefaultConfig()
	cfg.Timeout = time.Duration(config.DefaultTimeout) * time.Second

	breaker := httptransport.DefaultBreakerConfig()
	breaker.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Info().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("petstore breaker changed state")
	}

	transport := httptransport.New(
		httptransport.WithConfig(cfg),
		httptransport.WithServiceName(Service.Name()),
		httptransport.WithBreaker(breaker),
		httptransport.WithRateLimit(httptransport.RateLimitConfig{
			RequestsPerSecond: config.RequestsPerSecond,
			Burst:             config.Burst,
			WaitOnLimit:       true,
		}),
		httptransport.WithCoalescing(true),
		httptransport.WithLogger(logger),
	)

	rest := restclient.NewClient(Service, transport,
		restclient.WithLogger(logger),
		restclient.WithRequestInterceptor(restclient.ChainInterceptors(
			restclient.UserAgentInterceptor(config.ServiceName+"/"+config.ServiceVersion),
			restclient.CorrelationIDInterceptor("X-Correlation-ID", nil),
		)),
	)

	return &Client{rest: rest, transport: transport}
}

// FindByStatus lists the pets with status.
func (c *Client) FindByStatus(ctx context.Context, status string) ([]Pet, error) {
	return restclient.Call[[]Pet](ctx, c.rest, "FindByStatus", status)
}

// GetPet fetches one pet.
func (c *Client) GetPet(ctx context.Context, id int64) (Pet, error) {
	return restclient.Call[Pet](ctx, c.rest, "GetPet", id)
}

// AddPet creates pet and returns it as stored.
func (c *Client) AddPet(ctx context.Context, pet Pet) (Pet, error) {
	return restclient.Call[Pet](ctx, c.rest, "AddPet", pet)
}

// DeletePet removes a pet.
func (c *Client) DeletePet(ctx context.Context, id int64) error {
	_, err := c.rest.Invoke(ctx, "DeletePet", id, config.DefaultAPIKey)
	return err
}

// RateLimiterStats exposes the rate limiter snapshot of the transport.
func (c *Client) RateLimiterStats() httptransport.RateLimiterStats {
	stats, _ := c.transport.RateLimiterStats()
	return stats
}
