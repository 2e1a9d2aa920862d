package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kroma-labs/sentinel-rest/example/petstore/internal/config"
	"github.com/kroma-labs/sentinel-rest/example/petstore/internal/petstore"
	"github.com/kroma-labs/sentinel-rest/example/petstore/internal/telemetry"
	"github.com/kroma-labs/sentinel-rest/restclient"
	"github.com/rs/zerolog"

	"go.opentelemetry.io/otel"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// 1. Setup OpenTelemetry (Tracing + Metrics)
	mux := http.NewServeMux()
	shutdownTracing, shutdownMetrics, err := telemetry.Setup(ctx, mux)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to setup otel")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
		_ = shutdownMetrics(shutdownCtx)
	}()

	// 2. Start Prometheus Metrics Server
	metricsServer := &http.Server{Addr: config.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info().Str("addr", config.MetricsPort).Msg("starting prometheus metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("metrics server failed")
		}
	}()

	// 3. Create the petstore client
	client := petstore.New(logger)
	tracer := otel.Tracer("petstore-example")

	ticker := time.NewTicker(time.Duration(config.OperationInterval) * time.Second)
	defer ticker.Stop()

	logger.Info().Msg("petstore example started, press Ctrl+C to stop")

	for {
		select {
		case <-ticker.C:
			opCtx, span := tracer.Start(ctx, "petstore-operations")
			runOperations(opCtx, logger, client)
			span.End()

		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("metrics server shutdown error")
			}
			return
		}
	}
}

func runOperations(ctx context.Context, logger zerolog.Logger, client *petstore.Client) {
	pets, err := client.FindByStatus(ctx, "available")
	if err != nil {
		logFailure(logger, "find pets", err)
		return
	}
	logger.Info().Int("count", len(pets)).Msg("found available pets")

	created, err := client.AddPet(ctx, petstore.Pet{
		Name:      "doggie",
		Status:    "available",
		PhotoURLs: []string{"https://example.org/doggie.png"},
	})
	if err != nil {
		logFailure(logger, "add pet", err)
		return
	}

	if _, err := client.GetPet(ctx, created.ID); err != nil {
		logFailure(logger, "get pet", err)
	}

	if err := client.DeletePet(ctx, created.ID); err != nil {
		logFailure(logger, "delete pet", err)
	}

	stats := client.RateLimiterStats()
	logger.Info().
		Int64("pet_id", created.ID).
		Float64("tokens_available", stats.TokensAvailable).
		Msg("petstore operations completed")
}

func logFailure(logger zerolog.Logger, op string, err error) {
	event := logger.Warn().Str("op", op).Err(err)
	if er, ok := restclient.AsErrorResponse(err); ok {
		event = event.Int("status", er.Status).Str("url", er.URL)
	}
	event.Msg("petstore operation failed")
}
