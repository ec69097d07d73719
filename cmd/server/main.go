package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aivanahealth/scribe-gateway/internal/config"
	"github.com/aivanahealth/scribe-gateway/internal/gateway"
	"github.com/aivanahealth/scribe-gateway/internal/gemini"
	"github.com/aivanahealth/scribe-gateway/internal/observability"
	"github.com/aivanahealth/scribe-gateway/internal/recognition"
	"github.com/aivanahealth/scribe-gateway/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet.
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("gemini_model", cfg.GeminiModel).
		Str("deepgram_model", cfg.DeepgramModel).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Scribe Gateway starting")

	ctx := context.Background()

	geminiClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	recognizer := recognition.NewDeepgram(recognition.Config{
		APIKey:          cfg.DeepgramAPIKey,
		Model:           cfg.DeepgramModel,
		DefaultLanguage: cfg.DeepgramLanguage,
		SampleRate:      cfg.SampleRate,
		BreakerMaxFails: cfg.CircuitBreakerMaxFailures,
		BreakerReset:    time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second,
	}, logger)

	persister := store.NewClient(cfg.StoreBaseURL, cfg.StoreTimeout(), logger)

	mux := http.NewServeMux()

	mux.HandleFunc("/sessions/stream", gateway.StreamHandler(gateway.Deps{
		Config:      cfg,
		Transcriber: geminiClient,
		Synthesizer: geminiClient,
		Recognizer:  recognizer,
		Persister:   persister,
		Logger:      logger,
	}))

	mux.HandleFunc("/health", observability.HealthCheckHandler())
	// Gemini has no cheap liveness probe and is not part of readiness.
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"deepgram": recognizer.Healthy,
		"store":    persister.Healthy,
	}))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/sessions/stream", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}
