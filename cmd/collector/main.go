package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/websee/internal/collector/config"
	"github.com/gosight/gosight/websee/internal/collector/enricher"
	"github.com/gosight/gosight/websee/internal/collector/handler"
	"github.com/gosight/gosight/websee/internal/collector/producer"
	"github.com/gosight/gosight/websee/internal/collector/session"
	"github.com/gosight/gosight/websee/internal/collector/storage"
	"github.com/gosight/gosight/websee/internal/collector/validation"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/collector.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load config")
	}

	log.Info().
		Strs("kafka_brokers", cfg.Kafka.Brokers).
		Str("redis_addr", cfg.Redis.Addr).
		Str("clickhouse_addr", cfg.ClickHouse.Addr).
		Msg("Starting websee collector...")

	kafkaProducer, err := producer.NewKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Kafka producer")
	}
	defer kafkaProducer.Close()
	log.Info().Msg("Kafka producer initialized")

	sinks := []handler.Sink{kafkaProducer}

	if cfg.ClickHouse.Addr != "" {
		ch, err := storage.NewClickHouse(cfg.ClickHouse)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to ClickHouse")
		}
		defer ch.Close()

		batcher := storage.NewBatcher(ch, cfg.Batch)
		defer batcher.Close()
		sinks = append(sinks, batcher)
		log.Info().
			Int("batch_size", cfg.Batch.Size).
			Dur("flush_interval", cfg.Batch.FlushInterval).
			Msg("ClickHouse sink initialized")
	}

	if cfg.Redis.Addr != "" {
		tracker := session.NewTracker(cfg.Redis)
		defer tracker.Close()
		sinks = append(sinks, tracker)
		log.Info().Msg("Session tracker initialized")
	}

	validator, err := validation.NewValidator(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create validator")
	}
	defer validator.Close()
	log.Info().Msg("Validator initialized")

	reportEnricher := enricher.NewEnricher(cfg.GeoIP.DatabasePath)
	defer reportEnricher.Close()
	log.Info().Msg("Enricher initialized")

	httpHandler := handler.NewHTTPHandler(validator, reportEnricher, cfg.Server.MaxBodyBytes, sinks...)
	r := handler.NewRouter(httpHandler, middleware.Logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.HTTPPort).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to serve HTTP")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown")
	}
	log.Info().Msg("Server stopped")
}
