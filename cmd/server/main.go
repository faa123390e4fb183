// @title Allocation Service API
// @version 1.0
// @description Internal API for two-stage SKU allocation across stores.
// @BasePath /internal
// @securityDefinitions.apikey InternalAPIKey
// @in header
// @name X-Internal-API-Key
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kosarica/allocation-service/config"
	_ "github.com/kosarica/allocation-service/docs"
	"github.com/kosarica/allocation-service/internal/handlers"
	"github.com/kosarica/allocation-service/internal/optimizer"
	"github.com/kosarica/allocation-service/internal/scenarios"
	"github.com/kosarica/allocation-service/internal/solver"
	"github.com/kosarica/allocation-service/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)
	log.Logger = *logger

	logger.Info().Msg("Starting allocation service")

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Warn().Err(err).Msg("Telemetry disabled")
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	metrics := optimizer.NewMetricsRecorder()
	breaker := optimizer.NewCircuitBreaker("exact_solver", &cfg.Breaker, metrics, logger)
	runner := optimizer.NewTwoStepOptimizer(
		solver.NewBranchAndBound(cfg.Solver),
		metrics,
		optimizer.WithCircuitBreaker(breaker),
	)

	catalogue := scenarios.NewCatalogue()
	if cfg.Scenarios.File != "" {
		if catalogue, err = scenarios.Load(cfg.Scenarios.File); err != nil {
			logger.Fatal().Err(err).Str("file", cfg.Scenarios.File).Msg("Failed to load scenario catalogue")
		}
	}
	defaultScenario, err := catalogue.Get(cfg.Scenarios.Default)
	if err != nil {
		logger.Fatal().Err(err).Str("scenario", cfg.Scenarios.Default).Msg("Default scenario not resolvable")
	}
	logger.Info().Int("scenarios", len(catalogue.Names())).Str("source", catalogue.Source()).Msg("Scenario catalogue loaded")

	gate := optimizer.NewWarmupGate(logger)
	handlers.InitAllocator(runner, catalogue, gate, handlers.Settings{
		DefaultScenario: cfg.Scenarios.Default,
		DefaultCapacity: cfg.Runner.DefaultCapacity,
	})

	// Allocation requests wait until a first solve has gone through both
	// stages; /health reports loading until then.
	go func() {
		warmup(ctx, runner, defaultScenario, logger)
		gate.Ready()
	}()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		InternalAPIKey:    cfg.Server.InternalAPIKey,
		RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
		Burst:             cfg.Server.RateLimit.Burst,
		Logger:            logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Telemetry shutdown failed")
	}

	logger.Info().Msg("Server exited")
}

func warmup(ctx context.Context, runner optimizer.Runner, sc optimizer.Scenario, logger *zerolog.Logger) {
	reg, err := optimizer.NewRegistry(
		[]optimizer.SKU{{ID: "warmup", Style: "warmup", Color: "none", Size: "one", Stock: 2}},
		[]optimizer.Store{{ID: "warmup", Capacity: 2, QtySum: 1}},
	)
	if err != nil {
		logger.Warn().Err(err).Msg("Warmup registry rejected")
		return
	}
	sc.Step1Timeout = 5 * time.Second
	sc.Step2Timeout = 5 * time.Second
	start := time.Now()
	if _, err := runner.Run(ctx, reg, &sc); err != nil {
		logger.Warn().Err(err).Msg("Warmup allocation failed")
		return
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("Warmup allocation complete")
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "allocation-service").Logger()
	return &logger
}
