package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/tnqbao/gau-platform/config"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/metrics"
	"github.com/tnqbao/gau-platform/objectstore/backend"
	"github.com/tnqbao/gau-platform/objectstore/controller"
	"github.com/tnqbao/gau-platform/objectstore/route"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.NewConfig()
	if cfg.EnvConfig.PrivateKey == "" {
		log.Fatal("PRIVATE_KEY is required")
	}

	telemetry := infra.InitTelemetry(ctx, cfg.EnvConfig, "objectstore")
	logger := infra.InitLoggerClient(cfg.EnvConfig, telemetry)

	store, err := backend.New(ctx, cfg.EnvConfig)
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}

	ctrl := controller.NewController(cfg, store, logger, metrics.New())
	router := route.SetupRouter(ctrl)

	server := &http.Server{
		Addr:    ":" + cfg.EnvConfig.Server.ObjectStorePort,
		Handler: otelhttp.NewHandler(router, "objectstore"),
	}

	go func() {
		logger.InfoWithContextf(ctx, "Object store (%s backend) started on %s", store.Name(), server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.EnvConfig.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WarningWithContextf(shutdownCtx, "Object store shutdown: %v", err)
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Printf("Telemetry shutdown: %v", err)
	}
}
