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
	"github.com/tnqbao/gau-platform/http/controller"
	"github.com/tnqbao/gau-platform/http/route"
	infraPkg "github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/repository"
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
	infra := infraPkg.InitInfra(cfg, "api")
	repo := repository.InitRepository(infra)

	if err := infra.StorageService.CreateBucket(ctx, cfg.EnvConfig.Upload.TempBucket, 0); err != nil {
		infra.Logger.WarningWithContextf(ctx, "Failed to ensure temp bucket %s: %v", cfg.EnvConfig.Upload.TempBucket, err)
	}

	go func() {
		if err := infra.Transfers.Listen(ctx, nil); err != nil {
			infra.Logger.ErrorWithContextf(ctx, err, "Transfer cancel listener stopped")
		}
	}()

	ctrl := controller.NewController(cfg, infra, repo)

	router := routes.SetupRouter(ctrl)

	server := &http.Server{
		Addr:    ":" + cfg.EnvConfig.Server.Port,
		Handler: otelhttp.NewHandler(router, "api"),
	}

	go func() {
		infra.Logger.InfoWithContextf(ctx, "HTTP Server started on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	infra.Logger.InfoWithContextf(context.Background(), "Shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.EnvConfig.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		infra.Logger.WarningWithContextf(shutdownCtx, "HTTP server shutdown: %v", err)
	}
	infra.Close(shutdownCtx)
}
