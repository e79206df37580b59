package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/tnqbao/gau-platform/config"
	"github.com/tnqbao/gau-platform/consumer/worker"
	"github.com/tnqbao/gau-platform/executor"
	infraPkg "github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/metrics"
	"github.com/tnqbao/gau-platform/repository"
	"golang.org/x/sync/errgroup"
)

func main() {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg, "consumer")
	repo := repository.InitRepository(infra)
	m := metrics.New()
	exec := executor.New(infra.RuntimeService, repo, infra.Logger, m)

	storageConsumer := worker.NewStorageConsumer(infra.RabbitMQ.Channel, infra)
	uploadConsumer := worker.NewUploadConsumer(infra.RabbitMQ.Channel, infra, repo)
	functionConsumer := worker.NewFunctionConsumer(infra.RabbitMQ.Channel, infra, repo, exec)
	janitor := worker.NewJanitor(infra, repo)

	var g errgroup.Group
	g.Go(func() error { return storageConsumer.Start(ctx) })
	g.Go(func() error { return uploadConsumer.Start(ctx) })
	g.Go(func() error { return functionConsumer.Start(ctx) })
	g.Go(func() error { return janitor.Start(ctx) })
	if err := g.Wait(); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start consumers")
		log.Fatalf("Failed to start consumers: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", m.Handler())

	server := &http.Server{
		Addr:    ":" + cfg.EnvConfig.Server.Port,
		Handler: router,
	}
	go func() {
		infra.Logger.InfoWithContextf(ctx, "Consumer health server started on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start health server: %v", err)
		}
	}()

	<-ctx.Done()
	infra.Logger.InfoWithContextf(context.Background(), "Shutting down consumer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.EnvConfig.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		infra.Logger.WarningWithContextf(shutdownCtx, "Health server shutdown: %v", err)
	}
	infra.Close(shutdownCtx)

	infra.Logger.InfoWithContextf(shutdownCtx, "Consumer exited properly")
}
