package infra

import (
	"context"

	"github.com/tnqbao/gau-platform/config"
	"github.com/tnqbao/gau-platform/infra/produce"
)

const fileMetadataCacheSize = 4096

type Infra struct {
	Redis                *RedisClient
	Postgres             *PostgresClient
	Logger               *LoggerClient
	Telemetry            *Telemetry
	RabbitMQ             *RabbitMQClient
	AuthorizationService *AuthorizationService
	StorageService       *StorageService
	RuntimeService       *RuntimeService
	Produce              *produce.Produce
	Transfers            *TransferRegistry
	FileCache            *FileMetadataCache
}

var infraInstance *Infra

// InitInfra connects every backing service used by the API and the consumer.
// service names the binary in telemetry ("api", "consumer").
func InitInfra(cfg *config.Config, service string) *Infra {
	if infraInstance != nil {
		return infraInstance
	}

	telemetry := InitTelemetry(context.Background(), cfg.EnvConfig, service)

	logger := InitLoggerClient(cfg.EnvConfig, telemetry)
	if logger == nil {
		panic("Failed to initialize Logger service")
	}

	redis := InitRedisClient(cfg.EnvConfig)
	if redis == nil {
		panic("Failed to initialize Redis service")
	}

	postgres := InitPostgresClient(cfg.EnvConfig)
	if postgres == nil {
		panic("Failed to initialize Postgres service")
	}

	rabbitMQ := InitRabbitMQClient(cfg.EnvConfig)
	if rabbitMQ == nil {
		panic("Failed to initialize RabbitMQ service")
	}

	authorizationService := InitAuthorizationService(cfg.EnvConfig, redis)
	if authorizationService == nil {
		panic("Failed to initialize Authorization service")
	}

	storageService := InitStorageService(cfg.EnvConfig)
	if storageService == nil {
		panic("Failed to initialize Storage service")
	}

	runtimeService := InitRuntimeService(cfg.EnvConfig)
	if runtimeService == nil {
		panic("Failed to initialize Runtime service")
	}

	produceService := produce.InitProduce(rabbitMQ.Channel)
	if produceService == nil {
		panic("Failed to initialize Produce service")
	}

	infraInstance = &Infra{
		Redis:                redis,
		Postgres:             postgres,
		Logger:               logger,
		Telemetry:            telemetry,
		RabbitMQ:             rabbitMQ,
		AuthorizationService: authorizationService,
		StorageService:       storageService,
		RuntimeService:       runtimeService,
		Produce:              produceService,
		Transfers:            NewTransferRegistry(redis, logger, cfg.EnvConfig.Upload.Timeout),
		FileCache:            NewFileMetadataCache(fileMetadataCacheSize, cfg.EnvConfig.Storage.MetadataCacheTTL),
	}

	return infraInstance
}

func GetClient() *Infra {
	if infraInstance == nil {
		panic("Infra not initialized. Call InitInfra() first.")
	}
	return infraInstance
}

// Close releases connections in reverse order of initialisation.
func (i *Infra) Close(ctx context.Context) {
	if i.RabbitMQ != nil {
		if err := i.RabbitMQ.Close(); err != nil {
			i.Logger.WarningWithContextf(ctx, "RabbitMQ close: %v", err)
		}
	}
	if i.Redis != nil {
		_ = i.Redis.Client.Close()
	}
	if i.Postgres != nil {
		if sqlDB, err := i.Postgres.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := i.Telemetry.Shutdown(ctx); err != nil {
		i.Logger.WarningWithContextf(ctx, "Telemetry shutdown: %v", err)
	}
}
