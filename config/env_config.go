package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type EnvConfig struct {
	Server struct {
		Port            string
		ObjectStorePort string
		ShutdownTimeout time.Duration
	}
	Postgres struct {
		HOST     string
		Database string
		Username string
		Password string
		Port     string
		SSLMode  string
	}
	JWT struct {
		SecretKey string
		Issuer    string
	}
	CORS struct {
		AllowDomains string
		GlobalDomain string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
	}
	Storage struct {
		Driver           string // minio | s3
		ServiceURL       string // internal object store service
		Timeout          time.Duration
		PublicMaxAge     int
		MetadataCacheTTL time.Duration
	}
	Minio struct {
		Endpoint     string
		RootUser     string
		RootPassword string
		UseSSL       bool
	}
	S3 struct {
		Region          string
		Endpoint        string
		AccessKeyID     string
		SecretAccessKey string
		UsePathStyle    bool
	}
	Upload struct {
		MaxSize      int64
		MinChunkSize int64
		MaxChunkSize int64
		SessionTTL   time.Duration
		Timeout      time.Duration
		TempBucket   string
	}
	Runtime struct {
		URL     string
		Token   string
		Timeout time.Duration
	}
	ExternalService struct {
		AuthorizationServiceURL string
	}
	AuthCacheTTL time.Duration
	RateLimit    struct {
		WebhookPerMinute int
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
		Insecure     bool
	}
	PrivateKey string

	Environment struct {
		Mode  string
		Group string
	}
	DomainName string
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	config.Server.Port = getEnv("PORT", "8080")
	config.Server.ObjectStorePort = getEnv("OBJECT_STORE_PORT", "8090")
	config.Server.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second)

	// Postgres
	config.Postgres.HOST = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = getEnv("PGPOOL_PORT", "5432")
	config.Postgres.SSLMode = getEnv("PGPOOL_SSLMODE", "disable")

	// JWT
	config.JWT.SecretKey = os.Getenv("JWT_SECRET_KEY")
	config.JWT.Issuer = os.Getenv("JWT_ISSUER")

	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")
	config.CORS.GlobalDomain = os.Getenv("GLOBAL_DOMAIN")

	// Redis
	config.Redis.RedisHost = getEnv("REDIS_HOST", "localhost")
	config.Redis.RedisPort = getEnv("REDIS_PORT", "6379")
	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database = getInt("REDIS_DB", 0)

	// RabbitMQ
	config.RabbitMQ.Host = getEnv("RABBITMQ_HOST", "localhost")
	config.RabbitMQ.Port = getEnv("RABBITMQ_PORT", "5672")
	config.RabbitMQ.Username = getEnv("RABBITMQ_USER", "guest")
	config.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", "guest")

	// Storage
	config.Storage.Driver = strings.ToLower(getEnv("STORAGE_DRIVER", "minio"))
	config.Storage.ServiceURL = strings.TrimRight(getEnv("STORAGE_SERVICE_URL", "http://localhost:8090"), "/")
	config.Storage.Timeout = getDuration("STORAGE_TIMEOUT", 30*time.Second)
	config.Storage.PublicMaxAge = getInt("STORAGE_PUBLIC_MAX_AGE", 3600)
	config.Storage.MetadataCacheTTL = getDuration("STORAGE_METADATA_CACHE_TTL", 30*time.Second)

	config.Minio.Endpoint = os.Getenv("MINIO_ENDPOINT")
	config.Minio.RootUser = os.Getenv("MINIO_ROOT_USER")
	config.Minio.RootPassword = os.Getenv("MINIO_ROOT_PASSWORD")
	config.Minio.UseSSL = getBool("MINIO_USE_SSL", false)

	config.S3.Region = getEnv("S3_REGION", "us-east-1")
	config.S3.Endpoint = os.Getenv("S3_ENDPOINT")
	config.S3.AccessKeyID = os.Getenv("S3_ACCESS_KEY_ID")
	config.S3.SecretAccessKey = os.Getenv("S3_SECRET_ACCESS_KEY")
	config.S3.UsePathStyle = getBool("S3_USE_PATH_STYLE", true)

	// Upload
	config.Upload.MaxSize = getInt64("UPLOAD_MAX_SIZE", 5*1024*1024*1024) // 5GB
	config.Upload.MinChunkSize = getInt64("UPLOAD_MIN_CHUNK", 5*1024*1024)
	config.Upload.MaxChunkSize = getInt64("UPLOAD_MAX_CHUNK", 15*1024*1024)
	config.Upload.SessionTTL = getDuration("UPLOAD_SESSION_TTL", 24*time.Hour)
	config.Upload.Timeout = getDuration("UPLOAD_TIMEOUT", 30*time.Minute)
	config.Upload.TempBucket = getEnv("UPLOAD_TEMP_BUCKET", "gau-temp-uploads")

	// Function runtime
	config.Runtime.URL = strings.TrimRight(os.Getenv("RUNTIME_URL"), "/")
	config.Runtime.Token = os.Getenv("RUNTIME_TOKEN")
	config.Runtime.Timeout = getDuration("RUNTIME_TIMEOUT", 60*time.Second)

	config.ExternalService.AuthorizationServiceURL = strings.TrimRight(os.Getenv("AUTHORIZATION_SERVICE_URL"), "/")
	config.AuthCacheTTL = getDuration("AUTH_CACHE_TTL", 60*time.Second)
	config.RateLimit.WebhookPerMinute = getInt("WEBHOOK_RATE_LIMIT", 120)

	// Grafana / OTLP
	endpoint := os.Getenv("GRAFANA_OTLP_ENDPOINT")
	config.Grafana.Insecure = strings.HasPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	config.Grafana.OTLPEndpoint = endpoint
	config.Grafana.ServiceName = getEnv("SERVICE_NAME", "gau-platform")

	config.PrivateKey = os.Getenv("PRIVATE_KEY")

	config.Environment.Mode = getEnv("DEPLOY_ENV", "development")
	config.Environment.Group = os.Getenv("GROUP_NAME")
	config.DomainName = os.Getenv("DOMAIN_NAME")

	return &config
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDuration accepts Go durations ("30s") or plain seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
