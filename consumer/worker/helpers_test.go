package worker

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-platform/config"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/executor"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/metrics"
	"github.com/tnqbao/gau-platform/objectstore/backend"
	objectcontroller "github.com/tnqbao/gau-platform/objectstore/controller"
	objectroute "github.com/tnqbao/gau-platform/objectstore/route"
	"github.com/tnqbao/gau-platform/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testPrivateKey = "internal-secret"
	testTempBucket = "tmp-uploads"
)

// ackRecorder is an amqp.Acknowledger that remembers how a delivery was
// settled.
type ackRecorder struct {
	mu       sync.Mutex
	acked    bool
	nacked   bool
	requeued bool
}

func (a *ackRecorder) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = true
	return nil
}

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = true
	a.requeued = requeue
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	return a.Nack(0, false, requeue)
}

func delivery(t *testing.T, payload any, redelivered bool) (amqp.Delivery, *ackRecorder) {
	t.Helper()
	var body []byte
	if raw, ok := payload.(string); ok {
		body = []byte(raw)
	} else {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	ack := &ackRecorder{}
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body, Redelivered: redelivered}, ack
}

// fakeRuntime stands in for the Deno runtime HTTP API.
type fakeRuntime struct {
	mu           sync.Mutex
	deployments  []infra.DeploymentRequest
	undeployed   []string
	executions   []infra.ExecutionRequest
	deployStatus int
	result       infra.ExecutionResult
}

func (f *fakeRuntime) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/deployments":
		var req infra.DeploymentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.deployments = append(f.deployments, req)
		if f.deployStatus != 0 {
			http.Error(w, "deploy rejected", f.deployStatus)
			return
		}
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/deployments/"):
		f.undeployed = append(f.undeployed, strings.TrimPrefix(r.URL.Path, "/deployments/"))
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && r.URL.Path == "/executions":
		var req infra.ExecutionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.executions = append(f.executions, req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.result)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type workerEnv struct {
	infra   *infra.Infra
	repo    *repository.Repository
	store   *backend.MemoryBackend
	redis   *miniredis.Miniredis
	runtime *fakeRuntime
	exec    *executor.Executor
}

func newWorkerEnv(t *testing.T) *workerEnv {
	t.Helper()

	env := &config.EnvConfig{PrivateKey: testPrivateKey}
	env.Storage.Timeout = 5 * time.Second
	env.Upload.TempBucket = testTempBucket
	cfg := &config.Config{EnvConfig: env}

	log := infra.NewLoggerClient(io.Discard)

	store := backend.NewMemoryBackend()
	objectStore := httptest.NewServer(objectroute.SetupRouter(
		objectcontroller.NewController(cfg, store, log, metrics.New())))
	t.Cleanup(objectStore.Close)

	runtime := &fakeRuntime{result: infra.ExecutionResult{StatusCode: 200, Body: json.RawMessage(`{"ok":true}`)}}
	runtimeServer := httptest.NewServer(runtime)
	t.Cleanup(runtimeServer.Close)

	mr := miniredis.RunT(t)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(entity.Models()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	storageService := infra.NewStorageService(objectStore.URL, testPrivateKey, env.Storage.Timeout, http.DefaultTransport)
	require.NoError(t, storageService.CreateBucket(t.Context(), testTempBucket, 0))

	in := &infra.Infra{
		Redis:          infra.NewRedisClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})),
		Postgres:       &infra.PostgresClient{DB: db},
		Logger:         log,
		StorageService: storageService,
		RuntimeService: infra.NewRuntimeService(runtimeServer.URL, "runtime-token", 5*time.Second, http.DefaultTransport),
	}
	repo := repository.NewRepository(db)

	return &workerEnv{
		infra:   in,
		repo:    repo,
		store:   store,
		redis:   mr,
		runtime: runtime,
		exec:    executor.New(in.RuntimeService, repo, log, metrics.New()),
	}
}

func (e *workerEnv) createBucket(t *testing.T, ownerID uuid.UUID) *entity.Bucket {
	t.Helper()
	bucket := &entity.Bucket{
		OwnerID:     ownerID,
		Name:        "media",
		StorageName: "b-" + uuid.NewString(),
	}
	require.NoError(t, e.repo.BucketRepo.Create(bucket))
	require.NoError(t, e.infra.StorageService.CreateBucket(t.Context(), bucket.StorageName, 0))
	return bucket
}

func (e *workerEnv) createFunction(t *testing.T, status entity.DeploymentStatus) *entity.Function {
	t.Helper()
	fn := &entity.Function{
		OwnerID:        uuid.New(),
		Name:           "hook-" + uuid.NewString()[:8],
		Code:           "export default () => new Response('ok')",
		Runtime:        entity.RuntimeDeno,
		Env:            []byte(`{"GREETING":"hi"}`),
		TimeoutSeconds: 10,
		Version:        1,
		Status:         status,
	}
	require.NoError(t, e.repo.FunctionRepo.Create(fn))
	return fn
}
