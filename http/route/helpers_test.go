package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-platform/config"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/http/controller"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/infra/produce"
	"github.com/tnqbao/gau-platform/infra/produce/producetest"
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
	testJWTSecret  = "test-jwt-secret"
	testPrivateKey = "internal-secret"
	testTempBucket = "tmp-uploads"
)

// fakeRuntime stands in for the Deno runtime HTTP API.
type fakeRuntime struct {
	mu         sync.Mutex
	executions []infra.ExecutionRequest
	result     infra.ExecutionResult
	status     int
}

func (f *fakeRuntime) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path != "/executions" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var req infra.ExecutionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.executions = append(f.executions, req)
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(f.result)
}

func (f *fakeRuntime) Executions() []infra.ExecutionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]infra.ExecutionRequest(nil), f.executions...)
}

type testEnv struct {
	t       *testing.T
	router  *gin.Engine
	ctrl    *controller.Controller
	repo    *repository.Repository
	store   *backend.MemoryBackend
	queue   *producetest.Recorder
	redis   *miniredis.Miniredis
	runtime *fakeRuntime
	userID  uuid.UUID
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &config.EnvConfig{PrivateKey: testPrivateKey, AuthCacheTTL: time.Minute}
	env.JWT.SecretKey = testJWTSecret
	env.Storage.PublicMaxAge = 300
	env.Storage.Timeout = 5 * time.Second
	env.Upload.MaxSize = 1 << 20
	env.Upload.MinChunkSize = 4
	env.Upload.MaxChunkSize = 1 << 10
	env.Upload.SessionTTL = time.Hour
	env.Upload.Timeout = time.Minute
	env.Upload.TempBucket = testTempBucket
	env.RateLimit.WebhookPerMinute = 100
	env.Runtime.Timeout = 5 * time.Second
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
	redisClient := infra.NewRedisClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

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

	queue := &producetest.Recorder{}
	storageService := infra.NewStorageService(objectStore.URL, testPrivateKey, env.Storage.Timeout, http.DefaultTransport)
	require.NoError(t, storageService.CreateBucket(t.Context(), testTempBucket, 0))

	in := &infra.Infra{
		Redis:                redisClient,
		Postgres:             &infra.PostgresClient{DB: db},
		Logger:               log,
		AuthorizationService: &infra.AuthorizationService{},
		StorageService:       storageService,
		RuntimeService:       infra.NewRuntimeService(runtimeServer.URL, "runtime-token", env.Runtime.Timeout, http.DefaultTransport),
		Produce:              produce.NewProduce(queue),
		Transfers:            infra.NewTransferRegistry(redisClient, log, time.Minute),
		FileCache:            infra.NewFileMetadataCache(128, time.Minute),
	}
	repo := repository.NewRepository(db)
	ctrl := controller.NewController(cfg, in, repo)

	userID := uuid.New()
	return &testEnv{
		t:       t,
		router:  SetupRouter(ctrl),
		ctrl:    ctrl,
		repo:    repo,
		store:   store,
		queue:   queue,
		redis:   mr,
		runtime: runtime,
		userID:  userID,
		token:   signToken(t, userID),
	}
}

func signToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

// request sends an authenticated request unless headers sets its own
// Authorization (an empty value sends none).
func (e *testEnv) request(method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if auth, ok := headers["Authorization"]; ok {
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
	} else {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	for k, v := range headers {
		if k != "Authorization" {
			req.Header.Set(k, v)
		}
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) json(method, path string, payload any) *httptest.ResponseRecorder {
	e.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(e.t, err)
	return e.request(method, path, bytes.NewReader(raw), map[string]string{"Content-Type": "application/json"})
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}](t, w)
	return body.Error.Code
}

func (e *testEnv) createBucket(name string, extra map[string]any) entity.Bucket {
	e.t.Helper()
	payload := map[string]any{"name": name}
	for k, v := range extra {
		payload[k] = v
	}
	w := e.json(http.MethodPost, "/api/v1/buckets", payload)
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct {
		Bucket entity.Bucket `json:"bucket"`
	}](e.t, w).Bucket
}

func multipartBody(t *testing.T, folder, name, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	if folder != "" {
		require.NoError(t, mw.WriteField("path", folder))
	}
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, name)}
	if contentType != "" {
		header["Content-Type"] = []string{contentType}
	}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func (e *testEnv) uploadFile(bucketID uuid.UUID, folder, name string, content []byte) entity.File {
	e.t.Helper()
	body, contentType := multipartBody(e.t, folder, name, "text/plain", content)
	w := e.request(http.MethodPost, "/api/v1/buckets/"+bucketID.String()+"/files", body,
		map[string]string{"Content-Type": contentType})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct {
		File entity.File `json:"file"`
	}](e.t, w).File
}

func (e *testEnv) createFunction(name string, deployed bool) entity.Function {
	e.t.Helper()
	w := e.json(http.MethodPost, "/api/v1/functions", map[string]any{
		"name": name,
		"code": "export default () => new Response('ok')",
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	fn := decode[entity.Function](e.t, w)
	if deployed {
		ok, err := e.repo.FunctionRepo.MarkDeployed(fn.ID, fn.Version, time.Now())
		require.NoError(e.t, err)
		require.True(e.t, ok)
		fn.Status = entity.DeploymentStatusDeployed
	}
	return fn
}
