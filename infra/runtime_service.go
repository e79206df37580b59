package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RuntimeService talks to the Deno function runtime.
type RuntimeService struct {
	RuntimeURL string
	Token      string
	Timeout    time.Duration

	client *http.Client
}

type DeploymentRequest struct {
	FunctionID string            `json:"function_id"`
	Name       string            `json:"name"`
	Version    int               `json:"version"`
	Code       string            `json:"code"`
	Env        map[string]string `json:"env,omitempty"`
}

type ExecutionRequest struct {
	ExecutionID string            `json:"execution_id"`
	FunctionID  string            `json:"function_id"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	TimeoutMs   int64             `json:"timeout_ms"`
}

type RuntimeLogLine struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type ExecutionResult struct {
	StatusCode int              `json:"status_code"`
	Body       json.RawMessage  `json:"body,omitempty"`
	Logs       []RuntimeLogLine `json:"logs,omitempty"`
	DurationMs int64            `json:"duration_ms"`
	Error      string           `json:"error,omitempty"`
}

func InitRuntimeService(cfg *config.EnvConfig) *RuntimeService {
	if cfg.Runtime.URL == "" {
		panic("Runtime URL is not configured")
	}
	return NewRuntimeService(cfg.Runtime.URL, cfg.Runtime.Token, cfg.Runtime.Timeout, otelhttp.NewTransport(http.DefaultTransport))
}

func NewRuntimeService(runtimeURL, token string, timeout time.Duration, transport http.RoundTripper) *RuntimeService {
	return &RuntimeService{
		RuntimeURL: runtimeURL,
		Token:      token,
		Timeout:    timeout,
		client:     &http.Client{Transport: transport},
	}
}

func (s *RuntimeService) Deploy(ctx context.Context, req DeploymentRequest) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resp, err := s.do(ctx, http.MethodPost, s.RuntimeURL+"/deployments", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return runtimeStatusError(resp, "deploy")
	}
	return nil
}

// Undeploy removes a deployment. A deployment the runtime does not know
// about counts as removed.
func (s *RuntimeService) Undeploy(ctx context.Context, functionID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resp, err := s.do(ctx, http.MethodDelete, s.RuntimeURL+"/deployments/"+url.PathEscape(functionID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return nil
	}
	return runtimeStatusError(resp, "undeploy")
}

// Execute runs a deployed function. The HTTP deadline is the function
// timeout plus a small allowance for the runtime's own bookkeeping.
func (s *RuntimeService) Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	deadline := time.Duration(req.TimeoutMs)*time.Millisecond + 5*time.Second
	if req.TimeoutMs <= 0 {
		deadline = s.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	resp, err := s.do(ctx, http.MethodPost, s.RuntimeURL+"/executions", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperror.FunctionNotDeployed(req.FunctionID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, runtimeStatusError(resp, "execute")
	}

	var result ExecutionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperror.RuntimeUnavailable(fmt.Errorf("failed to decode execution result: %w", err))
	}
	return &result, nil
}

func (s *RuntimeService) do(ctx context.Context, method, endpoint string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperror.Timeout("runtime").WithCause(err)
		}
		return nil, apperror.RuntimeUnavailable(err)
	}
	return resp, nil
}

func runtimeStatusError(resp *http.Response, operation string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	cause := fmt.Errorf("%s: runtime returned %d: %s", operation, resp.StatusCode, raw)
	switch {
	case resp.StatusCode == http.StatusGatewayTimeout:
		return apperror.Timeout(operation).WithCause(cause)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return apperror.InvalidInput("code", string(raw)).WithCause(cause)
	default:
		return apperror.RuntimeUnavailable(cause)
	}
}
