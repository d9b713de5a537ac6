package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/pkg/errors"
)

// ClientConfig holds the HTTP serving client parameters.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// httpServingClient talks to the serving endpoint over HTTP/JSON:
//
//	POST {base}/v1/models/{model}:predict
//	GET  {base}/healthz
type httpServingClient struct {
	cfg    ClientConfig
	client *http.Client
	logger logging.Logger
}

// NewHTTPServingClient creates the production ServingClient.
func NewHTTPServingClient(cfg ClientConfig, logger logging.Logger) (ServingClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeValidation, "serving base URL cannot be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &httpServingClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("serving"),
	}, nil
}

func (c *httpServingClient) Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error) {
	if req == nil || req.Model == "" {
		return nil, errors.New(errors.ErrCodeValidation, "predict request requires a model name")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode predict request")
	}

	url := fmt.Sprintf("%s/v1/models/%s:predict", c.cfg.BaseURL, req.Model)

	var lastErr error
	attempts := c.cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "predict cancelled")
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}

		resp, err := c.doPredict(ctx, url, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		// Invalid responses and client-side errors do not improve on retry.
		if !errors.IsCode(err, errors.ErrCodeModelUnavailable) {
			return nil, err
		}
		c.logger.Warn("predict attempt failed",
			logging.String("model", req.Model),
			logging.Int("attempt", attempt+1),
			logging.Err(err))
	}
	return nil, lastErr
}

func (c *httpServingClient) doPredict(ctx context.Context, url string, body []byte) (*PredictResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "build predict request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "predict deadline exceeded")
		}
		return nil, errors.Wrap(err, errors.ErrCodeModelUnavailable, "serving endpoint unreachable")
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(httpResp.Body, 16<<20))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelBadResponse, "read predict response")
	}

	switch {
	case httpResp.StatusCode == http.StatusNotFound:
		return nil, errors.New(errors.ErrCodeModelNotLoaded, "model not deployed on serving endpoint")
	case httpResp.StatusCode == http.StatusServiceUnavailable,
		httpResp.StatusCode == http.StatusBadGateway,
		httpResp.StatusCode == http.StatusGatewayTimeout:
		return nil, errors.Newf(errors.ErrCodeModelUnavailable, "serving endpoint returned %d", httpResp.StatusCode)
	case httpResp.StatusCode != http.StatusOK:
		return nil, errors.Newf(errors.ErrCodeInferenceFailed, "serving endpoint returned %d: %s",
			httpResp.StatusCode, truncate(payload, 256))
	}

	var resp PredictResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelBadResponse, "decode predict response")
	}
	return &resp, nil
}

func (c *httpServingClient) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/healthz", nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "build health request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeModelUnavailable, "serving endpoint unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.ErrCodeModelUnavailable, "serving health returned %d", resp.StatusCode)
	}
	return nil
}

func (c *httpServingClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// MockServingClient is a test double; Predict delegates to PredictFunc when
// set.
type MockServingClient struct {
	PredictFunc func(ctx context.Context, req *PredictRequest) (*PredictResponse, error)
	HealthyErr  error
	Calls       int
}

func NewMockServingClient() *MockServingClient {
	return &MockServingClient{}
}

func (m *MockServingClient) Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error) {
	m.Calls++
	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, req)
	}
	return &PredictResponse{Model: req.Model, Outputs: json.RawMessage(`{}`)}, nil
}

func (m *MockServingClient) Healthy(ctx context.Context) error { return m.HealthyErr }
func (m *MockServingClient) Close() error                      { return nil }
