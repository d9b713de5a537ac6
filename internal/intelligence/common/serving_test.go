package common

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracefold/anonymizer/pkg/errors"
)

func newServingTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, ServingClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewHTTPServingClient(ClientConfig{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestNewHTTPServingClient_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPServingClient(ClientConfig{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestPredict_Success(t *testing.T) {
	_, client := newServingTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/models/ner:predict", r.URL.Path)

		var req PredictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ner", req.Model)
		assert.Equal(t, "My name is John Doe.", req.Text)

		_ = json.NewEncoder(w).Encode(PredictResponse{
			Model:   "ner",
			Outputs: json.RawMessage(`{"entities":[{"text":"John Doe","label":"PERSON","start":11,"end":19,"confidence":0.98}]}`),
		})
	})

	resp, err := client.Predict(context.Background(), &PredictRequest{
		Model: "ner",
		Text:  "My name is John Doe.",
	})
	require.NoError(t, err)

	var out EntityOutputs
	require.NoError(t, json.Unmarshal(resp.Outputs, &out))
	require.Len(t, out.Entities, 1)
	assert.Equal(t, "PERSON", out.Entities[0].Label)
	assert.Equal(t, 11, out.Entities[0].Start)
}

func TestPredict_RequiresModelName(t *testing.T) {
	_, client := newServingTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.Predict(context.Background(), &PredictRequest{Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestPredict_ModelNotDeployed(t *testing.T) {
	_, client := newServingTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Predict(context.Background(), &PredictRequest{Model: "missing", Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelNotLoaded))
}

func TestPredict_ServerErrorIsInferenceFailure(t *testing.T) {
	_, client := newServingTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tensor shape mismatch", http.StatusInternalServerError)
	})

	_, err := client.Predict(context.Background(), &PredictRequest{Model: "ner", Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInferenceFailed))
}

func TestPredict_MalformedBodyIsBadResponse(t *testing.T) {
	_, client := newServingTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := client.Predict(context.Background(), &PredictRequest{Model: "ner", Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelBadResponse))
}

func TestPredict_RetriesOnUnavailable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(PredictResponse{Model: "ner", Outputs: json.RawMessage(`{"entities":[]}`)})
	}))
	defer srv.Close()

	client, err := NewHTTPServingClient(ClientConfig{
		BaseURL:    srv.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 3,
	}, nil)
	require.NoError(t, err)

	_, err = client.Predict(context.Background(), &PredictRequest{Model: "ner", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPredict_NoRetryOnInferenceFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewHTTPServingClient(ClientConfig{
		BaseURL:    srv.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 3,
	}, nil)
	require.NoError(t, err)

	_, err = client.Predict(context.Background(), &PredictRequest{Model: "ner", Text: "x"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPredict_UnreachableEndpointIsUnavailable(t *testing.T) {
	client, err := NewHTTPServingClient(ClientConfig{
		BaseURL: "http://127.0.0.1:1",
		Timeout: 200 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	_, err = client.Predict(context.Background(), &PredictRequest{Model: "ner", Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelUnavailable))
}

func TestHealthy(t *testing.T) {
	_, client := newServingTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	assert.NoError(t, client.Healthy(context.Background()))
}

func TestHealthy_Down(t *testing.T) {
	_, client := newServingTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := client.Healthy(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelUnavailable))
}
