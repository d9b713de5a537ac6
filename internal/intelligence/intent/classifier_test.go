package intent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracefold/anonymizer/internal/intelligence/common"
	"github.com/tracefold/anonymizer/pkg/errors"
)

func newTestClassifier(t *testing.T, mock *common.MockServingClient) Classifier {
	t.Helper()
	reg := common.NewRegistry()
	require.NoError(t, reg.Register("intent", func() (common.ServingClient, error) {
		return mock, nil
	}))
	handle, err := reg.Get("intent")
	require.NoError(t, err)
	return NewClassifier(handle, "intent", nil)
}

func TestPredict_ReturnsIntentAndConfidence(t *testing.T) {
	mock := common.NewMockServingClient()
	mock.PredictFunc = func(_ context.Context, req *common.PredictRequest) (*common.PredictResponse, error) {
		assert.Equal(t, "intent", req.Model)
		assert.Equal(t, "I want to file a claim", req.Text)
		return &common.PredictResponse{
			Model:   "intent",
			Outputs: json.RawMessage(`{"intent":"file_claim","confidence":0.93}`),
		}, nil
	}

	c := newTestClassifier(t, mock)
	pred, err := c.Predict(context.Background(), "I want to file a claim")
	require.NoError(t, err)
	assert.Equal(t, "file_claim", pred.Intent)
	assert.InDelta(t, 0.93, pred.Confidence, 1e-9)
}

func TestPredict_EmptyTextRejected(t *testing.T) {
	c := newTestClassifier(t, common.NewMockServingClient())

	_, err := c.Predict(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestPredict_ClientErrorMapsToIntentFailure(t *testing.T) {
	mock := common.NewMockServingClient()
	mock.PredictFunc = func(_ context.Context, _ *common.PredictRequest) (*common.PredictResponse, error) {
		return nil, errors.New(errors.ErrCodeModelUnavailable, "down")
	}

	c := newTestClassifier(t, mock)
	_, err := c.Predict(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeIntentPredictFailed))
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelUnavailable))
}

func TestPredict_MissingIntentFieldIsBadResponse(t *testing.T) {
	mock := common.NewMockServingClient()
	mock.PredictFunc = func(_ context.Context, _ *common.PredictRequest) (*common.PredictResponse, error) {
		return &common.PredictResponse{Model: "intent", Outputs: json.RawMessage(`{"confidence":0.8}`)}, nil
	}

	c := newTestClassifier(t, mock)
	_, err := c.Predict(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelBadResponse))
}

func TestPredict_MalformedOutputsIsBadResponse(t *testing.T) {
	mock := common.NewMockServingClient()
	mock.PredictFunc = func(_ context.Context, _ *common.PredictRequest) (*common.PredictResponse, error) {
		return &common.PredictResponse{Model: "intent", Outputs: json.RawMessage(`[1,2]`)}, nil
	}

	c := newTestClassifier(t, mock)
	_, err := c.Predict(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelBadResponse))
}
