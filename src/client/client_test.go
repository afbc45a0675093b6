package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"orderstate/src/model"
	"orderstate/src/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_PlaceOrderSendsPayloadAndToken(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/place_order", r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get(security.TokenHeader))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		_ = json.NewEncoder(w).Encode(model.Response{Success: true, Message: "ok"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok", time.Second)
	payload := model.UpdatePayload{
		Ticker:      model.Some("ES1!"),
		OrderFields: model.OrderFields{Action: model.Some("buy"), Quantity: model.Some(int64(2))},
	}

	resp, err := c.PlaceOrder(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "ES1!", gotBody["ticker"])
	assert.Equal(t, "buy", gotBody["action"])
	assert.EqualValues(t, 2, gotBody["quantity"])
	assert.NotContains(t, gotBody, "entry_price")
}

func TestClient_TPLevels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/get_tp_levels/NQ", r.URL.Path)
		assert.Empty(t, r.Header.Get(security.TokenHeader))
		_ = json.NewEncoder(w).Encode(model.TPLevelsResponse{
			Success:  true,
			Symbol:   "NQ",
			TPLevels: []model.TPDict{{Enabled: true, Quantity: 1, Target: 2, Price: 20000}},
		})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "", time.Second).TPLevels(context.Background(), "NQ")
	require.NoError(t, err)
	assert.Equal(t, "NQ", resp.Symbol)
	require.Len(t, resp.TPLevels, 1)
	assert.Equal(t, 20000.0, resp.TPLevels[0].Price)
}

func TestClient_UpdateTPLevelPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/save_tp_level/ES/3", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"hit": true}, body)

		_ = json.NewEncoder(w).Encode(model.Response{Success: true})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).
		UpdateTPLevel(context.Background(), "ES", 3, model.TPLevelInput{Hit: model.Some(true)})
	require.NoError(t, err)
}

func TestClient_ErrorStatusIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(model.Response{Success: false, Message: "Invalid index"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).
		UpdateTPLevel(context.Background(), "ES", 9, model.TPLevelInput{Hit: model.Some(true)})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Invalid index", apiErr.Message)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
