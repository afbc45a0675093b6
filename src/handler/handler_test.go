package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"orderstate/src/apperr"
	"orderstate/src/database/dbtest"
	"orderstate/src/model"
	"orderstate/src/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStateService struct {
	err         error
	calledCount int
	payload     model.UpdatePayload

	orders map[string]model.OrderDict
	levels map[string][]model.TPDict

	tps    []model.TakeProfit
	symbol string
	index  int
	inputs []model.TPLevelInput
	patch  model.TPLevelInput
	reconc service.ReconcileResult
}

func (m *mockStateService) HandleUpdate(_ context.Context, payload model.UpdatePayload) error {
	m.calledCount++
	m.payload = payload
	return m.err
}

func (m *mockStateService) ActiveState(context.Context) (map[string]model.OrderDict, map[string][]model.TPDict, error) {
	m.calledCount++
	return m.orders, m.levels, m.err
}

func (m *mockStateService) ReplaceTPLevels(_ context.Context, symbol string, inputs []model.TPLevelInput) (service.ReconcileResult, error) {
	m.calledCount++
	m.symbol = symbol
	m.inputs = inputs
	return m.reconc, m.err
}

func (m *mockStateService) TPLevels(_ context.Context, symbol string) ([]model.TakeProfit, error) {
	m.calledCount++
	m.symbol = symbol
	return m.tps, m.err
}

func (m *mockStateService) UpdateTPLevelAt(_ context.Context, symbol string, index int, patch model.TPLevelInput) error {
	m.calledCount++
	m.symbol = symbol
	m.index = index
	m.patch = patch
	return m.err
}

func routes(m *mockStateService) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/place_order", PlaceOrderHandler(m))
	r.Get("/api/get_active_orders", ActiveOrdersHandler(m))
	r.Post("/api/save_tp_levels/{symbol}", SaveTPLevelsHandler(m))
	r.Get("/api/get_tp_levels/{symbol}", GetTPLevelsHandler(m))
	r.Put("/api/save_tp_level/{symbol}/{index}", SaveTPLevelHandler(m))
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded), rr.Body.String())
	return rr, decoded
}

func TestPlaceOrderHandler_InvalidJSON(t *testing.T) {
	m := &mockStateService{}
	rr, body := do(t, routes(m), http.MethodPost, "/api/place_order", `{"ticker": `)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, false, body["success"])
	assert.Zero(t, m.calledCount)
}

func TestPlaceOrderHandler_Success(t *testing.T) {
	m := &mockStateService{}
	rr, body := do(t, routes(m), http.MethodPost, "/api/place_order", `{"ticker": "AAPL1!", "action": "buy", "quantity": 3, "limitPrice": 150}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Orders and TP levels updated successfully", body["message"])
	require.Equal(t, 1, m.calledCount)
	assert.Equal(t, "AAPL1!", m.payload.Ticker.Value)
	assert.Equal(t, 150.0, m.payload.LimitPrice.Value)
}

func TestPlaceOrderHandler_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", apperr.Validation("quantity", "is required"), http.StatusBadRequest},
		{"persistence", apperr.Persistence("commit", assert.AnError), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockStateService{err: tt.err}
			rr, body := do(t, routes(m), http.MethodPost, "/api/place_order", `{"ticker": "ES", "action": "buy"}`)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.err.Error(), body["message"])
		})
	}
}

func TestActiveOrdersHandler(t *testing.T) {
	m := &mockStateService{
		orders: map[string]model.OrderDict{"AAPL": {Symbol: "AAPL", Action: "buy", Quantity: 5, EntryPrice: 100}},
		levels: map[string][]model.TPDict{"AAPL": {{Enabled: true, Quantity: 5, Target: 1.5, Price: 110}}},
	}
	rr, body := do(t, routes(m), http.MethodGet, "/api/get_active_orders", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["success"])
	orders := body["active_orders"].(map[string]interface{})
	assert.Equal(t, "buy", orders["AAPL"].(map[string]interface{})["action"])
	tps := body["tp_levels"].(map[string]interface{})["AAPL"].([]interface{})
	assert.Len(t, tps, 1)

	m.err = apperr.Persistence("fetch active orders", assert.AnError)
	rr, body = do(t, routes(m), http.MethodGet, "/api/get_active_orders", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, body["message"], "Error fetching active orders")
}

func TestSaveTPLevelsHandler(t *testing.T) {
	m := &mockStateService{}
	rr, body := do(t, routes(m), http.MethodPost, "/api/save_tp_levels/ES",
		`{"tp_levels": [{"enabled": true, "quantity": 1, "target": 2, "price": 5100, "hit": false}]}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Take profit levels saved successfully for ES", body["message"])
	assert.Equal(t, "ES", m.symbol)
	require.Len(t, m.inputs, 1)
	assert.Equal(t, 2.0, m.inputs[0].Target.Value)

	// no tp_levels key clears the symbol
	m = &mockStateService{}
	rr, _ = do(t, routes(m), http.MethodPost, "/api/save_tp_levels/ES", `{}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, m.inputs)
}

func TestGetTPLevelsHandler_EmptyListIsArray(t *testing.T) {
	m := &mockStateService{}
	rr, body := do(t, routes(m), http.MethodGet, "/api/get_tp_levels/NQ", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "NQ", body["symbol"])
	assert.Equal(t, []interface{}{}, body["tp_levels"])
}

func TestSaveTPLevelHandler(t *testing.T) {
	t.Run("invalid index", func(t *testing.T) {
		m := &mockStateService{}
		rr, _ := do(t, routes(m), http.MethodPut, "/api/save_tp_level/ES/abc", `{}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Zero(t, m.calledCount)
	})

	t.Run("not found", func(t *testing.T) {
		m := &mockStateService{err: apperr.NotFound("TP level index %d out of range for %s", 5, "ES")}
		rr, body := do(t, routes(m), http.MethodPut, "/api/save_tp_level/ES/5", `{"hit": true}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Contains(t, body["message"], "out of range")
	})

	t.Run("success", func(t *testing.T) {
		m := &mockStateService{}
		rr, body := do(t, routes(m), http.MethodPut, "/api/save_tp_level/ES/1", `{"hit": true}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "TP level updated for ES at index 1", body["message"])
		assert.Equal(t, 1, m.index)
		assert.True(t, m.patch.Hit.Present())
		assert.False(t, m.patch.Price.Set)
	})
}

// The handlers against a real service and store, end to end.
func TestHandlers_WithStore(t *testing.T) {
	svc := service.NewService(dbtest.NewSQLite(t))
	r := chi.NewRouter()
	r.Post("/api/place_order", PlaceOrderHandler(svc))
	r.Get("/api/get_active_orders", ActiveOrdersHandler(svc))
	r.Get("/api/get_tp_levels/{symbol}", GetTPLevelsHandler(svc))
	r.Put("/api/save_tp_level/{symbol}/{index}", SaveTPLevelHandler(svc))

	rr, _ := do(t, r, http.MethodPost, "/api/place_order", `{
		"active_orders": {"AAPL": {"action": "buy", "quantity": 10, "entry_price": 100}},
		"tp_levels": {"AAPL": [
			{"enabled": true, "quantity": 5, "target": 1.5, "price": 110, "hit": false},
			{"enabled": true, "quantity": 5, "target": 3, "price": 130, "hit": false}
		]}
	}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr, body := do(t, r, http.MethodPut, "/api/save_tp_level/AAPL/5", `{"hit": true}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, false, body["success"])

	rr, _ = do(t, r, http.MethodPut, "/api/save_tp_level/AAPL/0", `{"hit": true}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr, body = do(t, r, http.MethodGet, "/api/get_tp_levels/AAPL", "")
	require.Equal(t, http.StatusOK, rr.Code)
	tps := body["tp_levels"].([]interface{})
	require.Len(t, tps, 2)
	assert.Equal(t, true, tps[0].(map[string]interface{})["hit"])
	assert.Equal(t, false, tps[1].(map[string]interface{})["hit"])

	rr, body = do(t, r, http.MethodPost, "/api/place_order", `{"ticker": "MSFT", "action": "buy"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, body["message"], "quantity")

	rr, body = do(t, r, http.MethodGet, "/api/get_active_orders", "")
	require.Equal(t, http.StatusOK, rr.Code)
	orders := body["active_orders"].(map[string]interface{})
	assert.Len(t, orders, 1)
	assert.Contains(t, orders, "AAPL")
}
