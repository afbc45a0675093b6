package hub

import (
	"encoding/json"
	"net/http"

	"orderstate/src/model"

	logger "github.com/sirupsen/logrus"
)

// PublishHandler lets non-websocket producers push a price update over HTTP.
func (h *Hub) PublishHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update model.PriceUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeResponse(w, http.StatusBadRequest, model.Response{Success: false, Message: "Invalid payload"})
			return
		}
		if err := h.Publish(update); err != nil {
			writeResponse(w, http.StatusBadRequest, model.Response{Success: false, Message: err.Error()})
			return
		}
		writeResponse(w, http.StatusOK, model.Response{Success: true, Message: "Price update broadcast"})
	}
}

func writeResponse(w http.ResponseWriter, status int, body model.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("[hub] failed to encode response")
	}
}
