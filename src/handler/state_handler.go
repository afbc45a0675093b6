package handler

import (
	"context"
	"fmt"
	"net/http"

	"orderstate/src/model"

	"github.com/go-chi/chi/v5/middleware"
	logger "github.com/sirupsen/logrus"
)

type stateUpdater interface {
	HandleUpdate(ctx context.Context, payload model.UpdatePayload) error
}

type stateReader interface {
	ActiveState(ctx context.Context) (map[string]model.OrderDict, map[string][]model.TPDict, error)
}

// PlaceOrderHandler accepts either the bulk or the single-order payload and applies
// it atomically.
func PlaceOrderHandler(svc stateUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.WithField("request_id", middleware.GetReqID(r.Context()))

		var payload model.UpdatePayload
		if err := decodeBody(r, &payload); err != nil {
			log.WithError(err).Warn("invalid order payload")
			writeJSON(w, http.StatusBadRequest, model.Response{
				Success: false,
				Message: fmt.Sprintf("Invalid payload: %v", err),
			})
			return
		}
		log.WithField("bulk", payload.IsBulk()).Debug("Received order data")

		if err := svc.HandleUpdate(r.Context(), payload); err != nil {
			log.WithError(err).Error("failed to update orders")
			writeFailure(w, err.Error(), err)
			return
		}

		writeJSON(w, http.StatusOK, model.Response{
			Success: true,
			Message: "Orders and TP levels updated successfully",
		})
	}
}

// ActiveOrdersHandler returns every active order and TP level.
func ActiveOrdersHandler(svc stateReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, levels, err := svc.ActiveState(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to fetch active orders")
			writeFailure(w, fmt.Sprintf("Error fetching active orders: %v", err), err)
			return
		}

		writeJSON(w, http.StatusOK, model.ActiveStateResponse{
			Success:      true,
			ActiveOrders: orders,
			TPLevels:     levels,
		})
	}
}
