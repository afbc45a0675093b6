package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"orderstate/src/model"
	"orderstate/src/service"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"
)

type tpLevelStore interface {
	ReplaceTPLevels(ctx context.Context, symbol string, inputs []model.TPLevelInput) (service.ReconcileResult, error)
	TPLevels(ctx context.Context, symbol string) ([]model.TakeProfit, error)
	UpdateTPLevelAt(ctx context.Context, symbol string, index int, patch model.TPLevelInput) error
}

// SaveTPLevelsHandler replaces every TP level of {symbol}.
func SaveTPLevelsHandler(store tpLevelStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := chi.URLParam(r, "symbol")

		var payload model.SaveTPLevelsPayload
		if err := decodeBody(r, &payload); err != nil {
			logger.WithError(err).WithField("symbol", symbol).Warn("invalid TP levels payload")
			writeJSON(w, http.StatusBadRequest, model.Response{
				Success: false,
				Message: fmt.Sprintf("Invalid payload: %v", err),
			})
			return
		}

		res, err := store.ReplaceTPLevels(r.Context(), symbol, payload.TPLevels)
		if err != nil {
			msg := fmt.Sprintf("Error saving TP levels for %s: %v", symbol, err)
			logger.WithError(err).WithField("symbol", symbol).Error("failed to save TP levels")
			writeFailure(w, msg, err)
			return
		}

		logger.WithFields(map[string]interface{}{
			"symbol":   symbol,
			"inserted": res.Inserted,
			"updated":  res.Updated,
			"deleted":  res.Deleted,
		}).Debug("TP levels saved")

		writeJSON(w, http.StatusOK, model.Response{
			Success: true,
			Message: fmt.Sprintf("Take profit levels saved successfully for %s", symbol),
		})
	}
}

// GetTPLevelsHandler lists the TP levels of {symbol} in retrieval order.
func GetTPLevelsHandler(store tpLevelStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := chi.URLParam(r, "symbol")

		levels, err := store.TPLevels(r.Context(), symbol)
		if err != nil {
			logger.WithError(err).WithField("symbol", symbol).Error("failed to retrieve TP levels")
			writeFailure(w, fmt.Sprintf("Error retrieving TP levels for %s: %v", symbol, err), err)
			return
		}

		dicts := make([]model.TPDict, 0, len(levels))
		for _, tp := range levels {
			dicts = append(dicts, tp.ToDict())
		}

		writeJSON(w, http.StatusOK, model.TPLevelsResponse{
			Success:  true,
			Symbol:   symbol,
			TPLevels: dicts,
		})
	}
}

// SaveTPLevelHandler merges a partial level into the level at position {index}.
func SaveTPLevelHandler(store tpLevelStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := chi.URLParam(r, "symbol")

		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, model.Response{
				Success: false,
				Message: fmt.Sprintf("invalid TP level index %q", chi.URLParam(r, "index")),
			})
			return
		}

		var patch model.TPLevelInput
		if err := decodeBody(r, &patch); err != nil {
			writeJSON(w, http.StatusBadRequest, model.Response{
				Success: false,
				Message: fmt.Sprintf("Invalid payload: %v", err),
			})
			return
		}

		if err := store.UpdateTPLevelAt(r.Context(), symbol, index, patch); err != nil {
			logger.WithError(err).WithFields(map[string]interface{}{
				"symbol": symbol,
				"index":  index,
			}).Warn("failed to update TP level")
			writeFailure(w, err.Error(), err)
			return
		}

		writeJSON(w, http.StatusOK, model.Response{
			Success: true,
			Message: fmt.Sprintf("TP level updated for %s at index %d", symbol, index),
		})
	}
}
