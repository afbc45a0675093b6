package handler

import (
	"encoding/json"
	"net/http"

	"orderstate/src/apperr"
	"orderstate/src/model"

	logger "github.com/sirupsen/logrus"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

// writeFailure maps err onto the error taxonomy and writes the failure envelope.
func writeFailure(w http.ResponseWriter, message string, err error) {
	writeJSON(w, apperr.HTTPStatus(err), model.Response{Success: false, Message: message})
}

func decodeBody(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
