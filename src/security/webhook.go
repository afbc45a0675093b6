package security

import (
	"encoding/json"
	"net/http"

	"orderstate/src/model"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenHeader = "X-Webhook-Token"
	// TokenQueryParam serves alert sources that cannot set headers.
	TokenQueryParam = "token"
)

// HashToken returns the bcrypt hash to configure as WEBHOOK_TOKEN_HASH.
func HashToken(token string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// RequireWebhookToken rejects requests whose token does not match hash.
// An empty hash lets every request through.
func RequireWebhookToken(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(TokenHeader)
			if token == "" {
				token = r.URL.Query().Get(TokenQueryParam)
			}

			if token == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
				logger.WithFields(map[string]interface{}{
					"path":   r.URL.Path,
					"remote": r.RemoteAddr,
				}).Warn("webhook token mismatch")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(model.Response{Success: false, Message: "Unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
