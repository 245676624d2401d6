// backend/src/utils/response.go
package utils

import (
	"encoding/json"
	"net/http"

	"github.com/username/aptledger/backend/src/logger"
)

// SendJSON writes data as a JSON response with the given status code.
func SendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.L.Error("Failed to encode JSON response", "error", err)
	}
}

// SendJSONError writes {"error": message} with the given status code.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	SendJSON(w, map[string]string{"error": message}, statusCode)
}

// SendStatus writes {"status": status} with 200 OK.
func SendStatus(w http.ResponseWriter, status string) {
	SendJSON(w, map[string]string{"status": status}, http.StatusOK)
}
