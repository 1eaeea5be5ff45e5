// backend/src/utils/http_utils.go
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/username/esopfolio/backend/src/logger"
	"github.com/username/esopfolio/backend/src/models"
)

// GenerateETag creates a SHA256 hash of the JSON representation of the data.
func GenerateETag(data interface{}) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal data for ETag generation: %w", err)
	}
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:]), nil
}

// SendJSON writes a success envelope around data.
func SendJSON(w http.ResponseWriter, data any, warnings []string, statusCode int) {
	writeEnvelope(w, models.Envelope{Status: models.EnvelopeSuccess, Data: data, Warnings: warnings}, statusCode)
}

// SendJSONError sends an error envelope with a machine-readable code.
func SendJSONError(w http.ResponseWriter, message, code string, statusCode int) {
	SendJSONErrorDetails(w, message, code, nil, nil, statusCode)
}

// SendJSONErrorDetails is SendJSONError with the row-level messages attached.
func SendJSONErrorDetails(w http.ResponseWriter, message, code string, errs, warnings []string, statusCode int) {
	logger.L.Warn("Sending JSON error to client", "message", message, "code", code, "statusCode", statusCode, "errorCount", len(errs))
	writeEnvelope(w, models.Envelope{
		Status:   models.EnvelopeError,
		Message:  message,
		Code:     code,
		Errors:   errs,
		Warnings: warnings,
	}, statusCode)
}

func writeEnvelope(w http.ResponseWriter, env models.Envelope, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		logger.L.Error("Error encoding JSON envelope", "error", err)
	}
}
