package handlers

import (
	"errors"
	"net/http"

	"github.com/username/esopfolio/backend/src/logger"
	"github.com/username/esopfolio/backend/src/services"
	"github.com/username/esopfolio/backend/src/utils"
)

// sendServiceError maps a service error to its HTTP response. Unexpected
// errors are logged and answered with a generic message.
func sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		log.Warn("Request rejected by validation", "errors", len(validationErr.Result.Errors))
		utils.SendJSONErrorDetails(w, "Validation failed", "VALIDATION_FAILED",
			validationErr.Result.Errors, validationErr.Result.Warnings, http.StatusBadRequest)
	case errors.Is(err, services.ErrParsingFailed):
		utils.SendJSONError(w, err.Error(), "PARSE_ERROR", http.StatusBadRequest)
	case errors.Is(err, services.ErrUnknownFormat):
		utils.SendJSONError(w, err.Error(), "UNKNOWN_FORMAT", http.StatusBadRequest)
	case errors.Is(err, services.ErrMixedRegions):
		utils.SendJSONError(w, err.Error(), "MIXED_REGIONS", http.StatusBadRequest)
	case errors.Is(err, services.ErrNoRecords):
		utils.SendJSONError(w, "No grant records stored. Upload a file first.", "NO_RECORDS", http.StatusNotFound)
	default:
		log.Error("Internal error handling request", "path", r.URL.Path, "error", err)
		utils.SendJSONError(w, "An internal error occurred. Please try again later.", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
