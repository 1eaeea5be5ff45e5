package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/username/esopfolio/backend/src/logger"
	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/parsers"
	"github.com/username/esopfolio/backend/src/services"
	"github.com/username/esopfolio/backend/src/utils"
)

type PortfolioHandler struct {
	analyticsService   services.AnalyticsService
	exportService      services.ExportService
	maxUploadSizeBytes int64
}

func NewPortfolioHandler(analyticsService services.AnalyticsService, exportService services.ExportService, maxUploadSizeBytes int64) *PortfolioHandler {
	return &PortfolioHandler{
		analyticsService:   analyticsService,
		exportService:      exportService,
		maxUploadSizeBytes: maxUploadSizeBytes,
	}
}

// HandleAnalyzeUpload analyzes an uploaded file without storing it.
func (h *PortfolioHandler) HandleAnalyzeUpload(w http.ResponseWriter, r *http.Request) {
	opts, err := parseAnalyzeOptions(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	upload, ok := readUploadedFile(w, r, h.maxUploadSizeBytes)
	if !ok {
		return
	}
	defer upload.file.Close()

	data, err := h.analyticsService.AnalyzeUpload(r.Context(), upload.file, upload.format, opts)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, data, data.Meta.Warnings, http.StatusOK)
}

// HandleGetAnalytics analyzes the user's stored grants, answering 304 when
// the client already holds the same result.
func (h *PortfolioHandler) HandleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}
	opts, err := parseAnalyzeOptions(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	logger.FromContext(r.Context()).Debug("Handling GetAnalytics request with ETag support", "userID", userID)

	data, err := h.analyticsService.AnalyzeStored(r.Context(), userID, opts)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if writeNotModified(w, r, data) {
		return
	}
	utils.SendJSON(w, data, data.Meta.Warnings, http.StatusOK)
}

// HandleExport streams the per-row calculations of the stored grants as CSV or JSON.
func (h *PortfolioHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = parsers.FormatCSV
	}
	if format != parsers.FormatCSV && format != parsers.FormatJSON {
		utils.SendJSONError(w, fmt.Sprintf("unsupported export format '%s'", format), "UNKNOWN_FORMAT", http.StatusBadRequest)
		return
	}
	opts, err := parseAnalyzeOptions(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	data, err := h.analyticsService.AnalyzeStored(r.Context(), userID, opts)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	contentType := "text/csv"
	if format == parsers.FormatJSON {
		contentType = "application/json"
	}
	filename := fmt.Sprintf("esop_analytics_%s.%s", time.Now().UTC().Format("20060102_150405"), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := h.exportService.ExportRows(w, data.PerRowCalculations, format); err != nil {
		logger.FromContext(r.Context()).Error("Error writing export", "userID", userID, "format", format, "error", err)
	}
}

// parseAnalyzeOptions reads the region and inflationRate query parameters.
func parseAnalyzeOptions(r *http.Request) (services.AnalyzeOptions, error) {
	var opts services.AnalyzeOptions
	q := r.URL.Query()

	switch region := strings.ToUpper(strings.TrimSpace(q.Get("region"))); region {
	case "":
	case "IN", "INDIA":
		opts.Region = models.RegionIndia
	case "US", "USA":
		opts.Region = models.RegionUS
	default:
		return opts, fmt.Errorf("unsupported region '%s'; use IN or US", region)
	}

	if s := strings.TrimSpace(q.Get("inflationRate")); s != "" {
		rate, err := strconv.ParseFloat(s, 64)
		if err != nil || rate < 0 || rate >= 1 {
			return opts, fmt.Errorf("inflationRate must be a number in [0, 1), got '%s'", s)
		}
		opts.InflationRate = &rate
	}
	return opts, nil
}

// writeNotModified sets the ETag for data and answers 304 if the client
// already holds it. It reports whether the response was written.
func writeNotModified(w http.ResponseWriter, r *http.Request, data any) bool {
	log := logger.FromContext(r.Context())
	w.Header().Set("Cache-Control", "no-cache, private")

	currentETag, err := utils.GenerateETag(data)
	if err != nil || currentETag == "" {
		log.Warn("Proceeding without ETag check due to ETag generation error or empty ETag", "error", err)
		return false
	}

	quotedETag := fmt.Sprintf("\"%s\"", currentETag)
	w.Header().Set("ETag", quotedETag)
	clientETag := r.Header.Get("If-None-Match")
	for _, cETag := range strings.Split(clientETag, ",") {
		if strings.TrimSpace(cETag) == quotedETag {
			log.Info("ETag match", "path", r.URL.Path, "etag", currentETag)
			w.WriteHeader(http.StatusNotModified)
			return true
		}
	}
	if clientETag != "" {
		log.Debug("ETag mismatch", "clientETags", clientETag, "serverETag", quotedETag)
	}
	return false
}
