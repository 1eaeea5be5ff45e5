// backend/src/handlers/upload_handler.go
package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/username/esopfolio/backend/src/logger"
	"github.com/username/esopfolio/backend/src/parsers"
	"github.com/username/esopfolio/backend/src/security/validation"
	"github.com/username/esopfolio/backend/src/services"
	"github.com/username/esopfolio/backend/src/utils"
)

type UploadHandler struct {
	grantService       services.GrantService
	maxUploadSizeBytes int64
}

func NewUploadHandler(service services.GrantService, maxUploadSizeBytes int64) *UploadHandler {
	return &UploadHandler{
		grantService:       service,
		maxUploadSizeBytes: maxUploadSizeBytes,
	}
}

// uploadedFile is a checked multipart upload ready for parsing.
type uploadedFile struct {
	file     multipart.File
	filename string
	format   string
}

// readUploadedFile extracts and checks the "file" form field. It writes the
// error response itself and reports false when the request is unusable.
func readUploadedFile(w http.ResponseWriter, r *http.Request, maxBytes int64) (*uploadedFile, bool) {
	log := logger.FromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1024*1024)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		log.Warn("Failed to parse multipart form or request too large", "error", err, "limit", maxBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", maxBytes/(1024*1024)), "BAD_UPLOAD", http.StatusBadRequest)
		return nil, false
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		log.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", "BAD_UPLOAD", http.StatusBadRequest)
		return nil, false
	}

	fail := func(message, code string) (*uploadedFile, bool) {
		file.Close()
		utils.SendJSONError(w, message, code, http.StatusBadRequest)
		return nil, false
	}

	if fileHeader.Size > maxBytes {
		log.Warn("Uploaded file header reports size too large", "fileSize", fileHeader.Size, "limit", maxBytes)
		return fail(fmt.Sprintf("File too large, max %d MB (header check)", maxBytes/(1024*1024)), "BAD_UPLOAD")
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if clientContentType != "" {
		if err := validation.ValidateClientContentType(clientContentType); err != nil {
			log.Warn("Invalid client-declared file type", "contentType", clientContentType, "error", err)
			return fail(err.Error(), "BAD_UPLOAD")
		}
	}

	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		log.Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "error", err)
		return fail(err.Error(), "BAD_UPLOAD")
	}

	format, err := parsers.DetectFormat(r.URL.Query().Get("format"), fileHeader.Filename, clientContentType)
	if err != nil {
		return fail(err.Error(), "UNKNOWN_FORMAT")
	}

	log.Info("File content validated by magic bytes", "filename", fileHeader.Filename, "clientType", clientContentType, "detectedType", detectedContentType, "format", format)
	return &uploadedFile{file: file, filename: fileHeader.Filename, format: format}, true
}

// HandleValidate checks an upload without storing it.
func (h *UploadHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	upload, ok := readUploadedFile(w, r, h.maxUploadSizeBytes)
	if !ok {
		return
	}
	defer upload.file.Close()

	result, err := h.grantService.ValidateUpload(upload.file, upload.format)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, result, nil, http.StatusOK)
}

// HandleUpload validates an upload and replaces the user's stored grants.
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}
	upload, ok := readUploadedFile(w, r, h.maxUploadSizeBytes)
	if !ok {
		return
	}
	defer upload.file.Close()

	logger.FromContext(r.Context()).Info("Processing upload request", "userID", userID, "filename", upload.filename)
	result, err := h.grantService.ProcessUpload(r.Context(), upload.file, userID, upload.filename, upload.format)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, result, result.Validation.Warnings, http.StatusCreated)
}
