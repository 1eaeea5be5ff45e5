// backend/src/services/grant_service.go
package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/esopfolio/backend/src/logger"
	"github.com/username/esopfolio/backend/src/model"
	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/parsers"
	"github.com/username/esopfolio/backend/src/processors"
)

const (
	// Per-user report caches; every key starts with the user prefix so an
	// upload or delete can drop them all.
	ckUserPrefix    = "user_%s_"
	ckStoredGrants  = ckUserPrefix + "grants"
	ckAnalyticsBase = ckUserPrefix + "analytics_%s_%s"

	DefaultCacheExpiration = 10 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type grantServiceImpl struct {
	db          *sql.DB
	validator   processors.CSVValidator
	normalizer  processors.RecordNormalizer
	reportCache *cache.Cache
}

func NewGrantService(
	db *sql.DB,
	validator processors.CSVValidator,
	normalizer processors.RecordNormalizer,
	reportCache *cache.Cache,
) GrantService {
	return &grantServiceImpl{
		db:          db,
		validator:   validator,
		normalizer:  normalizer,
		reportCache: reportCache,
	}
}

// ParseAndValidate decodes an upload and validates its header and rows.
// It only errors when the file cannot be parsed; validation problems are
// reported in the result.
func (s *grantServiceImpl) ParseAndValidate(file io.Reader, format string) ([]models.RawRecord, models.ValidationResult, error) {
	parser, err := parsers.GetParser(format)
	if err != nil {
		return nil, models.ValidationResult{}, err
	}
	parsed, err := parser.Parse(file)
	if err != nil {
		return nil, models.ValidationResult{}, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	result := s.validator.Validate(parsed.Records)
	if len(parsed.Header) > 0 {
		headerErrs, headerWarnings := s.validator.ValidateHeader(parsed.Header)
		result.Errors = append(headerErrs, result.Errors...)
		result.Warnings = append(append(headerWarnings, parsed.Warnings...), result.Warnings...)
		result.Summary.WarningCount = len(result.Warnings)
		result.IsValid = len(result.Errors) == 0
	}
	return parsed.Records, result, nil
}

func (s *grantServiceImpl) ValidateUpload(file io.Reader, format string) (*models.ValidationResult, error) {
	_, result, err := s.ParseAndValidate(file, format)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ProcessUpload validates an upload and, only if the whole batch is valid,
// replaces the user's stored grants with it.
func (s *grantServiceImpl) ProcessUpload(ctx context.Context, file io.Reader, userID, filename, format string) (*UploadResult, error) {
	overallStartTime := time.Now()
	log := logger.FromContext(ctx)
	log.Info("ProcessUpload START", "userID", userID, "format", format, "filename", filename)

	raws, result, err := s.ParseAndValidate(file, format)
	if err != nil {
		return nil, err
	}
	if !result.IsValid {
		log.Info("Upload rejected by validation", "userID", userID, "errors", len(result.Errors))
		return nil, &ValidationError{Result: result}
	}

	records := s.normalizer.NormalizeAll(raws)
	upload := model.GrantUpload{
		UserID:     userID,
		BatchID:    uuid.NewString(),
		Filename:   filename,
		Format:     strings.ToLower(format),
		UploadedAt: time.Now().UTC(),
	}
	if err := model.ReplaceGrants(ctx, s.db, upload, records); err != nil {
		return nil, fmt.Errorf("error storing grants: %w", err)
	}

	s.InvalidateUserCache(userID)

	log.Info("ProcessUpload END", "userID", userID, "rows", len(records), "duration", time.Since(overallStartTime))
	return &UploadResult{BatchID: upload.BatchID, RowCount: len(records), Validation: result}, nil
}

// GetGrants returns the user's stored batch, or ErrNoRecords if there is none.
func (s *grantServiceImpl) GetGrants(ctx context.Context, userID string) (*GrantBatch, error) {
	cacheKey := fmt.Sprintf(ckStoredGrants, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		if batch, ok := cached.(*GrantBatch); ok {
			logger.FromContext(ctx).Debug("Stored grants served from cache", "userID", userID)
			return batch, nil
		}
	}

	upload, err := model.GetUploadByUser(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading upload metadata: %w", err)
	}
	records, err := model.GetGrantsByUser(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading grants: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	batch := &GrantBatch{Upload: upload, Records: records}
	s.reportCache.Set(cacheKey, batch, cache.DefaultExpiration)
	return batch, nil
}

func (s *grantServiceImpl) DeleteGrants(ctx context.Context, userID string) (int64, error) {
	n, err := model.DeleteGrantsByUser(ctx, s.db, userID)
	if err != nil {
		return 0, fmt.Errorf("error deleting grants: %w", err)
	}
	s.InvalidateUserCache(userID)
	logger.FromContext(ctx).Info("Deleted stored grants", "userID", userID, "rows", n)
	return n, nil
}

// InvalidateUserCache clears all cached data for a user, forcing a complete rebuild on the next request.
func (s *grantServiceImpl) InvalidateUserCache(userID string) {
	prefix := fmt.Sprintf(ckUserPrefix, userID)
	deleted := 0
	for key := range s.reportCache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.reportCache.Delete(key)
			deleted++
		}
	}
	logger.L.Info("Invalidated all caches for user", "userID", userID, "keys", deleted)
}
