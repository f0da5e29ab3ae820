package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/models"
	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
)

const studyListCacheKey = "reporter:studies"

type studyLister interface {
	ListStudies(ctx context.Context) ([]models.Study, error)
}

// StudyDirectory resolves the set of studies a request applies to, caching the
// full study list between requests.
type StudyDirectory struct {
	source studyLister
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewStudyDirectory constructs the directory. cache may be nil.
func NewStudyDirectory(source studyLister, cache *CacheService, ttl time.Duration, logger *zap.Logger) *StudyDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudyDirectory{source: source, cache: cache, ttl: ttl, logger: logger}
}

// ListStudies returns every study known to Bridge. Cache failures fall back to Bridge.
func (d *StudyDirectory) ListStudies(ctx context.Context) ([]models.Study, error) {
	var cached []models.Study
	if hit, err := d.cache.Get(ctx, studyListCacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	studies, err := d.source.ListStudies(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess, "list studies")
	}
	if err := d.cache.Set(ctx, studyListCacheKey, studies, d.ttl); err != nil {
		d.logger.Debug("study list not cached", zap.Error(err))
	}
	return studies, nil
}

// Resolve returns the whitelisted studies when the request names any, otherwise all studies.
func (d *StudyDirectory) Resolve(ctx context.Context, req models.BridgeReporterRequest) ([]models.Study, error) {
	if req.HasWhitelist() {
		studies := make([]models.Study, 0, len(req.StudyWhitelist))
		for _, id := range req.StudyWhitelist {
			studies = append(studies, models.Study{Identifier: id})
		}
		return studies, nil
	}
	return d.ListStudies(ctx)
}
