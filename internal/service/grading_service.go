package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-sync-api/internal/grading"
	"github.com/noah-isme/classroom-sync-api/internal/models"
	"github.com/noah-isme/classroom-sync-api/internal/schema"
	"github.com/noah-isme/classroom-sync-api/pkg/config"
	appErrors "github.com/noah-isme/classroom-sync-api/pkg/errors"
)

type schemeRepo interface {
	Save(ctx context.Context, classID string, kind models.SchemeKind, body json.RawMessage) (*models.StoredScheme, error)
	Latest(ctx context.Context, classID string, kind models.SchemeKind) (*models.StoredScheme, error)
	Versions(ctx context.Context, classID string, kind models.SchemeKind) ([]models.StoredScheme, error)
}

type gradingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type submissionReader interface {
	FindByID(ctx context.Context, kind models.RecordKind, id string) (*models.StoredRecord, error)
}

// GradingService serves normalized grading documents and computed summaries.
// Rubric display is best effort: an unreadable document degrades to an empty
// scheme and a summary without a letter, never to a failed page.
type GradingService struct {
	schemes     schemeRepo
	submissions submissionReader
	cache       gradingCache
	cfg         config.GradingConfig
	logger      *zap.Logger
}

// NewGradingService constructs the service. cache may be nil.
func NewGradingService(schemes schemeRepo, submissions submissionReader, cache gradingCache, cfg config.GradingConfig, logger *zap.Logger) *GradingService {
	if cfg.DefaultGrade == "" {
		cfg.DefaultGrade = grading.GradeNotAvailable
	}
	if cfg.DefaultColor == "" {
		cfg.DefaultColor = grading.NeutralColor
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &GradingService{
		schemes:     schemes,
		submissions: submissions,
		cache:       cache,
		cfg:         cfg,
		logger:      logger,
	}
}

func schemeCacheKey(classID string) string    { return "grading:scheme:" + classID }
func boundaryCacheKey(classID string) string  { return "grading:boundaries:" + classID }
func classCachePattern(classID string) string { return "grading:*:" + classID }

// SaveDocument stores a structured grading document verbatim as a new version
// and drops the class's cached normalized shapes. The body only has to be
// valid JSON; unreadable encodings surface on read, where degradation applies.
func (s *GradingService) SaveDocument(ctx context.Context, classID string, kind models.SchemeKind, body json.RawMessage) (*models.StoredScheme, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document kind")
	}
	if !json.Valid(body) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document body is not valid JSON")
	}
	stored, err := s.schemes.Save(ctx, classID, kind, body)
	if err != nil {
		return nil, fmt.Errorf("save grading document: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, classCachePattern(classID)); err != nil {
			s.logger.Warn("grading cache invalidation failed", zap.String("class_id", classID), zap.Error(err))
		}
	}
	return stored, nil
}

// DocumentVersions lists every stored version for audit views.
func (s *GradingService) DocumentVersions(ctx context.Context, classID string, kind models.SchemeKind) ([]models.StoredScheme, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document kind")
	}
	return s.schemes.Versions(ctx, classID, kind)
}

// SchemeForClass returns the class's canonical rubric. A class without a
// stored scheme, or with one in an unrecognized encoding, gets an empty
// scheme.
func (s *GradingService) SchemeForClass(ctx context.Context, classID string) (models.RubricScheme, error) {
	if s.cache != nil {
		var cached models.RubricScheme
		if err := s.cache.Get(ctx, schemeCacheKey(classID), &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("scheme cache read failed", zap.String("class_id", classID), zap.Error(err))
		}
	}

	stored, err := s.schemes.Latest(ctx, classID, models.SchemeKindMarkScheme)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RubricScheme{}, nil
		}
		return models.RubricScheme{}, fmt.Errorf("load mark scheme: %w", err)
	}

	scheme, err := schema.NormalizeScheme(stored.Body)
	if err != nil {
		if errors.Is(err, appErrors.ErrUnrecognizedSchema) {
			s.logger.Warn("mark scheme in unrecognized encoding",
				zap.String("class_id", classID), zap.Int64("version", stored.Version), zap.Error(err))
			return models.RubricScheme{}, nil
		}
		return models.RubricScheme{}, err
	}

	s.cachePut(ctx, schemeCacheKey(classID), scheme)
	return scheme, nil
}

// BoundariesForClass returns the class's canonical boundary table, empty when
// missing or unreadable.
func (s *GradingService) BoundariesForClass(ctx context.Context, classID string) (models.GradingBoundary, error) {
	if s.cache != nil {
		var cached models.GradingBoundary
		if err := s.cache.Get(ctx, boundaryCacheKey(classID), &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("boundary cache read failed", zap.String("class_id", classID), zap.Error(err))
		}
	}

	stored, err := s.schemes.Latest(ctx, classID, models.SchemeKindBoundaries)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.GradingBoundary{}, nil
		}
		return models.GradingBoundary{}, fmt.Errorf("load grading boundaries: %w", err)
	}

	table, err := schema.NormalizeBoundaries(stored.Body)
	if err != nil {
		if errors.Is(err, appErrors.ErrUnrecognizedSchema) {
			s.logger.Warn("boundary table in unrecognized encoding",
				zap.String("class_id", classID), zap.Int64("version", stored.Version), zap.Error(err))
			return models.GradingBoundary{}, nil
		}
		return models.GradingBoundary{}, err
	}

	s.cachePut(ctx, boundaryCacheKey(classID), table)
	return table, nil
}

// Preview computes the summary for an ad-hoc grade against the class's
// current scheme and boundaries, without touching any submission.
func (s *GradingService) Preview(ctx context.Context, classID string, grade models.SubmissionGrade) (models.GradeSummary, error) {
	scheme, err := s.SchemeForClass(ctx, classID)
	if err != nil {
		return models.GradeSummary{}, err
	}
	table, err := s.BoundariesForClass(ctx, classID)
	if err != nil {
		return models.GradeSummary{}, err
	}
	return s.summarize(classID, grade, scheme, table), nil
}

// SubmissionSummary loads a submission's stored grade and computes its
// summary. A submission that was never graded summarizes as zero points.
func (s *GradingService) SubmissionSummary(ctx context.Context, classID, submissionID string) (models.GradeSummary, error) {
	stored, err := s.submissions.FindByID(ctx, models.RecordKindSubmission, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.GradeSummary{}, appErrors.ErrNotFound
		}
		return models.GradeSummary{}, fmt.Errorf("load submission: %w", err)
	}
	if stored.ClassID != classID {
		return models.GradeSummary{}, appErrors.ErrNotFound
	}

	grade, err := parseSubmissionGrade(stored.Fields)
	if err != nil {
		s.logger.Warn("submission grade unreadable",
			zap.String("submission_id", submissionID), zap.Error(err))
		grade = models.SubmissionGrade{}
	}

	return s.Preview(ctx, classID, grade)
}

// summarize applies the configured fallbacks. A scheme with an empty-levels
// criterion cannot produce a defined total, so the summary degrades to the
// default grade instead of failing the read path.
func (s *GradingService) summarize(classID string, grade models.SubmissionGrade, scheme models.RubricScheme, table models.GradingBoundary) models.GradeSummary {
	summary, err := grading.Summarize(grade, scheme, table)
	if err != nil {
		s.logger.Warn("grade summary degraded", zap.String("class_id", classID), zap.Error(err))
		return models.GradeSummary{Letter: s.cfg.DefaultGrade, Color: s.cfg.DefaultColor}
	}
	if summary.Letter == grading.GradeNotAvailable {
		summary.Letter = s.cfg.DefaultGrade
		if summary.Color == grading.NeutralColor {
			summary.Color = s.cfg.DefaultColor
		}
	}
	return summary
}

func (s *GradingService) cachePut(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("grading cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// parseSubmissionGrade extracts the grader's selections from a submission's
// field document. The "grade" field holds the loosely typed shape browsers
// write, so it round-trips through JSON instead of type assertions.
func parseSubmissionGrade(fields []byte) (models.SubmissionGrade, error) {
	if len(fields) == 0 {
		return models.SubmissionGrade{}, nil
	}
	var doc struct {
		Grade *models.SubmissionGrade `json:"grade"`
	}
	if err := json.Unmarshal(fields, &doc); err != nil {
		return models.SubmissionGrade{}, fmt.Errorf("decode submission fields: %w", err)
	}
	if doc.Grade == nil {
		return models.SubmissionGrade{}, nil
	}
	return *doc.Grade, nil
}
