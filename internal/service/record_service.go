package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-sync-api/internal/models"
	appErrors "github.com/noah-isme/classroom-sync-api/pkg/errors"
)

type recordRepo interface {
	Create(ctx context.Context, classID string, kind models.RecordKind, fields models.FieldPatch) (*models.StoredRecord, error)
	FindByID(ctx context.Context, kind models.RecordKind, id string) (*models.StoredRecord, error)
	List(ctx context.Context, filter models.RecordFilter, limit, offset int) ([]models.StoredRecord, error)
	Count(ctx context.Context, filter models.RecordFilter) (int, error)
	UpdateFields(ctx context.Context, kind models.RecordKind, id string, patch models.FieldPatch, expectedRevision *int64) (*models.StoredRecord, error)
	Delete(ctx context.Context, kind models.RecordKind, id string) (*models.StoredRecord, error)
}

// roomPublisher pushes events into a class's broadcast room. The hub satisfies
// it; a nil publisher disables broadcasting without touching the write path.
type roomPublisher interface {
	Publish(room, event string, payload interface{}) error
}

// CreateRecordRequest is the payload for new records.
type CreateRecordRequest struct {
	ClassID string            `json:"class_id" validate:"required"`
	Fields  models.FieldPatch `json:"fields" validate:"required"`
}

// PatchRecordRequest carries a partial field update. ExpectedRevision, when
// set, makes the patch conditional: the update is rejected with a
// stale-revision conflict if the stored revision has already moved past it.
type PatchRecordRequest struct {
	Fields           models.FieldPatch `json:"fields" validate:"required,min=1"`
	ExpectedRevision *int64            `json:"expected_revision,omitempty"`
}

// ListRecordsRequest scopes a listing.
type ListRecordsRequest struct {
	ClassID  string `validate:"required"`
	Page     int
	PageSize int
}

// RecordService owns the authoritative record store. Every accepted mutation
// is answered with the canonical snapshot and announced in the class room, so
// connected reconcilers converge without polling.
type RecordService struct {
	repo      recordRepo
	publisher roomPublisher
	validate  *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewRecordService constructs the service.
func NewRecordService(repo recordRepo, publisher roomPublisher, logger *zap.Logger) *RecordService {
	return &RecordService{
		repo:      repo,
		publisher: publisher,
		validate:  validator.New(),
		logger:    logger,
	}
}

// WithMetrics attaches save instrumentation.
func (s *RecordService) WithMetrics(metrics *MetricsService) *RecordService {
	s.metrics = metrics
	return s
}

// Get fetches the canonical snapshot of one record.
func (s *RecordService) Get(ctx context.Context, kind models.RecordKind, id string) (*models.RecordSnapshot, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown record kind")
	}
	stored, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find record: %w", err)
	}
	return s.toSnapshot(stored)
}

// List returns the snapshots of a class for one kind, with paging metadata.
func (s *RecordService) List(ctx context.Context, kind models.RecordKind, req ListRecordsRequest) ([]models.RecordSnapshot, *models.Pagination, error) {
	if !kind.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown record kind")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 100
	}

	filter := models.RecordFilter{ClassID: req.ClassID, Kind: kind}
	stored, err := s.repo.List(ctx, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, nil, fmt.Errorf("list records: %w", err)
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("count records: %w", err)
	}

	snapshots := make([]models.RecordSnapshot, 0, len(stored))
	for i := range stored {
		snapshot, err := s.toSnapshot(&stored[i])
		if err != nil {
			return nil, nil, err
		}
		snapshots = append(snapshots, *snapshot)
	}
	return snapshots, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Create stores a new record at revision 1 and announces it.
func (s *RecordService) Create(ctx context.Context, kind models.RecordKind, req CreateRecordRequest) (*models.RecordSnapshot, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown record kind")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	start := time.Now()
	stored, err := s.repo.Create(ctx, req.ClassID, kind, req.Fields)
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	s.metrics.ObserveSave(string(kind), time.Since(start))
	snapshot, err := s.toSnapshot(stored)
	if err != nil {
		return nil, err
	}
	s.announce(snapshot.ClassID, models.EventForCreate(kind), models.RecordEventPayload{Snapshot: *snapshot})
	return snapshot, nil
}

// Patch merges the partial update into the record, bumps its revision and
// announces the new snapshot.
func (s *RecordService) Patch(ctx context.Context, kind models.RecordKind, id string, req PatchRecordRequest) (*models.RecordSnapshot, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown record kind")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	start := time.Now()
	stored, err := s.repo.UpdateFields(ctx, kind, id, req.Fields, req.ExpectedRevision)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if req.ExpectedRevision != nil {
				// Distinguish a missing record from one that moved on.
				if _, findErr := s.repo.FindByID(ctx, kind, id); findErr == nil {
					return nil, appErrors.ErrStaleRevision
				}
			}
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("patch record: %w", err)
	}
	s.metrics.ObserveSave(string(kind), time.Since(start))
	snapshot, err := s.toSnapshot(stored)
	if err != nil {
		return nil, err
	}
	s.announce(snapshot.ClassID, models.EventForUpdate(kind), models.RecordEventPayload{Snapshot: *snapshot})
	return snapshot, nil
}

// Delete removes a record and announces the deletion.
func (s *RecordService) Delete(ctx context.Context, kind models.RecordKind, id string) error {
	if !kind.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown record kind")
	}
	stored, err := s.repo.Delete(ctx, kind, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return fmt.Errorf("delete record: %w", err)
	}
	s.announce(stored.ClassID, models.EventForDelete(kind), models.DeletionEventPayload{
		ID:      stored.ID,
		ClassID: stored.ClassID,
		Kind:    kind,
	})
	return nil
}

func (s *RecordService) toSnapshot(stored *models.StoredRecord) (*models.RecordSnapshot, error) {
	fields := map[string]interface{}{}
	if len(stored.Fields) > 0 {
		if err := json.Unmarshal(stored.Fields, &fields); err != nil {
			return nil, fmt.Errorf("decode record fields %s: %w", stored.ID, err)
		}
	}
	return &models.RecordSnapshot{
		ID:        stored.ID,
		ClassID:   stored.ClassID,
		Kind:      models.RecordKind(stored.Kind),
		Revision:  stored.Revision,
		Fields:    fields,
		UpdatedAt: stored.UpdatedAt,
	}, nil
}

func (s *RecordService) announce(room, event string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(room, event, payload); err != nil {
		s.logger.Warn("broadcast publish failed",
			zap.String("room", room), zap.String("event", event), zap.Error(err))
	}
}
