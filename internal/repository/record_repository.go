package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-sync-api/internal/models"
)

// RecordRepository persists class records. Every accepted mutation bumps the
// row's revision counter inside the same statement, so concurrent writers can
// never produce two snapshots with the same revision.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs the repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

const recordColumns = "id, class_id, kind, revision, fields, created_at, updated_at"

// Create inserts a new record at revision 1 and returns the stored row.
func (r *RecordRepository) Create(ctx context.Context, classID string, kind models.RecordKind, fields models.FieldPatch) (*models.StoredRecord, error) {
	encoded, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal record fields: %w", err)
	}
	now := time.Now().UTC()
	const query = `INSERT INTO records (id, class_id, kind, revision, fields, created_at, updated_at)
	VALUES ($1, $2, $3, 1, $4, $5, $5)
	RETURNING ` + recordColumns
	var record models.StoredRecord
	if err := r.db.GetContext(ctx, &record, query, uuid.NewString(), classID, string(kind), encoded, now); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	return &record, nil
}

// FindByID fetches a record row.
func (r *RecordRepository) FindByID(ctx context.Context, kind models.RecordKind, id string) (*models.StoredRecord, error) {
	const query = `SELECT ` + recordColumns + ` FROM records WHERE kind = $1 AND id = $2`
	var record models.StoredRecord
	if err := r.db.GetContext(ctx, &record, query, string(kind), id); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns records matching the filter, newest first.
func (r *RecordRepository) List(ctx context.Context, filter models.RecordFilter, limit, offset int) ([]models.StoredRecord, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 2)
	builder.WriteString(`SELECT ` + recordColumns + ` FROM records`)

	conditions := make([]string, 0, 2)
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY updated_at DESC")

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var records []models.StoredRecord
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// Count reports how many records match the filter.
func (r *RecordRepository) Count(ctx context.Context, filter models.RecordFilter) (int, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 2)
	builder.WriteString("SELECT COUNT(*) FROM records")

	conditions := make([]string, 0, 2)
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}

	var count int
	if err := r.db.GetContext(ctx, &count, builder.String(), args...); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// UpdateFields merges the patch into the record's field document and bumps the
// revision. Unmentioned fields keep their stored values. With a non-nil
// expectedRevision the update only matches while the stored revision still
// equals it, so a concurrent writer surfaces as sql.ErrNoRows.
func (r *RecordRepository) UpdateFields(ctx context.Context, kind models.RecordKind, id string, patch models.FieldPatch, expectedRevision *int64) (*models.StoredRecord, error) {
	encoded, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("marshal field patch: %w", err)
	}
	query := `UPDATE records
	SET fields = fields || $1::jsonb, revision = revision + 1, updated_at = $2
	WHERE kind = $3 AND id = $4`
	args := []interface{}{encoded, time.Now().UTC(), string(kind), id}
	if expectedRevision != nil {
		args = append(args, *expectedRevision)
		query += fmt.Sprintf(" AND revision = $%d", len(args))
	}
	query += ` RETURNING ` + recordColumns
	var record models.StoredRecord
	if err := r.db.GetContext(ctx, &record, query, args...); err != nil {
		return nil, err
	}
	return &record, nil
}

// Delete removes a record. Returns sql.ErrNoRows when nothing matched.
func (r *RecordRepository) Delete(ctx context.Context, kind models.RecordKind, id string) (*models.StoredRecord, error) {
	const query = `DELETE FROM records WHERE kind = $1 AND id = $2 RETURNING ` + recordColumns
	var record models.StoredRecord
	if err := r.db.GetContext(ctx, &record, query, string(kind), id); err != nil {
		return nil, err
	}
	return &record, nil
}
