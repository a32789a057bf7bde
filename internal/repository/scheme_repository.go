package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-sync-api/internal/models"
)

// SchemeRepository stores the structured grading documents. Writes append a
// new version instead of overwriting, so a bad upload never destroys the last
// readable document.
type SchemeRepository struct {
	db *sqlx.DB
}

// NewSchemeRepository constructs the repository.
func NewSchemeRepository(db *sqlx.DB) *SchemeRepository {
	return &SchemeRepository{db: db}
}

const schemeColumns = "id, class_id, kind, version, body, created_at"

// Save appends the document as the next version for the class and kind.
func (r *SchemeRepository) Save(ctx context.Context, classID string, kind models.SchemeKind, body json.RawMessage) (*models.StoredScheme, error) {
	const query = `INSERT INTO grading_documents (id, class_id, kind, version, body, created_at)
	VALUES ($1, $2, $3,
		COALESCE((SELECT MAX(version) FROM grading_documents WHERE class_id = $2 AND kind = $3), 0) + 1,
		$4, $5)
	RETURNING ` + schemeColumns
	var scheme models.StoredScheme
	if err := r.db.GetContext(ctx, &scheme, query, uuid.NewString(), classID, string(kind), []byte(body), time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("save grading document: %w", err)
	}
	return &scheme, nil
}

// Latest fetches the newest version of the document for the class and kind.
// Returns sql.ErrNoRows when the class never stored one.
func (r *SchemeRepository) Latest(ctx context.Context, classID string, kind models.SchemeKind) (*models.StoredScheme, error) {
	const query = `SELECT ` + schemeColumns + ` FROM grading_documents
	WHERE class_id = $1 AND kind = $2
	ORDER BY version DESC LIMIT 1`
	var scheme models.StoredScheme
	if err := r.db.GetContext(ctx, &scheme, query, classID, string(kind)); err != nil {
		return nil, err
	}
	return &scheme, nil
}

// Versions lists every stored version for the class and kind, newest first.
func (r *SchemeRepository) Versions(ctx context.Context, classID string, kind models.SchemeKind) ([]models.StoredScheme, error) {
	const query = `SELECT ` + schemeColumns + ` FROM grading_documents
	WHERE class_id = $1 AND kind = $2
	ORDER BY version DESC`
	var schemes []models.StoredScheme
	if err := r.db.SelectContext(ctx, &schemes, query, classID, string(kind)); err != nil {
		return nil, fmt.Errorf("list grading document versions: %w", err)
	}
	return schemes, nil
}
