package models

import (
	"encoding/json"
	"time"
)

// SchemeKind separates the two structured documents stored per class.
type SchemeKind string

const (
	SchemeKindMarkScheme SchemeKind = "mark_scheme"
	SchemeKindBoundaries SchemeKind = "grading_boundary"
)

// Valid reports whether the kind names a known structured document.
func (k SchemeKind) Valid() bool {
	return k == SchemeKindMarkScheme || k == SchemeKindBoundaries
}

// StoredScheme is one version of a class's structured grading document. The
// body is kept verbatim as written; normalization into canonical shapes
// happens on read, never on write, so older clients keep working against
// whatever they stored.
type StoredScheme struct {
	ID        string          `db:"id" json:"id"`
	ClassID   string          `db:"class_id" json:"class_id"`
	Kind      SchemeKind      `db:"kind" json:"kind"`
	Version   int64           `db:"version" json:"version"`
	Body      json.RawMessage `db:"body" json:"body"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
