package models

import "time"

// RecordKind identifies the server-backed entity a snapshot belongs to.
type RecordKind string

const (
	RecordKindAssignment RecordKind = "assignment"
	RecordKindSubmission RecordKind = "submission"
	RecordKindEvent      RecordKind = "event"
	RecordKindSection    RecordKind = "section"
)

// Valid reports whether the kind is one of the known record kinds.
func (k RecordKind) Valid() bool {
	switch k {
	case RecordKindAssignment, RecordKindSubmission, RecordKindEvent, RecordKindSection:
		return true
	}
	return false
}

// FieldPatch is a partial field update applied to a record. Values are the
// loosely typed JSON payloads the clients exchange; shape validation happens
// once at the ingress boundary.
type FieldPatch map[string]interface{}

// RecordSnapshot is the canonical, server-acknowledged form of a record. The
// revision counter is assigned by the store and increases monotonically with
// every accepted mutation, so consumers can drop stale broadcasts.
type RecordSnapshot struct {
	ID        string                 `json:"id"`
	ClassID   string                 `json:"class_id"`
	Kind      RecordKind             `json:"kind"`
	Revision  int64                  `json:"revision"`
	Fields    map[string]interface{} `json:"fields"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Clone returns a deep-enough copy of the snapshot for single-level field maps.
func (s RecordSnapshot) Clone() RecordSnapshot {
	fields := make(map[string]interface{}, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	s.Fields = fields
	return s
}

// StoredRecord is the database row backing a record snapshot. Fields round-trip
// as raw JSON.
type StoredRecord struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	Kind      string    `db:"kind" json:"kind"`
	Revision  int64     `db:"revision" json:"revision"`
	Fields    []byte    `db:"fields" json:"fields"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RecordFilter scopes record listing queries.
type RecordFilter struct {
	ClassID string
	Kind    RecordKind
}

// Pagination describes list paging metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
