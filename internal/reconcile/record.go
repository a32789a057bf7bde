// Package reconcile keeps locally held records consistent with the
// authoritative store and with broadcast snapshots from other clients. The
// merge policy is deliberately coarse: last local write wins while a record is
// dirty, last broadcast wins while it is idle. A concurrent editor's change
// can be lost when both edit inside the same save window; that limitation is
// accepted here instead of field-level conflict resolution.
package reconcile

import (
	"reflect"
	"sync"

	"github.com/noah-isme/classroom-sync-api/internal/models"
)

// StagedAttachment tracks a field addition or removal that has no server
// identifier yet, e.g. a freshly attached file before the save completes.
type StagedAttachment struct {
	LocalID string
	Field   string
	Name    string
	Removal bool
}

// Record is a locally held, server-backed entity. The dirty flag is true
// exactly when at least one field differs from the last value the gateway
// acknowledged.
type Record struct {
	mu sync.Mutex

	id       string
	classID  string
	kind     models.RecordKind
	fields   map[string]interface{}
	revision int64

	dirty     bool
	pending   models.FieldPatch
	staged    []StagedAttachment
	discarded bool
}

// NewRecord builds a clean record from a canonical snapshot.
func NewRecord(snapshot models.RecordSnapshot) *Record {
	fields := make(map[string]interface{}, len(snapshot.Fields))
	for k, v := range snapshot.Fields {
		fields[k] = v
	}
	return &Record{
		id:       snapshot.ID,
		classID:  snapshot.ClassID,
		kind:     snapshot.Kind,
		fields:   fields,
		revision: snapshot.Revision,
		pending:  models.FieldPatch{},
	}
}

// ID returns the immutable record identifier.
func (r *Record) ID() string { return r.id }

// Kind returns the record kind.
func (r *Record) Kind() models.RecordKind { return r.kind }

// ClassID returns the owning class room.
func (r *Record) ClassID() string { return r.classID }

// Dirty reports whether unsaved local edits exist.
func (r *Record) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// Revision returns the last acknowledged server revision.
func (r *Record) Revision() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revision
}

// Field returns the current local value for a field.
func (r *Record) Field(name string) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.fields[name]
	return v, ok
}

// Snapshot returns the current local state in wire shape.
func (r *Record) Snapshot() models.RecordSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	fields := make(map[string]interface{}, len(r.fields))
	for k, v := range r.fields {
		fields[k] = v
	}
	return models.RecordSnapshot{
		ID:       r.id,
		ClassID:  r.classID,
		Kind:     r.kind,
		Revision: r.revision,
		Fields:   fields,
	}
}

// ApplyLocalEdit sets the patched fields and marks the record dirty.
func (r *Record) ApplyLocalEdit(patch models.FieldPatch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.discarded {
		return
	}
	for name, value := range patch {
		r.fields[name] = value
		r.pending[name] = value
	}
	if len(patch) > 0 {
		r.dirty = true
	}
}

// StageAttachment records a pending field addition or removal that cannot be
// expressed as a plain field patch yet.
func (r *Record) StageAttachment(att StagedAttachment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.discarded {
		return
	}
	r.staged = append(r.staged, att)
	r.dirty = true
}

// StagedAttachments returns the attachments awaiting a server identifier.
func (r *Record) StagedAttachments() []StagedAttachment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StagedAttachment, len(r.staged))
	copy(out, r.staged)
	return out
}

// ApplyBroadcast merges an externally announced snapshot. A dirty record
// discards the snapshot entirely; an idle one overwrites every field present
// in it. Snapshots older than the held revision are ignored. The dirty flag is
// never changed by a merge. The return value reports whether anything was
// applied.
func (r *Record) ApplyBroadcast(snapshot models.RecordSnapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.discarded || r.dirty {
		return false
	}
	if snapshot.Revision > 0 && snapshot.Revision < r.revision {
		return false
	}
	for name, value := range snapshot.Fields {
		r.fields[name] = value
	}
	if snapshot.Revision > 0 {
		r.revision = snapshot.Revision
	}
	return true
}

// PendingPatch returns a copy of the unsaved edits. The scheduler captures
// this immediately before issuing a save.
func (r *Record) PendingPatch() models.FieldPatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	patch := make(models.FieldPatch, len(r.pending))
	for k, v := range r.pending {
		patch[k] = v
	}
	return patch
}

// Acknowledge merges the canonical post-save snapshot and retires the saved
// patch. Fields edited again while the save was in flight stay pending, so the
// record remains dirty and a follow-up save is due.
func (r *Record) Acknowledge(saved models.FieldPatch, canonical models.RecordSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.discarded {
		return
	}
	for name, value := range saved {
		if current, ok := r.pending[name]; ok && reflect.DeepEqual(current, value) {
			delete(r.pending, name)
		}
	}
	for name, value := range canonical.Fields {
		if _, stillPending := r.pending[name]; !stillPending {
			r.fields[name] = value
		}
	}
	if canonical.Revision > 0 {
		r.revision = canonical.Revision
	}
	r.staged = nil
	r.dirty = len(r.pending) > 0
}

// Discard marks the record as removed from local memory. A save response that
// arrives afterwards is ignored cleanly.
func (r *Record) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discarded = true
}

// Discarded reports whether the record was unmounted.
func (r *Record) Discarded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discarded
}
