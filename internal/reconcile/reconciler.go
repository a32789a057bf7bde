package reconcile

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-sync-api/internal/models"
)

type recordKey struct {
	kind models.RecordKind
	id   string
}

// Reconciler owns the records a client currently holds in memory and merges
// incoming broadcast events into them. Kinds registered as list views also
// accept creation and deletion events for records not held yet.
type Reconciler struct {
	mu        sync.RWMutex
	records   map[recordKey]*Record
	listKinds map[models.RecordKind]bool
	logger    *zap.Logger
}

// NewReconciler builds an empty reconciler.
func NewReconciler(logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		records:   make(map[recordKey]*Record),
		listKinds: make(map[models.RecordKind]bool),
		logger:    logger,
	}
}

// WatchKind registers a kind as a list view: creation broadcasts insert new
// records and deletion broadcasts remove them.
func (rc *Reconciler) WatchKind(kind models.RecordKind) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.listKinds[kind] = true
}

// Track inserts a record built from a query result or creation response and
// returns it. An already tracked record is returned unchanged.
func (rc *Reconciler) Track(snapshot models.RecordSnapshot) *Record {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	key := recordKey{kind: snapshot.Kind, id: snapshot.ID}
	if existing, ok := rc.records[key]; ok {
		return existing
	}
	record := NewRecord(snapshot)
	rc.records[key] = record
	return record
}

// Get returns the tracked record, if held.
func (rc *Reconciler) Get(kind models.RecordKind, id string) (*Record, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	record, ok := rc.records[recordKey{kind: kind, id: id}]
	return record, ok
}

// Records returns all tracked records of a kind.
func (rc *Reconciler) Records(kind models.RecordKind) []*Record {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	var out []*Record
	for key, record := range rc.records {
		if key.kind == kind {
			out = append(out, record)
		}
	}
	return out
}

// Discard unmounts a record from local memory. A pending save response for it
// is ignored from here on.
func (rc *Reconciler) Discard(kind models.RecordKind, id string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	key := recordKey{kind: kind, id: id}
	if record, ok := rc.records[key]; ok {
		record.Discard()
		delete(rc.records, key)
	}
}

// HandleEvent routes a broadcast event into local state. Handlers are
// idempotent: replaying the same snapshot or deletion is harmless, which the
// channel requires since it gives no delivery-count guarantee.
func (rc *Reconciler) HandleEvent(event string, payload []byte) {
	switch event {
	case models.EventRecordDeleted, models.EventSectionDeleted:
		var del models.DeletionEventPayload
		if err := json.Unmarshal(payload, &del); err != nil {
			rc.logger.Warn("broadcast payload rejected", zap.String("event", event), zap.Error(err))
			return
		}
		rc.Discard(del.Kind, del.ID)
	default:
		var evt models.RecordEventPayload
		if err := json.Unmarshal(payload, &evt); err != nil {
			rc.logger.Warn("broadcast payload rejected", zap.String("event", event), zap.Error(err))
			return
		}
		rc.mergeSnapshot(evt.Snapshot)
	}
}

func (rc *Reconciler) mergeSnapshot(snapshot models.RecordSnapshot) {
	rc.mu.RLock()
	record, held := rc.records[recordKey{kind: snapshot.Kind, id: snapshot.ID}]
	listView := rc.listKinds[snapshot.Kind]
	rc.mu.RUnlock()

	if held {
		if !record.ApplyBroadcast(snapshot) {
			rc.logger.Debug("broadcast discarded",
				zap.String("kind", string(snapshot.Kind)),
				zap.String("id", snapshot.ID),
				zap.Bool("dirty", record.Dirty()),
			)
		}
		return
	}
	if !listView {
		// Not view-relevant; the next full query resynchronises if needed.
		return
	}
	rc.Track(snapshot)
}
