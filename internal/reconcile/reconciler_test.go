package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-sync-api/internal/models"
)

func marshalEvent(t *testing.T, snapshot models.RecordSnapshot) []byte {
	t.Helper()
	payload, err := json.Marshal(models.RecordEventPayload{Snapshot: snapshot})
	require.NoError(t, err)
	return payload
}

func TestHandleEventMergesHeldRecord(t *testing.T) {
	rc := NewReconciler(nil)
	record := rc.Track(assignmentSnapshot("draft", 1))

	rc.HandleEvent(models.EventRecordUpdated, marshalEvent(t, assignmentSnapshot("updated", 2)))

	title, _ := record.Field("title")
	assert.Equal(t, "updated", title)
}

func TestHandleEventIgnoresUnheldRecordOutsideListView(t *testing.T) {
	rc := NewReconciler(nil)

	rc.HandleEvent(models.EventRecordCreated, marshalEvent(t, assignmentSnapshot("new", 1)))

	_, held := rc.Get(models.RecordKindAssignment, "rec-1")
	assert.False(t, held)
}

func TestHandleEventInsertsIntoListView(t *testing.T) {
	rc := NewReconciler(nil)
	rc.WatchKind(models.RecordKindAssignment)

	rc.HandleEvent(models.EventRecordCreated, marshalEvent(t, assignmentSnapshot("new", 1)))

	record, held := rc.Get(models.RecordKindAssignment, "rec-1")
	require.True(t, held)
	title, _ := record.Field("title")
	assert.Equal(t, "new", title)
}

func TestHandleEventIsIdempotent(t *testing.T) {
	rc := NewReconciler(nil)
	rc.WatchKind(models.RecordKindAssignment)

	payload := marshalEvent(t, assignmentSnapshot("new", 1))
	rc.HandleEvent(models.EventRecordCreated, payload)
	rc.HandleEvent(models.EventRecordCreated, payload)

	assert.Len(t, rc.Records(models.RecordKindAssignment), 1)
}

func TestHandleEventDeletion(t *testing.T) {
	rc := NewReconciler(nil)
	record := rc.Track(assignmentSnapshot("draft", 1))

	payload, err := json.Marshal(models.DeletionEventPayload{
		ID: "rec-1", ClassID: "class-1", Kind: models.RecordKindAssignment,
	})
	require.NoError(t, err)
	rc.HandleEvent(models.EventRecordDeleted, payload)

	_, held := rc.Get(models.RecordKindAssignment, "rec-1")
	assert.False(t, held)
	assert.True(t, record.Discarded())
}

func TestHandleEventMalformedPayloadDropped(t *testing.T) {
	rc := NewReconciler(nil)
	record := rc.Track(assignmentSnapshot("draft", 1))

	rc.HandleEvent(models.EventRecordUpdated, []byte(`{`))

	title, _ := record.Field("title")
	assert.Equal(t, "draft", title)
}

// A second client that is not dirty converges on the sender's saved title.
func TestSecondClientConvergesOnBroadcast(t *testing.T) {
	rc := NewReconciler(nil)
	record := rc.Track(assignmentSnapshot("stale", 1))

	saved := assignmentSnapshot("X", 2)
	rc.HandleEvent(models.EventRecordUpdated, marshalEvent(t, saved))

	title, _ := record.Field("title")
	assert.Equal(t, "X", title)
	assert.False(t, record.Dirty())
}
