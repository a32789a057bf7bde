package models

import "encoding/json"

// Broadcast event names. Room scope is always a class.
const (
	EventRecordCreated     = "record-created"
	EventRecordUpdated     = "record-updated"
	EventRecordDeleted     = "record-deleted"
	EventSectionCreated    = "section-created"
	EventSectionUpdated    = "section-updated"
	EventSectionDeleted    = "section-deleted"
	EventSubmissionUpdated = "submission-updated"
)

// Wire message types exchanged on the broadcast socket.
const (
	WireTypeJoin  = "join"
	WireTypeLeave = "leave"
	WireTypeEvent = "event"
	WireTypeAck   = "ack"
)

// WireMessage is the envelope carried over the websocket connection and the
// Redis fanout channel. Payloads are snapshots of the same shape the HTTP API
// returns.
type WireMessage struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Event   string          `json:"event,omitempty"`
	Sender  string          `json:"sender,omitempty"`
	Origin  string          `json:"origin,omitempty"`
	AckID   string          `json:"ack_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EventForCreate maps a record kind to its creation event name.
func EventForCreate(kind RecordKind) string {
	if kind == RecordKindSection {
		return EventSectionCreated
	}
	return EventRecordCreated
}

// EventForUpdate maps a record kind to its update event name. Submission
// updates carry their own event so graders can request an ack on them.
func EventForUpdate(kind RecordKind) string {
	switch kind {
	case RecordKindSection:
		return EventSectionUpdated
	case RecordKindSubmission:
		return EventSubmissionUpdated
	default:
		return EventRecordUpdated
	}
}

// EventForDelete maps a record kind to its deletion event name.
func EventForDelete(kind RecordKind) string {
	if kind == RecordKindSection {
		return EventSectionDeleted
	}
	return EventRecordDeleted
}

// RecordEventPayload is the payload carried by record lifecycle events.
type RecordEventPayload struct {
	Snapshot RecordSnapshot `json:"snapshot"`
}

// DeletionEventPayload announces a removed record; no snapshot survives it.
type DeletionEventPayload struct {
	ID      string     `json:"id"`
	ClassID string     `json:"class_id"`
	Kind    RecordKind `json:"kind"`
}
