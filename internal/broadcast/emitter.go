package broadcast

import (
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-sync-api/internal/models"
)

// Emitter re-publishes canonical snapshots after a successful save so other
// participants' reconcilers converge. It satisfies the persistence scheduler's
// emitter contract.
type Emitter struct {
	sub    *Subscriber
	logger *zap.Logger
}

// NewEmitter wraps a connected subscriber.
func NewEmitter(sub *Subscriber, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{sub: sub, logger: logger}
}

// PublishSaved announces the saved snapshot in the record's class room.
// Fire and forget; a failed publish is only logged, the save already
// succeeded.
func (e *Emitter) PublishSaved(snapshot models.RecordSnapshot) {
	event := models.EventForUpdate(snapshot.Kind)
	payload := models.RecordEventPayload{Snapshot: snapshot}
	if err := e.sub.Emit(snapshot.ClassID, event, payload, nil); err != nil {
		e.logger.Warn("broadcast emit failed",
			zap.String("event", event),
			zap.String("record", snapshot.ID),
			zap.Error(err),
		)
	}
}
