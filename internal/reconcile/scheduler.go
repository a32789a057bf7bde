package reconcile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-sync-api/internal/models"
)

// SaveStatus tracks a record through the persistence state machine:
// Clean → Dirty → Saving → Clean, or Saving → Dirty on failure. Dirty while
// Saving is legal and means one re-save is queued.
type SaveStatus int

const (
	StatusClean SaveStatus = iota
	StatusDirty
	StatusSaving
)

// Gateway issues the authoritative update for a record's pending edits.
type Gateway interface {
	Update(ctx context.Context, kind models.RecordKind, id string, patch models.FieldPatch) (models.RecordSnapshot, error)
}

// Emitter re-publishes a successfully saved canonical snapshot so other
// participants converge.
type Emitter interface {
	PublishSaved(snapshot models.RecordSnapshot)
}

// ErrorSink receives save failures. The record stays dirty; the next local
// edit or an explicit flush re-triggers scheduling. No automatic retry.
type ErrorSink func(record *Record, err error)

type saveState struct {
	status SaveStatus
	timer  *time.Timer
	queued bool
}

// Scheduler watches dirty transitions and issues at most one in-flight save
// per record. Different records save concurrently without shared state.
type Scheduler struct {
	gateway  Gateway
	emitter  Emitter
	debounce time.Duration
	logger   *zap.Logger
	onError  ErrorSink

	mu     sync.Mutex
	states map[*Record]*saveState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler constructs a scheduler. A nil emitter or error sink is allowed.
func NewScheduler(gateway Gateway, emitter Emitter, debounce time.Duration, logger *zap.Logger, onError ErrorSink) *Scheduler {
	if debounce <= 0 {
		debounce = 400 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		gateway:  gateway,
		emitter:  emitter,
		debounce: debounce,
		logger:   logger,
		onError:  onError,
		states:   make(map[*Record]*saveState),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Notify tells the scheduler a record just took a local edit. The first
// notification after a clean state schedules one debounced save; edits while a
// save is in flight queue exactly one follow-up save.
func (s *Scheduler) Notify(record *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.states[record]
	if state == nil {
		state = &saveState{}
		s.states[record] = state
	}

	switch {
	case state.status == StatusSaving:
		state.queued = true
	case state.timer != nil:
		// Save already scheduled; the pending patch picks this edit up.
	default:
		state.status = StatusDirty
		state.timer = time.AfterFunc(s.debounce, func() { s.fire(record) })
	}
}

// Flush saves immediately, bypassing the debounce. Used by an explicit
// "save changes" action and after a failed save.
func (s *Scheduler) Flush(record *Record) {
	s.mu.Lock()
	state := s.states[record]
	if state == nil {
		state = &saveState{}
		s.states[record] = state
	}
	if state.status == StatusSaving {
		state.queued = true
		s.mu.Unlock()
		return
	}
	if state.timer != nil {
		state.timer.Stop()
		state.timer = nil
	}
	state.status = StatusDirty
	s.mu.Unlock()
	s.fire(record)
}

// Status returns the persistence status for a record.
func (s *Scheduler) Status(record *Record) SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state := s.states[record]; state != nil {
		return state.status
	}
	return StatusClean
}

// Stop cancels pending timers and waits for in-flight saves to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.mu.Lock()
	for _, state := range s.states {
		if state.timer != nil {
			state.timer.Stop()
			state.timer = nil
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) fire(record *Record) {
	s.mu.Lock()
	select {
	case <-s.ctx.Done():
		s.mu.Unlock()
		return
	default:
	}
	state := s.states[record]
	if state == nil || state.status == StatusSaving {
		s.mu.Unlock()
		return
	}
	state.status = StatusSaving
	state.timer = nil
	// Registered under the lock so Stop cannot observe the wait group empty
	// between the cancellation check and the save starting.
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	patch := record.PendingPatch()
	if len(patch) == 0 {
		s.settle(record, StatusClean)
		return
	}

	snapshot, err := s.gateway.Update(s.ctx, record.Kind(), record.ID(), patch)
	if err != nil {
		// Leave dirty; surface and wait for the next edit or explicit flush.
		s.settle(record, StatusDirty)
		s.logger.Warn("record save failed",
			zap.String("kind", string(record.Kind())),
			zap.String("id", record.ID()),
			zap.Error(err),
		)
		if s.onError != nil {
			s.onError(record, err)
		}
		return
	}

	if record.Discarded() {
		// Unmounted while saving; drop the response cleanly.
		s.mu.Lock()
		delete(s.states, record)
		s.mu.Unlock()
		return
	}

	record.Acknowledge(patch, snapshot)
	if s.emitter != nil {
		s.emitter.PublishSaved(snapshot)
	}

	s.mu.Lock()
	state = s.states[record]
	requeue := state.queued || record.Dirty()
	state.queued = false
	if requeue {
		state.status = StatusDirty
		state.timer = time.AfterFunc(s.debounce, func() { s.fire(record) })
	} else {
		state.status = StatusClean
	}
	s.mu.Unlock()
}

func (s *Scheduler) settle(record *Record, status SaveStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state := s.states[record]; state != nil {
		state.status = status
		state.queued = false
	}
}
