package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-sync-api/internal/models"
)

// Handler processes one received event. Handlers must be idempotent; the
// channel gives no delivery-count guarantee.
type Handler func(event string, payload []byte)

// Subscriber is the client end of the broadcast channel. Handler registration
// is de-duplicated per (room, event) pair, so redundant registrations across
// navigations never double-handle an event.
type Subscriber struct {
	conn   *websocket.Conn
	id     string
	logger *zap.Logger

	mu       sync.Mutex
	handlers map[string]map[string]Handler
	acks     map[string]func()

	writeMu sync.Mutex
	closed  bool
}

// Dial connects to a gateway's broadcast endpoint. senderID identifies this
// client across reconnects; empty means a random identity.
func Dial(ctx context.Context, url, senderID string, logger *zap.Logger) (*Subscriber, error) {
	if senderID == "" {
		senderID = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial broadcast channel: %w", err)
	}
	return &Subscriber{
		conn:     conn,
		id:       senderID,
		logger:   logger,
		handlers: make(map[string]map[string]Handler),
		acks:     make(map[string]func()),
	}, nil
}

// ID returns the sender identity used on emitted events.
func (s *Subscriber) ID() string { return s.id }

// Join enters a class room. Missed events from before the join are not
// replayed; a full query is the only recovery path.
func (s *Subscriber) Join(room string) error {
	return s.write(models.WireMessage{Type: models.WireTypeJoin, Room: room})
}

// Leave exits a class room.
func (s *Subscriber) Leave(room string) error {
	s.mu.Lock()
	delete(s.handlers, room)
	s.mu.Unlock()
	return s.write(models.WireMessage{Type: models.WireTypeLeave, Room: room})
}

// On registers the handler for an event in a room, replacing any previous
// registration for the same pair.
func (s *Subscriber) On(room, event string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.handlers[room]
	if events == nil {
		events = make(map[string]Handler)
		s.handlers[room] = events
	}
	events[event] = handler
}

// Off removes the handler for an event in a room.
func (s *Subscriber) Off(room, event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers[room], event)
}

// Emit publishes an event into a room, fire and forget. A non-nil ack is
// invoked once when at least one peer received the event.
func (s *Subscriber) Emit(room, event string, payload interface{}, ack func()) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := models.WireMessage{
		Type:    models.WireTypeEvent,
		Room:    room,
		Event:   event,
		Sender:  s.id,
		Payload: encoded,
	}
	if ack != nil {
		msg.AckID = uuid.NewString()
		s.mu.Lock()
		s.acks[msg.AckID] = ack
		s.mu.Unlock()
	}
	return s.write(msg)
}

// Listen dispatches incoming events to registered handlers until the
// connection closes or ctx is cancelled.
func (s *Subscriber) Listen(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close() //nolint:errcheck
	}()

	for {
		var msg models.WireMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("broadcast channel closed: %w", err)
		}

		switch msg.Type {
		case models.WireTypeAck:
			s.mu.Lock()
			ack := s.acks[msg.AckID]
			delete(s.acks, msg.AckID)
			s.mu.Unlock()
			if ack != nil {
				ack()
			}
		case models.WireTypeEvent:
			s.mu.Lock()
			handler := s.handlers[msg.Room][msg.Event]
			s.mu.Unlock()
			if handler != nil {
				handler(msg.Event, msg.Payload)
			}
		}
	}
}

// Close tears the connection down.
func (s *Subscriber) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return s.conn.Close()
}

func (s *Subscriber) write(msg models.WireMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return fmt.Errorf("broadcast channel closed")
	}
	return s.conn.WriteJSON(msg)
}
