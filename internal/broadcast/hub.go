// Package broadcast implements the class-scoped event channel: a websocket
// hub with named rooms on the server side, a subscriber for clients, and an
// optional Redis bridge that fans events out across gateway instances.
// Delivery is best effort; a missed event is recovered by the next full query,
// never replayed.
package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-sync-api/internal/models"
	"github.com/noah-isme/classroom-sync-api/pkg/config"
)

// Hub routes wire messages between room members. Events are delivered to all
// participants of the room except the sender.
type Hub struct {
	cfg        config.BroadcastConfig
	logger     *zap.Logger
	instanceID string
	bridge     *RedisBridge
	upgrader   websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[*session]struct{}

	delivered func(event string, count int)
}

type session struct {
	id    string
	conn  *websocket.Conn
	send  chan models.WireMessage
	rooms map[string]struct{}

	mu     sync.Mutex
	closed bool
}

// trySend queues a message unless the session is closed or its buffer full.
func (s *session) trySend(msg models.WireMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

func (s *session) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// NewHub constructs a hub. The bridge may be nil for single-instance
// deployments.
func NewHub(cfg config.BroadcastConfig, bridge *RedisBridge, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	h := &Hub{
		cfg:        cfg,
		logger:     logger,
		instanceID: uuid.NewString(),
		bridge:     bridge,
		rooms:      make(map[string]map[*session]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if bridge != nil {
		bridge.instanceID = h.instanceID
	}
	return h
}

// OnDelivered installs a delivery observer, used for metrics.
func (h *Hub) OnDelivered(fn func(event string, count int)) {
	h.delivered = fn
}

// Run consumes bridged events from other instances until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	if h.bridge == nil {
		return
	}
	go h.bridge.Consume(ctx, func(msg models.WireMessage) {
		h.deliver(msg, nil)
	})
}

// ServeConn upgrades the HTTP request and runs the connection until it closes.
func (h *Hub) ServeConn(w http.ResponseWriter, r *http.Request, senderID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	if senderID == "" {
		senderID = uuid.NewString()
	}
	sess := &session{
		id:    senderID,
		conn:  conn,
		send:  make(chan models.WireMessage, h.cfg.SendBufferSize),
		rooms: make(map[string]struct{}),
	}
	go h.writePump(sess)
	h.readPump(sess)
	return nil
}

// Publish sends a server-originated event to every member of the room and to
// the other instances through the bridge. Fire and forget.
func (h *Hub) Publish(room, event string, payload interface{}) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := models.WireMessage{
		Type:    models.WireTypeEvent,
		Room:    room,
		Event:   event,
		Origin:  h.instanceID,
		Payload: encoded,
	}
	h.deliver(msg, nil)
	if h.bridge != nil {
		if err := h.bridge.Publish(context.Background(), msg); err != nil {
			h.logger.Warn("bridge publish failed", zap.String("room", room), zap.Error(err))
		}
	}
	return nil
}

// RoomSize reports the local member count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) readPump(sess *session) {
	defer h.dropSession(sess)

	if h.cfg.MaxMessageBytes > 0 {
		sess.conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}
	deadline := h.cfg.PingInterval * 2
	_ = sess.conn.SetReadDeadline(time.Now().Add(deadline))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		var msg models.WireMessage
		if err := sess.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.String("session", sess.id), zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case models.WireTypeJoin:
			h.join(sess, msg.Room)
		case models.WireTypeLeave:
			h.leave(sess, msg.Room)
		case models.WireTypeEvent:
			h.routeEvent(sess, msg)
		default:
			h.logger.Debug("unknown wire message type", zap.String("type", msg.Type))
		}
	}
}

func (h *Hub) writePump(sess *session) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = sess.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sess.send:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = sess.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := sess.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) join(sess *session, room string) {
	if room == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[room]
	if members == nil {
		members = make(map[*session]struct{})
		h.rooms[room] = members
	}
	members[sess] = struct{}{}
	sess.rooms[room] = struct{}{}
}

func (h *Hub) leave(sess *session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(sess, room)
}

func (h *Hub) removeFromRoom(sess *session, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, sess)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(sess.rooms, room)
}

func (h *Hub) dropSession(sess *session) {
	h.mu.Lock()
	for room := range sess.rooms {
		h.removeFromRoom(sess, room)
	}
	h.mu.Unlock()
	sess.shut()
}

// routeEvent relays a member's event to the rest of the room. When the sender
// asked for an ack, delivery to at least one local peer confirms it.
func (h *Hub) routeEvent(sess *session, msg models.WireMessage) {
	h.mu.RLock()
	_, member := h.rooms[msg.Room][sess]
	h.mu.RUnlock()
	if !member {
		h.logger.Debug("event for room without membership",
			zap.String("session", sess.id), zap.String("room", msg.Room))
		return
	}

	msg.Sender = sess.id
	msg.Origin = h.instanceID
	count := h.deliver(msg, sess)

	if h.bridge != nil {
		if err := h.bridge.Publish(context.Background(), msg); err != nil {
			h.logger.Warn("bridge publish failed", zap.String("room", msg.Room), zap.Error(err))
		}
	}

	if msg.AckID != "" && count > 0 {
		sess.trySend(models.WireMessage{
			Type:  models.WireTypeAck,
			Room:  msg.Room,
			Event: msg.Event,
			AckID: msg.AckID,
		})
	}
}

func (h *Hub) deliver(msg models.WireMessage, except *session) int {
	h.mu.RLock()
	members := make([]*session, 0, len(h.rooms[msg.Room]))
	for member := range h.rooms[msg.Room] {
		if member != except && member.id != msg.Sender {
			members = append(members, member)
		}
	}
	h.mu.RUnlock()

	count := 0
	for _, member := range members {
		if member.trySend(msg) {
			count++
		} else {
			// Slow or closed consumer: drop rather than block the room.
			h.logger.Warn("message dropped",
				zap.String("session", member.id), zap.String("event", msg.Event))
		}
	}
	if h.delivered != nil {
		h.delivered(msg.Event, count)
	}
	return count
}
