// Package monitor broadcasts live call events to websocket subscribers,
// giving operators a read-only view of in-progress calls.
package monitor

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxline/frontdesk/pkg/logging"
)

// Event types published by the call controller.
const (
	EventCallStarted      = "call_started"
	EventCallerTurn       = "caller_turn"
	EventReceptionistTurn = "receptionist_turn"
	EventCompletionFailed = "completion_failed"
	EventEscalated        = "escalated"
	EventVoicemail        = "voicemail"
	EventExpired          = "expired"
	EventEnded            = "ended"
)

// Event is one observable moment in a call.
type Event struct {
	CallID   string    `json:"call_id"`
	ClientID string    `json:"client_id,omitempty"`
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	Time     time.Time `json:"time"`
}

// Sink receives call events. Publish must never block call handling.
type Sink interface {
	Publish(ev Event)
}

// Feed implements Sink and http.Handler: events in, websocket frames
// out. A slow subscriber drops frames rather than delaying the feed.
type Feed struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu   sync.Mutex
	subs map[string]*subscriber
}

type subscriber struct {
	conn   *websocket.Conn
	sendCh chan []byte
	closed bool
}

func NewFeed() *Feed {
	return &Feed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logging.NewComponentLogger(slog.Default(), "monitor_feed"),
		subs:   make(map[string]*subscriber),
	}
}

// Publish fans the event out to all subscribers without blocking.
func (f *Feed) Publish(ev Event) {
	if f == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		select {
		case sub.sendCh <- msg:
		default:
		}
	}
}

// SubscriberCount reports the number of connected subscribers.
func (f *Feed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	id := uuid.NewString()
	sub := &subscriber{conn: conn, sendCh: make(chan []byte, 64)}
	f.mu.Lock()
	f.subs[id] = sub
	f.mu.Unlock()
	f.logger.Debug("monitor_subscribed", "subscriber_id", id)

	go sub.writeLoop()
	for {
		// Subscribers are read-only; we only watch for close.
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	f.remove(id)
}

// Close disconnects all subscribers.
func (f *Feed) Close() {
	f.mu.Lock()
	ids := make([]string, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	f.mu.Unlock()
	for _, id := range ids {
		f.remove(id)
	}
}

func (f *Feed) remove(id string) {
	f.mu.Lock()
	sub := f.subs[id]
	delete(f.subs, id)
	var closeCh bool
	if sub != nil && !sub.closed {
		sub.closed = true
		closeCh = true
	}
	f.mu.Unlock()
	if sub == nil {
		return
	}
	if closeCh {
		close(sub.sendCh)
	}
	_ = sub.conn.Close()
}

func (s *subscriber) writeLoop() {
	for msg := range s.sendCh {
		_ = s.conn.WriteMessage(websocket.TextMessage, msg)
	}
}
