package sink

import (
	"context"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/galileosky/ingest-gateway/records"
)

// broadcastMessage is the JSON payload fanned out to WebSocket subscribers
// of one IMEI.
type broadcastMessage struct {
	IMEI     string `json:"imei"`
	Sequence uint16 `json:"sequence,omitempty"`
	TagCount int    `json:"tag_count"`
}

// WebSocketSink fans Broadcast calls out to every currently-subscribed
// connection for a record's IMEI. Persist and EvaluateAlerts are no-ops -
// this sink exists purely to exercise the broadcast leg of the Sink
// Facade contract (§4.7); a deployment combines it with a persistence
// sink via a multi-sink RecordSink of its own.
type WebSocketSink struct {
	mu   sync.RWMutex
	subs map[string]map[*websocket.Conn]struct{}
}

// NewWebSocketSink returns an empty WebSocketSink.
func NewWebSocketSink() *WebSocketSink {
	return &WebSocketSink{subs: make(map[string]map[*websocket.Conn]struct{})}
}

// Subscribe registers conn to receive broadcasts for imei. The caller owns
// the connection's lifecycle; Unsubscribe must be called when it closes.
func (s *WebSocketSink) Subscribe(imei string, conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[imei] == nil {
		s.subs[imei] = make(map[*websocket.Conn]struct{})
	}
	s.subs[imei][conn] = struct{}{}
}

// Unsubscribe removes conn from imei's subscriber set.
func (s *WebSocketSink) Unsubscribe(imei string, conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[imei], conn)
}

func (s *WebSocketSink) Persist(context.Context, *records.Record) error {
	return nil
}

// Broadcast writes rec's summary to every subscriber of imei. A write
// failure on one subscriber is logged by the caller via the Facade's
// best-effort path but does not stop delivery to the others.
func (s *WebSocketSink) Broadcast(ctx context.Context, imei string, rec *records.Record) error {
	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.subs[imei]))
	for c := range s.subs[imei] {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	if len(conns) == 0 {
		return nil
	}

	seq, _ := rec.SequenceNumber()
	msg := broadcastMessage{IMEI: imei, Sequence: seq, TagCount: len(rec.Entries)}

	var firstErr error
	for _, c := range conns {
		if err := wsjson.Write(ctx, c, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *WebSocketSink) EvaluateAlerts(context.Context, string, *records.Record) error {
	return nil
}
