package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matzehuels/flowsketch/pkg/diagram"
	fsio "github.com/matzehuels/flowsketch/pkg/io"
	"github.com/matzehuels/flowsketch/pkg/session"
)

const writeWait = 10 * time.Second

// StreamMessage is one WebSocket frame of the snapshot stream.
type StreamMessage struct {
	Type    string          `json:"type"` // "snapshot"
	Version uint64          `json:"version"`
	Change  string          `json:"change,omitempty"`
	Graph   json.RawMessage `json:"graph"`
}

// stream pushes the session's snapshot on connect and after every store
// change. Changes arriving while a frame is being written are coalesced
// into the next frame, so slow clients see fewer, newer snapshots.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "session", sess.ID, "err", err)
		return
	}
	defer conn.Close()

	s.metrics.StreamClients.Inc()
	defer s.metrics.StreamClients.Dec()
	s.logger.Debug("stream client connected", "session", sess.ID, "remote", r.RemoteAddr)

	dirty := make(chan diagram.Change, 1)
	unsubscribe := sess.Store.Subscribe(func(c diagram.Change) {
		for {
			select {
			case dirty <- c:
				return
			default:
			}
			// Replace the queued change with the newer one.
			select {
			case <-dirty:
			default:
			}
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go s.readPump(conn, closed)

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	if err := s.writeSnapshot(conn, sess, ""); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			s.logger.Debug("stream client disconnected", "session", sess.ID)
			return
		case <-r.Context().Done():
			return
		case c := <-dirty:
			if err := s.writeSnapshot(conn, sess, c.Kind.String()); err != nil {
				s.logger.Debug("stream write", "session", sess.ID, "err", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeSnapshot(conn *websocket.Conn, sess *session.Session, change string) error {
	g, version := sess.Store.VersionedSnapshot()
	var buf bytes.Buffer
	if err := fsio.WriteJSON(g, &buf); err != nil {
		return err
	}
	data, err := json.Marshal(StreamMessage{
		Type:    "snapshot",
		Version: version,
		Change:  change,
		Graph:   json.RawMessage(bytes.TrimSpace(buf.Bytes())),
	})
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readPump discards client frames and closes done when the connection
// fails or the client closes it. Pongs extend the read deadline.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	wait := 2 * s.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
