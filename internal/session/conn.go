package session

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/tcorreia/wine-rater/internal/types"
)

var _ EventSink = (*wsSink)(nil)

// wsSink adapts a gorilla websocket connection to the EventSink interface.
// All writes happen inside the owning actor's serial operation stream, so no
// additional write locking is needed.
type wsSink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func newWSSink(conn *websocket.Conn, writeTimeout time.Duration) *wsSink {
	return &wsSink{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (s *wsSink) Send(event types.SessionEvent) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(event)
}

func (s *wsSink) Close() error {
	// Best-effort close frame so well-behaved clients see a clean shutdown.
	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"), deadline)
	return s.conn.Close()
}
