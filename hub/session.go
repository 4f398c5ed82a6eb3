package hub

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/theoremus-urban-solutions/geotrack/tracking"
)

const writeTimeout = 10 * time.Second

// wsSink adapts one WebSocket connection to the Sink interface. All writes
// happen on the subscription's pump goroutine, so no write lock is needed.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Send(ev tracking.ChangeEvent) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(ev)
}

func (s *wsSink) Close() error {
	return s.conn.Close()
}
