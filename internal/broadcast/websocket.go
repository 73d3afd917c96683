package broadcast

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"wapair/internal/types"
)

// WSSink pushes events as JSON messages over an upgraded WebSocket
// connection. A read pump runs only to detect the peer closing.
type WSSink struct {
	conn *websocket.Conn

	mu        sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func NewWSSink(conn *websocket.Conn) *WSSink {
	s := &WSSink{conn: conn, done: make(chan struct{})}
	go s.readPump()
	return s
}

func (s *WSSink) readPump() {
	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			s.Close()
			return
		}
	}
}

func (s *WSSink) Send(ev types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}
	return s.conn.WriteJSON(ev)
}

func (s *WSSink) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.mu.Unlock()
		s.conn.Close()
	})
	return nil
}

func (s *WSSink) Done() <-chan struct{} {
	return s.done
}
