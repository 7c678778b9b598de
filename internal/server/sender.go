package server

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// wsSender adapts a websocket connection to the stream.Sender contract.
// wsjson writes are not safe for concurrent use on one connection, and a
// session writes from both its read-loop goroutine and its dispatch
// goroutines, so every write is serialised through a mutex.
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSSender(conn *websocket.Conn) *wsSender {
	return &wsSender{conn: conn}
}

// Send writes one JSON event to the client.
func (s *wsSender) Send(ctx context.Context, event any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wsjson.Write(ctx, s.conn, event)
}
