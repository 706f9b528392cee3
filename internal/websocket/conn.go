package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// Deadlines for the proctor monitor stream. Proctors idle for long
// stretches while watching a quiet session, so reads allow several ping
// intervals before the connection is considered dead; writes to a stalled
// dashboard give up quickly instead of blocking the relay loop.
const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// Send writes one typed event to the dashboard within writeWait.
func Send(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// SendError delivers a terminal error event before the stream closes.
func SendError(conn *websocket.Conn, errMsg string) error {
	return Send(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// Receive reads the next client message into v, bounding the wait by
// readWait so an abandoned dashboard eventually frees its subscription.
func Receive(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}
