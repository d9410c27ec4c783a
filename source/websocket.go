package source

import (
	"context"
	"fmt"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 16,
	WriteBufferSize: 1 << 12,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocket receives frames pushed by a client as binary websocket
// messages, each holding one JPEG or PNG encoded image
type WebSocket struct {
	conn    *websocket.Conn
	log     zerolog.Logger
	decoded atomic.Uint64
	skipped atomic.Uint64
}

// Upgrade accepts a websocket connection on an HTTP request
func Upgrade(w http.ResponseWriter, r *http.Request, log zerolog.Logger) (*WebSocket, error) {

	conn, err := upgrader.Upgrade(w, r, nil)

	if err != nil {
		return nil, fmt.Errorf("error upgrading to websocket: %w", err)
	}

	return NewWebSocket(conn, log), nil
}

// NewWebSocket wraps an established connection
func NewWebSocket(conn *websocket.Conn, log zerolog.Logger) *WebSocket {
	return &WebSocket{
		conn: conn,
		log: log.With().Str("component", "websocket").
			Str("remote", conn.RemoteAddr().String()).Logger(),
	}
}

// NextFrame blocks until the next decodable image arrives.  Text messages
// and undecodable images are skipped.  io.EOF is returned when the client
// closes the connection normally.
func (s *WebSocket) NextFrame(ctx context.Context) (gocv.Mat, error) {

	// unblock the read when the context ends
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		mt, data, err := s.conn.ReadMessage()

		if err != nil {
			if ctx.Err() != nil {
				return gocv.Mat{}, ctx.Err()
			}

			if websocket.IsCloseError(err, websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {
				return gocv.Mat{}, io.EOF
			}

			return gocv.Mat{}, fmt.Errorf("error reading websocket: %w", err)
		}

		if mt != websocket.BinaryMessage {
			continue
		}

		mat, err := gocv.IMDecode(data, gocv.IMReadColor)

		if err != nil || mat.Empty() {
			mat.Close()
			s.skipped.Add(1)
			s.log.Warn().Int("bytes", len(data)).Msg("Skipping undecodable frame")
			continue
		}

		s.decoded.Add(1)
		return mat, nil
	}
}

// Counts returns the number of decoded and skipped messages
func (s *WebSocket) Counts() (decoded, skipped uint64) {
	return s.decoded.Load(), s.skipped.Load()
}

// Close sends a close message and closes the connection
func (s *WebSocket) Close() error {

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))

	return s.conn.Close()
}
