package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type sendResult uint8

const (
	sendOK sendResult = iota
	sendFull
	sendClosed
)

// Connection is one admitted judge websocket. Outbound messages go through
// send and are written by writePump; inbound messages are read and handled
// one at a time by readPump.
type Connection struct {
	ID            string
	JudgeID       int64
	CompetitionID int64
	ConnectedAt   time.Time

	ws   *websocket.Conn
	cfg  Config
	send chan []byte

	// closed when the connection is finished; send is never closed
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(ws *websocket.Conn, judgeID, competitionID int64, cfg Config, now time.Time) *Connection {
	return &Connection{
		ID:            uuid.NewString(),
		JudgeID:       judgeID,
		CompetitionID: competitionID,
		ConnectedAt:   now,
		ws:            ws,
		cfg:           cfg,
		send:          make(chan []byte, cfg.SendBuffer),
		done:          make(chan struct{}),
	}
}

// trySend enqueues without waiting.
func (c *Connection) trySend(data []byte) sendResult {
	select {
	case <-c.done:
		return sendClosed
	default:
	}
	select {
	case c.send <- data:
		return sendOK
	case <-c.done:
		return sendClosed
	default:
		return sendFull
	}
}

// sendWithin waits up to timeout for buffer space.
func (c *Connection) sendWithin(data []byte, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	case <-timer.C:
		return false
	}
}

// reply enqueues a response to the judge's own command. It waits for buffer
// space so responses are never dropped while the connection is open.
func (c *Connection) reply(data []byte) bool {
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	}
}

// closeWith sends a close frame (when code is non-zero) and stops both pumps.
func (c *Connection) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		if code != 0 && c.ws != nil {
			msg := websocket.FormatCloseMessage(code, reason)
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
		}
		close(c.done)
	})
}

func (c *Connection) close() {
	c.closeWith(0, "")
}

// Done is closed once the connection has finished.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				c.close()
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				c.close()
				return
			}
		}
	}
}

// readPump handles inbound messages in arrival order until the peer goes
// away or the connection is closed. Each response is enqueued before the
// next message is read.
func (c *Connection) readPump(ctx context.Context, handle func(ctx context.Context, c *Connection, message []byte) []byte) {
	defer c.close()

	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		if response := handle(ctx, c, message); response != nil {
			if !c.reply(response) {
				return
			}
		}
	}
}
