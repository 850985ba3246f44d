package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client is one authenticated socket.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	gw     *Gateway
	send   chan []byte
	done   chan struct{}
	once   sync.Once

	// rooms is guarded by gw.mu.
	rooms map[string]struct{}

	lastTouch time.Time
}

func newClient(gw *Gateway, conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		gw:     gw,
		send:   make(chan []byte, gw.opts.SendBuffer),
		done:   make(chan struct{}),
		rooms:  map[string]struct{}{},
	}
}

// enqueue never blocks. A full buffer means the peer is not keeping up and the
// socket is dropped.
func (c *Client) enqueue(payload []byte) bool {
	if payload == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		c.gw.logger.Warn("slow consumer disconnected", slog.String("user_id", c.userID), slog.String("client_id", c.id))
		c.close()
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump(ctx context.Context) {
	defer c.close()
	opts := c.gw.opts
	c.conn.SetReadLimit(opts.MaxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		c.heartbeat(ctx)
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.gw.logger.Debug("socket read failed", slog.String("user_id", c.userID), slog.Any("error", err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		c.heartbeat(ctx)

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Type == "" {
			c.enqueue(errorFrame("", errBadFrame))
			continue
		}
		c.gw.handleFrame(ctx, c, frame)
	}
}

// heartbeat refreshes presence at most once per TouchInterval.
func (c *Client) heartbeat(ctx context.Context) {
	now := time.Now()
	if now.Sub(c.lastTouch) < c.gw.opts.TouchInterval {
		return
	}
	c.lastTouch = now
	if err := c.gw.presence.Touch(ctx, c.userID); err != nil {
		c.gw.logger.Debug("presence touch failed", slog.String("user_id", c.userID), slog.Any("error", err))
	}
}

func (c *Client) writePump() {
	opts := c.gw.opts
	ticker := time.NewTicker(opts.PingPeriod())
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(opts.WriteWait))
			return
		}
	}
}
