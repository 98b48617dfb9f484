package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/consulthub/consulthub-api/models"
)

// Time allowed to write a frame to the peer.
const writeWait = 10 * time.Second

// Conn is one websocket connection to the gateway
type Conn struct {
	id     string
	ws     *websocket.Conn
	send   chan []byte
	remote string
	cancel context.CancelFunc

	// owned by the gateway loop
	userID  string
	profile models.Profile
	closed  bool
}

func newConn(ws *websocket.Conn, buffer int) *Conn {
	c := &Conn{
		id:     uuid.New().String(),
		ws:     ws,
		send:   make(chan []byte, buffer),
		cancel: func() {},
	}
	if ws != nil {
		c.remote = ws.RemoteAddr().String()
	}
	return c
}

// ID is the transport assigned connection id
func (c *Conn) ID() string { return c.id }

// readPump decodes frames and hands them to the gateway loop. It is the only
// reader of the websocket.
func (c *Conn) readPump(g *Gateway) {
	defer func() {
		g.unregisterConn(c)
		c.ws.Close()
	}()

	pongWait := g.opts.PingInterval + g.opts.PingTimeout
	c.ws.SetReadLimit(g.opts.MaxMessageBytes)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.S().Debugw("chat connection read error",
					"conn", c.id,
					"error", err)
			}
			return
		}

		ev, err := Decode(frame)
		if !g.dispatchInbound(inbound{conn: c, event: ev, err: err}) {
			return
		}
	}
}

// writePump is the only writer of the websocket. The gateway closes send to
// make it say goodbye and hang up.
func (c *Conn) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				zap.S().Debugw("chat connection write error",
					"conn", c.id,
					"error", err)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
