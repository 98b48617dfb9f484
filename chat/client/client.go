// Package client is the Go side of the chat protocol: a websocket client that
// emits the inbound events the gateway understands and routes everything the
// gateway sends back to typed callbacks.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/consulthub/consulthub-api/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ErrClosed is returned by emitters once the connection is gone
var ErrClosed = errors.New("chat client closed")

// AuthError is the reason the gateway refused the connection
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return "chat authentication failed: " + e.Message }

// Client is a connection to the chat gateway
type Client struct {
	conn     *websocket.Conn
	handler  *Handler
	identity chat.Authenticated
	logger   *zap.SugaredLogger

	outgoing chan []byte
	ready    chan error
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once
}

// Dial connects to serverURL and waits until the gateway has authenticated
// the token. h may be nil and its callbacks run on the client's read
// goroutine.
func Dial(ctx context.Context, serverURL, token string, h *Handler) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	q.Set("token", "Bearer "+token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if h == nil {
		h = &Handler{}
	}
	c := &Client{
		conn:     conn,
		handler:  h,
		logger:   zap.S(),
		outgoing: make(chan []byte, 32),
		ready:    make(chan error, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	select {
	case err := <-c.ready:
		if err != nil {
			c.Close()
			return nil, err
		}
		return c, nil
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	}
}

// UserID is the identity the gateway resolved the token to
func (c *Client) UserID() string { return c.identity.UserID }

// Done is closed once the connection is gone
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) readPump() {
	defer c.Close()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	authenticated := false
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if !authenticated {
				c.ready <- fmt.Errorf("connection closed before authentication: %w", err)
			}
			return
		}

		ev, err := chat.DecodeOutbound(frame)
		if err != nil {
			c.logger.Debugw("ignoring chat frame", "error", err)
			continue
		}

		if !authenticated {
			switch e := ev.(type) {
			case chat.Authenticated:
				c.identity = e
				authenticated = true
				c.ready <- nil
			case chat.ErrorEvent:
				c.ready <- &AuthError{Message: e.Message}
				return
			}
			continue
		}
		c.handler.dispatch(ev)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.stopped)
	}()

	for {
		select {
		case frame := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.flush()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes the frames queued before Close
func (c *Client) flush() {
	for {
		select {
		case frame := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Close hangs up once every frame queued so far has been written. It is safe
// to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
	<-c.stopped
}

func (c *Client) emit(ev chat.InboundEvent) error {
	frame, err := chat.Encode(ev)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outgoing <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// JoinRoom moves this user into roomID, leaving any other room
func (c *Client) JoinRoom(roomID string) error {
	return c.emit(chat.JoinRoom{RoomID: roomID})
}

// LeaveRoom takes this user out of roomID
func (c *Client) LeaveRoom(roomID string) error {
	return c.emit(chat.LeaveRoom{RoomID: roomID})
}

// SendMessage posts content to the other members of roomID
func (c *Client) SendMessage(roomID, content string) error {
	return c.emit(chat.SendMessage{RoomID: roomID, Content: content})
}

// SendTyping tells the room whether this user is typing
func (c *Client) SendTyping(roomID string, isTyping bool) error {
	return c.emit(chat.Typing{RoomID: roomID, IsTyping: isTyping})
}

// StartVoiceCall sends an audio call offer to roomID
func (c *Client) StartVoiceCall(roomID string, offer []byte) error {
	return c.emit(chat.StartVoiceCall{RoomID: roomID, Offer: offer})
}

// StartVideoCall sends a video call offer to roomID
func (c *Client) StartVideoCall(roomID string, offer []byte) error {
	return c.emit(chat.StartVideoCall{RoomID: roomID, Offer: offer})
}

// AcceptCall answers the call offered in roomID
func (c *Client) AcceptCall(roomID string, answer []byte) error {
	return c.emit(chat.AcceptCall{RoomID: roomID, Answer: answer})
}

// RejectCall declines the call offered in roomID
func (c *Client) RejectCall(roomID string) error {
	return c.emit(chat.RejectCall{RoomID: roomID})
}

// SendICECandidate relays one local ICE candidate to roomID
func (c *Client) SendICECandidate(roomID string, candidate []byte) error {
	return c.emit(chat.ICECandidate{RoomID: roomID, Candidate: candidate})
}

// EndCall hangs up the call in roomID
func (c *Client) EndCall(roomID string) error {
	return c.emit(chat.EndCall{RoomID: roomID})
}
