package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consulthub/consulthub-api/auth"
	"github.com/consulthub/consulthub-api/chat"
	"github.com/consulthub/consulthub-api/models"
)

const testSecret = "client-secret"

type profiles map[string]models.Profile

func (p profiles) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	profile, ok := p[userID]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

func startServer(t *testing.T) string {
	t.Helper()
	authn := auth.NewAuthenticator(auth.NewTokenVerifier(testSecret), profiles{
		"u1": {ID: "u1", Name: "Alice"},
		"u2": {ID: "u2", Name: "Bob"},
	})
	g := chat.NewGateway(authn, nil, chat.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	go g.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(g.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func dialUser(t *testing.T, url, userID string, h *Handler) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, url, token(t, userID), h)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestDialRejected(t *testing.T) {
	url := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Dial(ctx, url, "garbage", nil)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid token", authErr.Message)

	_, err = Dial(ctx, url, token(t, "stranger"), nil)
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Authentication failed", authErr.Message)
}

func TestClientRoundTrip(t *testing.T) {
	url := startServer(t)

	joined := make(chan string, 1)
	left := make(chan string, 1)
	typing := make(chan bool, 1)
	aErrors := make(chan string, 1)
	a := dialUser(t, url, "u1", &Handler{
		OnUserJoined: func(userID string) { joined <- userID },
		OnUserLeft:   func(userID string) { left <- userID },
		OnTyping:     func(_ string, isTyping bool) { typing <- isTyping },
		OnError:      func(message string) { aErrors <- message },
	})
	assert.Equal(t, "u1", a.UserID())

	messages := make(chan models.ChatMessage, 1)
	ended := make(chan struct{}, 1)
	b := dialUser(t, url, "u2", &Handler{
		OnMessage:   func(msg models.ChatMessage) { messages <- msg },
		OnCallEnded: func() { ended <- struct{}{} },
	})

	room := chat.RoomID("7")
	require.NoError(t, a.JoinRoom(room))
	// the error reply proves a joined before b does
	require.NoError(t, a.SendMessage(room, "   "))
	assert.Equal(t, "Message cannot be empty", waitFor(t, aErrors))

	require.NoError(t, b.JoinRoom(room))
	assert.Equal(t, "u2", waitFor(t, joined))

	require.NoError(t, a.SendMessage(room, "hello"))
	msg := waitFor(t, messages)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "u1", msg.SenderID)
	assert.Equal(t, "Alice", msg.Sender.Name)
	assert.Equal(t, models.DefaultAvatar, msg.Sender.Avatar)

	debouncer := NewTypingDebouncer(b, room, time.Minute)
	debouncer.Keystroke()
	assert.True(t, waitFor(t, typing))
	debouncer.Stop()
	assert.False(t, waitFor(t, typing))

	require.NoError(t, a.EndCall(room))
	waitFor(t, ended)

	require.NoError(t, b.LeaveRoom(room))
	assert.Equal(t, "u2", waitFor(t, left))

	b.Close()
	<-b.Done()
	assert.ErrorIs(t, b.SendMessage(room, "late"), ErrClosed)
}

func waitFor[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		var zero T
		return zero
	}
}

func TestHandlerBindRoutesCallSignals(t *testing.T) {
	call := NewCall(&loopback{}, "r", nil)
	t.Cleanup(call.Close)

	var offers int
	h := &Handler{OnVoiceCall: func(json.RawMessage) { offers++ }}
	h.Bind(call)

	h.dispatch(chat.VoiceCallStarted{Offer: []byte(`{"type":"offer","sdp":"v=0"}`)})
	assert.Equal(t, 1, offers)
	assert.Equal(t, CallReceiving, call.State())

	h.dispatch(chat.CallEnded{})
	assert.Equal(t, CallIdle, call.State())
}

func TestHandlerBindWhileReceiving(t *testing.T) {
	url := startServer(t)

	typing := make(chan struct{}, 1)
	ended := make(chan struct{}, 1)
	h := &Handler{
		OnTyping: func(string, bool) {
			select {
			case typing <- struct{}{}:
			default:
			}
		},
		OnCallEnded: func() { ended <- struct{}{} },
	}
	a := dialUser(t, url, "u1", h)
	b := dialUser(t, url, "u2", nil)

	room := chat.RoomID("9")
	require.NoError(t, a.JoinRoom(room))
	require.NoError(t, b.JoinRoom(room))

	stop := make(chan struct{})
	flooding := make(chan struct{})
	go func() {
		defer close(flooding)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if b.SendTyping(room, true) != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	waitFor(t, typing)

	call := NewCall(a, room, nil)
	t.Cleanup(call.Close)
	h.Bind(call)
	close(stop)
	<-flooding

	require.NoError(t, b.EndCall(room))
	waitFor(t, ended)
	assert.Equal(t, CallIdle, call.State())
}

func TestCloseFlushesQueuedFrames(t *testing.T) {
	url := startServer(t)

	aErrors := make(chan string, 1)
	messages := make(chan models.ChatMessage, 1)
	a := dialUser(t, url, "u1", &Handler{
		OnError:   func(message string) { aErrors <- message },
		OnMessage: func(msg models.ChatMessage) { messages <- msg },
	})
	b := dialUser(t, url, "u2", nil)

	room := chat.RoomID("11")
	require.NoError(t, a.JoinRoom(room))
	require.NoError(t, a.SendMessage(room, ""))
	assert.Equal(t, "Message cannot be empty", waitFor(t, aErrors))

	require.NoError(t, b.JoinRoom(room))
	require.NoError(t, b.SendMessage(room, "bye"))
	b.Close()
	assert.Equal(t, "bye", waitFor(t, messages).Content)
}
