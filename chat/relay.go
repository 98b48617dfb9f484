package chat

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/consulthub/consulthub-api/models"
)

// createdAt layout, millisecond ISO 8601 in UTC
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// dispatch runs the handler for ev. A panicking handler is turned into an
// error for the sender so one bad event cannot stop the loop.
func (g *Gateway) dispatch(c *Conn, ev InboundEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("chat handler panicked",
				"event", ev.EventName(),
				"conn", c.id,
				"userId", c.userID,
				"panic", r)
			err = &HandlerError{Message: operationFailure(ev), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	switch e := ev.(type) {
	case JoinRoom:
		return g.joinRoom(c, e)
	case LeaveRoom:
		return g.leaveRoom(c, e)
	case SendMessage:
		return g.sendMessage(c, e)
	case Typing:
		return g.relay(c, e, TypingStatus{UserID: c.userID, IsTyping: e.IsTyping})
	case StartVoiceCall:
		return g.relay(c, e, VoiceCallStarted{Offer: e.Offer})
	case StartVideoCall:
		return g.relay(c, e, VideoCallStarted{Offer: e.Offer})
	case AcceptCall:
		return g.relay(c, e, CallAccepted{Answer: e.Answer})
	case RejectCall:
		return g.relay(c, e, CallRejected{})
	case ICECandidate:
		return g.relay(c, e, RemoteICECandidate{Candidate: e.Candidate})
	case EndCall:
		return g.relay(c, e, CallEnded{})
	default:
		return validation(fmt.Errorf("%w: %T", ErrUnknownEvent, ev))
	}
}

func (g *Gateway) joinRoom(c *Conn, e JoinRoom) error {
	if e.RoomID == "" {
		return validation(ErrRoomRequired)
	}

	previous, joined := g.rooms.join(e.RoomID, c.userID, c)
	if previous != "" {
		g.broadcast(previous, c.userID, UserLeft{UserID: c.userID})
		zap.S().Infow("User left room",
			"userId", c.userID,
			"roomId", previous)
	}
	if !joined {
		return nil
	}

	zap.S().Infow("User joined room",
		"userId", c.userID,
		"roomId", e.RoomID)
	g.broadcast(e.RoomID, c.userID, UserJoined{UserID: c.userID})
	return nil
}

func (g *Gateway) leaveRoom(c *Conn, e LeaveRoom) error {
	if e.RoomID == "" {
		return validation(ErrRoomRequired)
	}
	if !g.rooms.leave(e.RoomID, c.userID) {
		return nil
	}

	zap.S().Infow("User left room",
		"userId", c.userID,
		"roomId", e.RoomID)
	g.broadcast(e.RoomID, c.userID, UserLeft{UserID: c.userID})
	return nil
}

func (g *Gateway) sendMessage(c *Conn, e SendMessage) error {
	if strings.TrimSpace(e.Content) == "" {
		return validation(ErrEmptyMessage)
	}
	if !g.rooms.isMember(e.RoomID, c.userID) {
		return validation(ErrNotMember)
	}

	sender := c.profile
	if sender.ID == "" {
		sender.ID = c.userID
	}
	sender.Avatar = sender.AvatarOrDefault()

	msg := models.ChatMessage{
		ID:        g.ids.next(),
		Content:   e.Content,
		SenderID:  c.userID,
		CreatedAt: g.ids.now().UTC().Format(isoMillis),
		Sender:    sender,
		RoomID:    e.RoomID,
	}
	g.broadcast(e.RoomID, c.userID, NewMessage{Message: msg})

	zap.S().Debugw("Message sent to room",
		"roomId", e.RoomID,
		"messageId", msg.ID)
	return nil
}

// relay forwards out to the other members of the room ev is scoped to
func (g *Gateway) relay(c *Conn, ev InboundEvent, out Event) error {
	if !g.rooms.isMember(ev.Room(), c.userID) {
		return validation(ErrNotMember)
	}
	g.broadcast(ev.Room(), c.userID, out)

	zap.S().Debugw("chat event relayed",
		"event", ev.EventName(),
		"roomId", ev.Room(),
		"userId", c.userID)
	return nil
}
