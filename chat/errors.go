package chat

import (
	"errors"
	"fmt"
)

// Validation failures map to the message of an error event. ErrGatewayStopped
// is returned by queries once Run has returned.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRoomRequired     = errors.New("room id is required")
	ErrEmptyMessage     = errors.New("message cannot be empty")
	ErrNotMember        = errors.New("not a member of this room")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrGatewayStopped   = errors.New("chat gateway stopped")
)

// HandlerError is reported to the connection that sent the event and never to
// the rest of the room. The connection stays open.
type HandlerError struct {
	Message string
	Err     error
}

func (e *HandlerError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

func validation(err error) *HandlerError {
	var msg string
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		msg = "Not authenticated"
	case errors.Is(err, ErrRoomRequired):
		msg = "Room id is required"
	case errors.Is(err, ErrEmptyMessage):
		msg = "Message cannot be empty"
	case errors.Is(err, ErrNotMember):
		msg = "Not a member of this room"
	case errors.Is(err, ErrUnknownEvent):
		msg = "Unknown event"
	default:
		msg = "Invalid payload"
	}
	return &HandlerError{Message: msg, Err: err}
}

// operationFailure is the message for an unexpected failure while handling ev
func operationFailure(ev InboundEvent) string {
	switch ev.(type) {
	case JoinRoom:
		return "Failed to join room"
	case LeaveRoom:
		return "Failed to leave room"
	case SendMessage:
		return "Failed to send message"
	default:
		return "Failed to relay " + ev.EventName()
	}
}
