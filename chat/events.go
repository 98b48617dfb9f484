package chat

import (
	"encoding/json"
	"fmt"

	"github.com/consulthub/consulthub-api/models"
)

// Wire names. They are part of the protocol shared with browser clients and
// must not change.
const (
	EventJoinRoom       = "joinRoom"
	EventLeaveRoom      = "leaveRoom"
	EventSendMessage    = "sendMessage"
	EventTyping         = "typing"
	EventStartVoiceCall = "startVoiceCall"
	EventStartVideoCall = "startVideoCall"
	EventAcceptCall     = "acceptCall"
	EventRejectCall     = "rejectCall"
	EventICECandidate   = "iceCandidate"
	EventEndCall        = "endCall"

	EventAuthenticated    = "authenticated"
	EventUserJoined       = "userJoined"
	EventUserLeft         = "userLeft"
	EventNewMessage       = "newMessage"
	EventVoiceCallStarted = "voiceCallStarted"
	EventVideoCallStarted = "videoCallStarted"
	EventCallAccepted     = "callAccepted"
	EventCallRejected     = "callRejected"
	EventCallEnded        = "callEnded"
	EventError            = "error"
)

// RoomID derives the chat room of a consultation
func RoomID(consultationID string) string {
	return "consultation_" + consultationID
}

// Envelope is a single websocket frame
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is any value that can travel inside an Envelope. The set of
// implementations is closed to this package.
type Event interface {
	EventName() string
	payload() interface{}
}

// InboundEvent is sent by a client to the gateway. Every inbound event is
// scoped to a room.
type InboundEvent interface {
	Event
	Room() string
}

// JoinRoom moves the sender into RoomID, leaving any room it was in
type JoinRoom struct{ RoomID string }

// LeaveRoom takes the sender out of RoomID
type LeaveRoom struct{ RoomID string }

// SendMessage posts Content to the other members of RoomID
type SendMessage struct {
	RoomID  string
	Content string
}

// Typing reports whether the sender is typing in RoomID
type Typing struct {
	RoomID   string
	IsTyping bool
}

// StartVoiceCall offers an audio call to RoomID
type StartVoiceCall struct {
	RoomID string
	Offer  json.RawMessage
}

// StartVideoCall offers a video call to RoomID
type StartVideoCall struct {
	RoomID string
	Offer  json.RawMessage
}

// AcceptCall answers the call offered in RoomID
type AcceptCall struct {
	RoomID string
	Answer json.RawMessage
}

// RejectCall declines the call offered in RoomID
type RejectCall struct{ RoomID string }

// ICECandidate carries one local ICE candidate to RoomID
type ICECandidate struct {
	RoomID    string
	Candidate json.RawMessage
}

// EndCall hangs up the call in RoomID
type EndCall struct{ RoomID string }

// Authenticated tells a connection who it is once its token was accepted
type Authenticated struct {
	UserID  string         `json:"userId"`
	Profile models.Profile `json:"profile"`
}

// UserJoined announces a new room member
type UserJoined struct {
	UserID string `json:"userId"`
}

// UserLeft announces a member leaving or disconnecting
type UserLeft struct {
	UserID string `json:"userId"`
}

// NewMessage delivers a chat message. Its data is the message itself.
type NewMessage struct{ Message models.ChatMessage }

// TypingStatus relays a member's typing indicator
type TypingStatus struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// VoiceCallStarted relays an audio call offer
type VoiceCallStarted struct {
	Offer json.RawMessage `json:"offer"`
}

// VideoCallStarted relays a video call offer
type VideoCallStarted struct {
	Offer json.RawMessage `json:"offer"`
}

// CallAccepted relays the answer to our offer
type CallAccepted struct {
	Answer json.RawMessage `json:"answer"`
}

// CallRejected means the other side declined
type CallRejected struct{}

// RemoteICECandidate relays an ICE candidate from another member
type RemoteICECandidate struct {
	Candidate json.RawMessage `json:"candidate"`
}

// CallEnded means the other side hung up
type CallEnded struct{}

// ErrorEvent is sent to a single connection. Its data is the bare message.
type ErrorEvent struct{ Message string }

// inboundData is the union of every inbound payload shape
type inboundData struct {
	RoomID    string          `json:"roomId"`
	Content   string          `json:"content,omitempty"`
	IsTyping  bool            `json:"isTyping"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type roomOnly struct {
	RoomID string `json:"roomId"`
}

type messageData struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

type typingData struct {
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

type offerData struct {
	RoomID string          `json:"roomId"`
	Offer  json.RawMessage `json:"offer"`
}

type answerData struct {
	RoomID string          `json:"roomId"`
	Answer json.RawMessage `json:"answer"`
}

type candidateData struct {
	RoomID    string          `json:"roomId"`
	Candidate json.RawMessage `json:"candidate"`
}

func (JoinRoom) EventName() string       { return EventJoinRoom }
func (LeaveRoom) EventName() string      { return EventLeaveRoom }
func (SendMessage) EventName() string    { return EventSendMessage }
func (Typing) EventName() string         { return EventTyping }
func (StartVoiceCall) EventName() string { return EventStartVoiceCall }
func (StartVideoCall) EventName() string { return EventStartVideoCall }
func (AcceptCall) EventName() string     { return EventAcceptCall }
func (RejectCall) EventName() string     { return EventRejectCall }
func (ICECandidate) EventName() string   { return EventICECandidate }
func (EndCall) EventName() string        { return EventEndCall }

func (e JoinRoom) Room() string       { return e.RoomID }
func (e LeaveRoom) Room() string      { return e.RoomID }
func (e SendMessage) Room() string    { return e.RoomID }
func (e Typing) Room() string         { return e.RoomID }
func (e StartVoiceCall) Room() string { return e.RoomID }
func (e StartVideoCall) Room() string { return e.RoomID }
func (e AcceptCall) Room() string     { return e.RoomID }
func (e RejectCall) Room() string     { return e.RoomID }
func (e ICECandidate) Room() string   { return e.RoomID }
func (e EndCall) Room() string        { return e.RoomID }

// joinRoom and leaveRoom carry the bare room id as their data
func (e JoinRoom) payload() interface{}       { return e.RoomID }
func (e LeaveRoom) payload() interface{}      { return e.RoomID }
func (e SendMessage) payload() interface{}    { return messageData{e.RoomID, e.Content} }
func (e Typing) payload() interface{}         { return typingData{e.RoomID, e.IsTyping} }
func (e StartVoiceCall) payload() interface{} { return offerData{e.RoomID, e.Offer} }
func (e StartVideoCall) payload() interface{} { return offerData{e.RoomID, e.Offer} }
func (e AcceptCall) payload() interface{}     { return answerData{e.RoomID, e.Answer} }
func (e RejectCall) payload() interface{}     { return roomOnly{e.RoomID} }
func (e ICECandidate) payload() interface{}   { return candidateData{e.RoomID, e.Candidate} }
func (e EndCall) payload() interface{}        { return roomOnly{e.RoomID} }

func (Authenticated) EventName() string      { return EventAuthenticated }
func (UserJoined) EventName() string         { return EventUserJoined }
func (UserLeft) EventName() string           { return EventUserLeft }
func (NewMessage) EventName() string         { return EventNewMessage }
func (TypingStatus) EventName() string       { return EventTyping }
func (VoiceCallStarted) EventName() string   { return EventVoiceCallStarted }
func (VideoCallStarted) EventName() string   { return EventVideoCallStarted }
func (CallAccepted) EventName() string       { return EventCallAccepted }
func (CallRejected) EventName() string       { return EventCallRejected }
func (RemoteICECandidate) EventName() string { return EventICECandidate }
func (CallEnded) EventName() string          { return EventCallEnded }
func (ErrorEvent) EventName() string         { return EventError }

func (e Authenticated) payload() interface{}      { return e }
func (e UserJoined) payload() interface{}         { return e }
func (e UserLeft) payload() interface{}           { return e }
func (e NewMessage) payload() interface{}         { return e.Message }
func (e TypingStatus) payload() interface{}       { return e }
func (e VoiceCallStarted) payload() interface{}   { return e }
func (e VideoCallStarted) payload() interface{}   { return e }
func (e CallAccepted) payload() interface{}       { return e }
func (CallRejected) payload() interface{}         { return nil }
func (e RemoteICECandidate) payload() interface{} { return e }
func (CallEnded) payload() interface{}            { return nil }
func (e ErrorEvent) payload() interface{}         { return e.Message }

// Encode wraps an event in its envelope
func Encode(e Event) ([]byte, error) {
	env := Envelope{Event: e.EventName()}
	if p := e.payload(); p != nil {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", env.Event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode turns a client frame into its typed inbound event
func Decode(frame []byte) (InboundEvent, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, ErrInvalidPayload
	}

	switch env.Event {
	case EventJoinRoom, EventLeaveRoom:
		roomID, err := decodeRoomID(env.Data)
		if err != nil {
			return nil, err
		}
		if env.Event == EventJoinRoom {
			return JoinRoom{RoomID: roomID}, nil
		}
		return LeaveRoom{RoomID: roomID}, nil
	case EventSendMessage, EventTyping, EventStartVoiceCall, EventStartVideoCall,
		EventAcceptCall, EventRejectCall, EventICECandidate, EventEndCall:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	var d inboundData
	if len(env.Data) == 0 {
		return nil, ErrRoomRequired
	}
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return nil, ErrInvalidPayload
	}
	if d.RoomID == "" {
		return nil, ErrRoomRequired
	}

	switch env.Event {
	case EventSendMessage:
		return SendMessage{RoomID: d.RoomID, Content: d.Content}, nil
	case EventTyping:
		return Typing{RoomID: d.RoomID, IsTyping: d.IsTyping}, nil
	case EventStartVoiceCall:
		return StartVoiceCall{RoomID: d.RoomID, Offer: d.Offer}, nil
	case EventStartVideoCall:
		return StartVideoCall{RoomID: d.RoomID, Offer: d.Offer}, nil
	case EventAcceptCall:
		return AcceptCall{RoomID: d.RoomID, Answer: d.Answer}, nil
	case EventRejectCall:
		return RejectCall{RoomID: d.RoomID}, nil
	case EventICECandidate:
		return ICECandidate{RoomID: d.RoomID, Candidate: d.Candidate}, nil
	default:
		return EndCall{RoomID: d.RoomID}, nil
	}
}

// joinRoom/leaveRoom accept the bare id or {"roomId": "..."}
func decodeRoomID(data json.RawMessage) (string, error) {
	if len(data) == 0 {
		return "", ErrRoomRequired
	}
	var roomID string
	if err := json.Unmarshal(data, &roomID); err != nil {
		var obj roomOnly
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", ErrInvalidPayload
		}
		roomID = obj.RoomID
	}
	if roomID == "" {
		return "", ErrRoomRequired
	}
	return roomID, nil
}

// DecodeOutbound turns a gateway frame into its typed event. It is the
// client side mirror of Decode.
func DecodeOutbound(frame []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, ErrInvalidPayload
	}

	var (
		ev  Event
		err error
	)
	switch env.Event {
	case EventAuthenticated:
		var e Authenticated
		err = unmarshalData(env.Data, &e)
		ev = e
	case EventUserJoined:
		var e UserJoined
		err = unmarshalData(env.Data, &e)
		ev = e
	case EventUserLeft:
		var e UserLeft
		err = unmarshalData(env.Data, &e)
		ev = e
	case EventNewMessage:
		var e NewMessage
		err = unmarshalData(env.Data, &e.Message)
		ev = e
	case EventTyping:
		var e TypingStatus
		err = unmarshalData(env.Data, &e)
		ev = e
	case EventVoiceCallStarted:
		var e VoiceCallStarted
		err = unmarshalData(env.Data, &e)
		ev = e
	case EventVideoCallStarted:
		var e VideoCallStarted
		err = unmarshalData(env.Data, &e)
		ev = e
	case EventCallAccepted:
		var e CallAccepted
		err = unmarshalData(env.Data, &e)
		ev = e
	case EventCallRejected:
		ev = CallRejected{}
	case EventICECandidate:
		var e RemoteICECandidate
		err = unmarshalData(env.Data, &e)
		ev = e
	case EventCallEnded:
		ev = CallEnded{}
	case EventError:
		var e ErrorEvent
		err = unmarshalData(env.Data, &e.Message)
		ev = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func unmarshalData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ErrInvalidPayload
	}
	return nil
}
