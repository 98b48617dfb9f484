package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consulthub/consulthub-api/models"
)

func TestRoomID(t *testing.T) {
	assert.Equal(t, "consultation_42", RoomID("42"))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  InboundEvent
		err   error
	}{
		{name: "join with bare id", frame: `{"event":"joinRoom","data":"consultation_1"}`, want: JoinRoom{RoomID: "consultation_1"}},
		{name: "join with object", frame: `{"event":"joinRoom","data":{"roomId":"consultation_1"}}`, want: JoinRoom{RoomID: "consultation_1"}},
		{name: "leave", frame: `{"event":"leaveRoom","data":"r"}`, want: LeaveRoom{RoomID: "r"}},
		{name: "message", frame: `{"event":"sendMessage","data":{"roomId":"r","content":" hi "}}`, want: SendMessage{RoomID: "r", Content: " hi "}},
		{name: "typing", frame: `{"event":"typing","data":{"roomId":"r","isTyping":true}}`, want: Typing{RoomID: "r", IsTyping: true}},
		{name: "voice", frame: `{"event":"startVoiceCall","data":{"roomId":"r","offer":{"type":"offer","sdp":"v=0"}}}`,
			want: StartVoiceCall{RoomID: "r", Offer: json.RawMessage(`{"type":"offer","sdp":"v=0"}`)}},
		{name: "video", frame: `{"event":"startVideoCall","data":{"roomId":"r","offer":{"sdp":"x"}}}`,
			want: StartVideoCall{RoomID: "r", Offer: json.RawMessage(`{"sdp":"x"}`)}},
		{name: "accept", frame: `{"event":"acceptCall","data":{"roomId":"r","answer":{"sdp":"y"}}}`,
			want: AcceptCall{RoomID: "r", Answer: json.RawMessage(`{"sdp":"y"}`)}},
		{name: "reject", frame: `{"event":"rejectCall","data":{"roomId":"r"}}`, want: RejectCall{RoomID: "r"}},
		{name: "candidate", frame: `{"event":"iceCandidate","data":{"roomId":"r","candidate":{"candidate":"c"}}}`,
			want: ICECandidate{RoomID: "r", Candidate: json.RawMessage(`{"candidate":"c"}`)}},
		{name: "end", frame: `{"event":"endCall","data":{"roomId":"r"}}`, want: EndCall{RoomID: "r"}},
		{name: "not json", frame: `nope`, err: ErrInvalidPayload},
		{name: "unknown", frame: `{"event":"dance","data":{"roomId":"r"}}`, err: ErrUnknownEvent},
		{name: "join without room", frame: `{"event":"joinRoom"}`, err: ErrRoomRequired},
		{name: "join with number", frame: `{"event":"joinRoom","data":7}`, err: ErrInvalidPayload},
		{name: "message without room", frame: `{"event":"sendMessage","data":{"content":"hi"}}`, err: ErrRoomRequired},
		{name: "message with bad data", frame: `{"event":"sendMessage","data":"hi"}`, err: ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.frame))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeWireShapes(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{name: "join", ev: JoinRoom{RoomID: "r"}, want: `{"event":"joinRoom","data":"r"}`},
		{name: "typing out", ev: TypingStatus{UserID: "u1", IsTyping: false}, want: `{"event":"typing","data":{"userId":"u1","isTyping":false}}`},
		{name: "user joined", ev: UserJoined{UserID: "u1"}, want: `{"event":"userJoined","data":{"userId":"u1"}}`},
		{name: "offer", ev: VoiceCallStarted{Offer: json.RawMessage(`{"sdp":"x"}`)}, want: `{"event":"voiceCallStarted","data":{"offer":{"sdp":"x"}}}`},
		{name: "rejected", ev: CallRejected{}, want: `{"event":"callRejected"}`},
		{name: "ended", ev: CallEnded{}, want: `{"event":"callEnded"}`},
		{name: "error", ev: ErrorEvent{Message: "Missing token"}, want: `{"event":"error","data":"Missing token"}`},
		{name: "reject in", ev: RejectCall{RoomID: "r"}, want: `{"event":"rejectCall","data":{"roomId":"r"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.ev)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(frame))
		})
	}
}

func TestDecodeOutbound(t *testing.T) {
	msg := models.ChatMessage{ID: "1", Content: "hi", SenderID: "u1", RoomID: "r",
		Sender: models.Profile{ID: "u1", Name: "Ada", Avatar: models.DefaultAvatar}}
	events := []Event{
		Authenticated{UserID: "u1", Profile: models.Profile{ID: "u1", Name: "Ada"}},
		UserJoined{UserID: "u1"},
		UserLeft{UserID: "u1"},
		NewMessage{Message: msg},
		TypingStatus{UserID: "u1", IsTyping: true},
		VideoCallStarted{Offer: json.RawMessage(`{"sdp":"x"}`)},
		CallAccepted{Answer: json.RawMessage(`{"sdp":"y"}`)},
		CallRejected{},
		RemoteICECandidate{Candidate: json.RawMessage(`{"candidate":"c"}`)},
		CallEnded{},
		ErrorEvent{Message: "Unknown event"},
	}
	for _, ev := range events {
		t.Run(ev.EventName(), func(t *testing.T) {
			frame, err := Encode(ev)
			require.NoError(t, err)
			got, err := DecodeOutbound(frame)
			require.NoError(t, err)
			assert.Equal(t, ev, got)
		})
	}

	_, err := DecodeOutbound([]byte(`{"event":"joinRoom","data":"r"}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)
}
