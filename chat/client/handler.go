package client

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/consulthub/consulthub-api/chat"
	"github.com/consulthub/consulthub-api/models"
)

// Handler routes gateway events to callbacks. Unset callbacks are skipped.
// Set the fields before passing the handler to Dial; Bind may be called at
// any time.
type Handler struct {
	OnMessage      func(msg models.ChatMessage)
	OnTyping       func(userID string, isTyping bool)
	OnUserJoined   func(userID string)
	OnUserLeft     func(userID string)
	OnVoiceCall    func(offer json.RawMessage)
	OnVideoCall    func(offer json.RawMessage)
	OnCallAccepted func(answer json.RawMessage)
	OnCallRejected func()
	OnICECandidate func(candidate json.RawMessage)
	OnCallEnded    func()
	OnError        func(message string)

	mu sync.RWMutex
}

// dispatch picks the callback under the lock and runs it outside, so a
// callback may itself call Bind
func (h *Handler) dispatch(ev chat.Event) {
	h.mu.RLock()
	run := h.route(ev)
	h.mu.RUnlock()
	if run != nil {
		run()
	}
}

// route must be called with the lock held
func (h *Handler) route(ev chat.Event) func() {
	switch e := ev.(type) {
	case chat.NewMessage:
		if f := h.OnMessage; f != nil {
			return func() { f(e.Message) }
		}
	case chat.TypingStatus:
		if f := h.OnTyping; f != nil {
			return func() { f(e.UserID, e.IsTyping) }
		}
	case chat.UserJoined:
		if f := h.OnUserJoined; f != nil {
			return func() { f(e.UserID) }
		}
	case chat.UserLeft:
		if f := h.OnUserLeft; f != nil {
			return func() { f(e.UserID) }
		}
	case chat.VoiceCallStarted:
		if f := h.OnVoiceCall; f != nil {
			return func() { f(e.Offer) }
		}
	case chat.VideoCallStarted:
		if f := h.OnVideoCall; f != nil {
			return func() { f(e.Offer) }
		}
	case chat.CallAccepted:
		if f := h.OnCallAccepted; f != nil {
			return func() { f(e.Answer) }
		}
	case chat.CallRejected:
		return h.OnCallRejected
	case chat.RemoteICECandidate:
		if f := h.OnICECandidate; f != nil {
			return func() { f(e.Candidate) }
		}
	case chat.CallEnded:
		return h.OnCallEnded
	case chat.ErrorEvent:
		if f := h.OnError; f != nil {
			return func() { f(e.Message) }
		}
	}
	return nil
}

// Bind routes the call events of h to call. Callbacks already set on h run
// first. It is safe to call while the client is receiving.
func (h *Handler) Bind(call *Call) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.OnVoiceCall = chain1("offer", h.OnVoiceCall, func(offer json.RawMessage) error {
		return call.HandleOffer(offer, false)
	})
	h.OnVideoCall = chain1("offer", h.OnVideoCall, func(offer json.RawMessage) error {
		return call.HandleOffer(offer, true)
	})
	h.OnCallAccepted = chain1("answer", h.OnCallAccepted, call.HandleAnswer)
	h.OnICECandidate = chain1("candidate", h.OnICECandidate, call.HandleCandidate)
	h.OnCallRejected = chain0(h.OnCallRejected, call.HandleRejected)
	h.OnCallEnded = chain0(h.OnCallEnded, call.HandleEnded)
}

func chain1(what string, first func(json.RawMessage), then func(json.RawMessage) error) func(json.RawMessage) {
	return func(v json.RawMessage) {
		if first != nil {
			first(v)
		}
		if err := then(v); err != nil {
			zap.S().Warnw("failed to apply remote call signal",
				"signal", what,
				"error", err)
		}
	}
}

func chain0(first func(), then func()) func() {
	return func() {
		if first != nil {
			first()
		}
		then()
	}
}
