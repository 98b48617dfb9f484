package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	pion "github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// CallState is where a call stands on this side. The gateway keeps no call
// state of its own.
type CallState int

const (
	CallIdle CallState = iota
	CallCalling
	CallReceiving
	CallActive
)

func (s CallState) String() string {
	switch s {
	case CallCalling:
		return "calling"
	case CallReceiving:
		return "receiving"
	case CallActive:
		return "active"
	default:
		return "idle"
	}
}

// remote candidates kept while no remote description is set
const maxPendingCandidates = 64

var (
	ErrCallInProgress = errors.New("a call is already in progress")
	ErrInvalidState   = errors.New("call is not in the expected state")
)

// Signaler carries call signaling to the other members of a room. *Client
// implements it.
type Signaler interface {
	StartVoiceCall(roomID string, offer []byte) error
	StartVideoCall(roomID string, offer []byte) error
	AcceptCall(roomID string, answer []byte) error
	RejectCall(roomID string) error
	SendICECandidate(roomID string, candidate []byte) error
	EndCall(roomID string) error
}

// Call runs one voice or video call in a room over a pion peer connection.
// Media flows peer to peer; only signaling goes through the gateway.
type Call struct {
	mu         sync.Mutex
	signaler   Signaler
	roomID     string
	iceServers []pion.ICEServer
	onState    func(CallState)

	state   CallState
	video   bool
	pc      *pion.PeerConnection
	offer   *pion.SessionDescription
	pending []pion.ICECandidateInit
}

// NewCall prepares an idle call for roomID
func NewCall(s Signaler, roomID string, iceServers []pion.ICEServer) *Call {
	return &Call{signaler: s, roomID: roomID, iceServers: iceServers}
}

// OnStateChange registers f to run after every state transition
func (c *Call) OnStateChange(f func(CallState)) {
	c.mu.Lock()
	c.onState = f
	c.mu.Unlock()
}

func (c *Call) State() CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Video reports whether the current or incoming call carries video
func (c *Call) Video() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.video
}

// transition runs fn under the lock and reports a state change afterwards
func (c *Call) transition(fn func() error) error {
	c.mu.Lock()
	before := c.state
	err := fn()
	after, notify := c.state, c.onState
	c.mu.Unlock()

	if after != before && notify != nil {
		notify(after)
	}
	return err
}

// Start places a call to the room
func (c *Call) Start(video bool) error {
	return c.transition(func() error {
		if c.state != CallIdle {
			return ErrCallInProgress
		}
		pc, err := c.newPeer(video)
		if err != nil {
			return err
		}
		offer, err := pc.CreateOffer(nil)
		if err != nil {
			pc.Close()
			return fmt.Errorf("create offer: %w", err)
		}
		if err := pc.SetLocalDescription(offer); err != nil {
			pc.Close()
			return fmt.Errorf("set local description: %w", err)
		}
		payload, err := json.Marshal(pc.LocalDescription())
		if err != nil {
			pc.Close()
			return err
		}

		c.pc, c.video, c.state = pc, video, CallCalling
		if video {
			err = c.signaler.StartVideoCall(c.roomID, payload)
		} else {
			err = c.signaler.StartVoiceCall(c.roomID, payload)
		}
		if err != nil {
			c.reset()
			return err
		}
		return nil
	})
}

// HandleOffer records an incoming call. A busy line rejects it.
func (c *Call) HandleOffer(raw json.RawMessage, video bool) error {
	desc, err := parseDescription(raw, pion.SDPTypeOffer)
	if err != nil {
		return err
	}
	return c.transition(func() error {
		if c.state != CallIdle {
			_ = c.signaler.RejectCall(c.roomID)
			return ErrCallInProgress
		}
		c.offer, c.video, c.state = desc, video, CallReceiving
		return nil
	})
}

// Accept answers the incoming call
func (c *Call) Accept() error {
	return c.transition(func() error {
		if c.state != CallReceiving {
			return ErrInvalidState
		}
		pc, err := c.newPeer(c.video)
		if err != nil {
			return err
		}
		if err := pc.SetRemoteDescription(*c.offer); err != nil {
			pc.Close()
			return fmt.Errorf("set remote description: %w", err)
		}
		answer, err := pc.CreateAnswer(nil)
		if err != nil {
			pc.Close()
			return fmt.Errorf("create answer: %w", err)
		}
		if err := pc.SetLocalDescription(answer); err != nil {
			pc.Close()
			return fmt.Errorf("set local description: %w", err)
		}
		payload, err := json.Marshal(pc.LocalDescription())
		if err != nil {
			pc.Close()
			return err
		}

		c.pc, c.offer, c.state = pc, nil, CallActive
		c.flushCandidates()
		if err := c.signaler.AcceptCall(c.roomID, payload); err != nil {
			c.reset()
			return err
		}
		return nil
	})
}

// Reject declines the incoming call
func (c *Call) Reject() error {
	return c.transition(func() error {
		if c.state != CallReceiving {
			return ErrInvalidState
		}
		c.reset()
		return c.signaler.RejectCall(c.roomID)
	})
}

// HandleAnswer completes a call this side placed
func (c *Call) HandleAnswer(raw json.RawMessage) error {
	desc, err := parseDescription(raw, pion.SDPTypeAnswer)
	if err != nil {
		return err
	}
	return c.transition(func() error {
		if c.state != CallCalling {
			return ErrInvalidState
		}
		if err := c.pc.SetRemoteDescription(*desc); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}
		c.state = CallActive
		c.flushCandidates()
		return nil
	})
}

// HandleCandidate adds a remote ICE candidate, holding it back until the
// remote description is known
func (c *Call) HandleCandidate(raw json.RawMessage) error {
	var init pion.ICECandidateInit
	if err := json.Unmarshal(raw, &init); err != nil {
		return fmt.Errorf("parse ICE candidate: %w", err)
	}
	return c.transition(func() error {
		if c.pc == nil || c.pc.RemoteDescription() == nil {
			if len(c.pending) < maxPendingCandidates {
				c.pending = append(c.pending, init)
			}
			return nil
		}
		if err := c.pc.AddICECandidate(init); err != nil {
			return fmt.Errorf("add ICE candidate: %w", err)
		}
		return nil
	})
}

// HandleRejected is the other side declining our call
func (c *Call) HandleRejected() {
	_ = c.transition(func() error {
		if c.state == CallCalling {
			c.reset()
		}
		return nil
	})
}

// HandleEnded is the other side hanging up
func (c *Call) HandleEnded() {
	_ = c.transition(func() error {
		c.reset()
		return nil
	})
}

// End hangs up and tells the room
func (c *Call) End() error {
	return c.transition(func() error {
		if c.state == CallIdle {
			return nil
		}
		c.reset()
		return c.signaler.EndCall(c.roomID)
	})
}

// Close drops the call without signaling
func (c *Call) Close() {
	_ = c.transition(func() error {
		c.reset()
		return nil
	})
}

// reset must be called with the lock held
func (c *Call) reset() {
	if c.pc != nil {
		if err := c.pc.Close(); err != nil {
			zap.S().Debugw("failed to close peer connection", "error", err)
		}
	}
	c.pc, c.offer, c.pending = nil, nil, nil
	c.video = false
	c.state = CallIdle
}

// flushCandidates must be called with the lock held
func (c *Call) flushCandidates() {
	for _, init := range c.pending {
		if err := c.pc.AddICECandidate(init); err != nil {
			zap.S().Debugw("failed to add queued ICE candidate", "error", err)
		}
	}
	c.pending = nil
}

func (c *Call) newPeer(video bool) (*pion.PeerConnection, error) {
	pc, err := pion.NewPeerConnection(pion.Configuration{ICEServers: c.iceServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	kinds := []pion.RTPCodecType{pion.RTPCodecTypeAudio}
	if video {
		kinds = append(kinds, pion.RTPCodecTypeVideo)
	}
	for _, kind := range kinds {
		if _, err := pc.AddTransceiverFromKind(kind, pion.RTPTransceiverInit{
			Direction: pion.RTPTransceiverDirectionSendrecv,
		}); err != nil {
			pc.Close()
			return nil, fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}

	roomID, signaler := c.roomID, c.signaler
	pc.OnICECandidate(func(candidate *pion.ICECandidate) {
		if candidate == nil {
			return
		}
		payload, err := json.Marshal(candidate.ToJSON())
		if err != nil {
			return
		}
		if err := signaler.SendICECandidate(roomID, payload); err != nil {
			zap.S().Debugw("failed to send ICE candidate", "error", err)
		}
	})
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		zap.S().Debugw("peer connection state changed",
			"roomId", roomID,
			"state", state.String())
	})
	return pc, nil
}

func parseDescription(raw json.RawMessage, want pion.SDPType) (*pion.SessionDescription, error) {
	var desc pion.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("parse session description: %w", err)
	}
	if desc.Type != want {
		return nil, fmt.Errorf("expected %s, got %s", want, desc.Type)
	}
	return &desc, nil
}
