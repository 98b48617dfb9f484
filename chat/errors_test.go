package chat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: ErrNotAuthenticated, want: "Not authenticated"},
		{err: ErrRoomRequired, want: "Room id is required"},
		{err: ErrEmptyMessage, want: "Message cannot be empty"},
		{err: fmt.Errorf("room r: %w", ErrNotMember), want: "Not a member of this room"},
		{err: ErrUnknownEvent, want: "Unknown event"},
		{err: errors.New("unexpected end of JSON input"), want: "Invalid payload"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var err error = validation(tt.err)

			var handlerErr *HandlerError
			require.ErrorAs(t, err, &handlerErr)
			assert.Equal(t, tt.want, handlerErr.Message)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestErrorEventWireName(t *testing.T) {
	frame, err := Encode(ErrorEvent{Message: "Unknown event"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event": "error", "data": "Unknown event"}`, string(frame))
	assert.Equal(t, "error", EventError)
}

func TestOperationFailure(t *testing.T) {
	assert.Equal(t, "Failed to join room", operationFailure(JoinRoom{}))
	assert.Equal(t, "Failed to leave room", operationFailure(LeaveRoom{}))
	assert.Equal(t, "Failed to send message", operationFailure(SendMessage{}))
	assert.Equal(t, "Failed to relay iceCandidate", operationFailure(ICECandidate{}))
}
