package auth

import "errors"

var (
	// ErrMissingToken is returned when neither the auth field nor the header carries a token
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken is returned when signature or expiry verification fails
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingIdentity is returned when no user id claim is present
	ErrMissingIdentity = errors.New("token is missing a user id")
	// ErrUnknownUser is returned when the user id has no profile
	ErrUnknownUser = errors.New("unknown user")
)

// Error is an authentication failure. Message is safe to send to the client.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// wireMessage maps a failure onto the text clients see
func wireMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return "Missing token"
	case errors.Is(err, ErrInvalidToken):
		return "Invalid token"
	case errors.Is(err, ErrMissingIdentity):
		return "Token is missing a user id"
	default:
		return "Authentication failed"
	}
}

func fail(err error) *Error {
	return &Error{Message: wireMessage(err), Err: err}
}
