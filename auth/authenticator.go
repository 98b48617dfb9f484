package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/consulthub/consulthub-api/models"
)

// TokenQueryParam is the handshake auth field of a websocket connection
const TokenQueryParam = "token"

// Identity is an authenticated user
type Identity struct {
	UserID  string
	Profile models.Profile
}

// Authenticator resolves a request to an Identity
type Authenticator struct {
	verifier *TokenVerifier
	profiles ProfileLookup
}

// NewAuthenticator composes token verification and profile lookup
func NewAuthenticator(verifier *TokenVerifier, profiles ProfileLookup) *Authenticator {
	return &Authenticator{verifier: verifier, profiles: profiles}
}

// Authenticate reads the token from the "token" query parameter or the
// Authorization header. Every failure is an *Error.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	return a.AuthenticateToken(ctx, r.URL.Query().Get(TokenQueryParam), r.Header.Get("Authorization"))
}

// AuthenticateToken is Authenticate for callers that already split out the
// auth field and header
func (a *Authenticator) AuthenticateToken(ctx context.Context, authField, header string) (*Identity, error) {
	token, err := ExtractToken(authField, header)
	if err != nil {
		return nil, fail(err)
	}
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return nil, fail(err)
	}
	userID, err := UserIDFromClaims(claims)
	if err != nil {
		return nil, fail(err)
	}

	profile, err := a.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fail(fmt.Errorf("profile lookup for %s: %w", userID, err))
	}
	if profile == nil {
		return nil, fail(fmt.Errorf("%w: %s", ErrUnknownUser, userID))
	}
	return &Identity{UserID: userID, Profile: *profile}, nil
}
