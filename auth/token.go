package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// claim names that may carry the user id, first non-empty wins
var identityClaims = []string{"sub", "id", "userId"}

// ExtractToken pulls the raw token out of the handshake auth field or the
// Authorization header. Both are expected as "Bearer <token>" and the second
// space separated segment is used. The auth field wins when it has one.
func ExtractToken(authField, header string) (string, error) {
	if token := secondSegment(authField); token != "" {
		return token, nil
	}
	if token := secondSegment(header); token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}

func secondSegment(s string) string {
	parts := strings.Split(s, " ")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// TokenVerifier checks HMAC signed JWTs
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier returns a verifier for the shared secret
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify validates the signature and the time based claims
func (v *TokenVerifier) Verify(token string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: claims type mismatch", ErrInvalidToken)
	}
	return claims, nil
}

// UserIDFromClaims returns the first non-empty identity claim
func UserIDFromClaims(claims jwt.MapClaims) (string, error) {
	for _, name := range identityClaims {
		switch v := claims[name].(type) {
		case string:
			if v != "" {
				return v, nil
			}
		case float64:
			// numeric ids come back from encoding/json as float64
			if v != 0 {
				return strconv.FormatFloat(v, 'f', -1, 64), nil
			}
		}
	}
	return "", ErrMissingIdentity
}

// IssueToken signs an HS256 token for userID that expires after ttl
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("secret is empty")
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
