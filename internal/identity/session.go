package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pkordes/visit-tracker/internal/domain"
)

// DefaultSessionTTL is how long an issued session token stays valid.
const DefaultSessionTTL = 12 * time.Hour

const sessionIssuer = "visit-tracker"

// ErrInvalidSession is returned for a token that is malformed, expired, or
// signed with another key.
var ErrInvalidSession = errors.New("invalid session")

// sessionClaims is the payload of the session cookie.
type sessionClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// SessionCodec issues and verifies HS256 session tokens.
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionCodec returns a codec signing with secret. A non-positive ttl
// uses DefaultSessionTTL.
func NewSessionCodec(secret string, ttl time.Duration) *SessionCodec {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for id. The user id travels as the subject.
func (c *SessionCodec) Issue(id domain.Identity) (string, error) {
	if id.IsZero() {
		return "", fmt.Errorf("identity.SessionCodec.Issue: %w: user id is required", domain.ErrValidation)
	}
	now := c.now()
	claims := sessionClaims{
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("identity.SessionCodec.Issue: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns the identity it carries.
func (c *SessionCodec) Parse(token string) (domain.Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{},
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return domain.Identity{}, ErrInvalidSession
	}
	return domain.Identity{UserID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}
