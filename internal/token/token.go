// Package token mints and validates the JWT that backs a credential-store
// session. The token is an opaque handle from the portal's point of view;
// holding a valid one does not imply full authentication (the OTP step is
// tracked separately on the session state).
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"civita/pkg/faults"
)

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	UID       string `json:"uid"`
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Service handles session token creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

// NewService constructs a token service with an HMAC signing key.
func NewService(signingKey, issuer string, ttl time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
	}
}

// Mint issues a signed session token for the given identity.
func (s *Service) Mint(sessionID uuid.UUID, uid, email string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UID:       uid,
		Email:     email,
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signingKey)
	if err != nil {
		return "", faults.Wrap(err, faults.CodeInternal, "failed to sign session token")
	}
	return signed, nil
}

// Parse validates a session token and returns its claims.
func (s *Service) Parse(tokenString string) (*SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, faults.New(faults.CodeBadRequest, "unexpected signing method")
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeRequiresReauth, "invalid session token")
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, faults.New(faults.CodeRequiresReauth, "invalid session token")
	}
	return claims, nil
}
