package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/abhi-yo/quilly-sub000/internal/model"
)

const (
	// Sessions live 30 days, sliding: a token older than refreshAfter is
	// re-signed from the current user row on the next request.
	sessionLifetime = 30 * 24 * time.Hour
	refreshAfter    = 24 * time.Hour
)

// SessionClaims is the exact claim set carried in a session token. The token
// is an identity cache only: role, name, and flags are re-read from the store
// before any authorization decision.
type SessionClaims struct {
	UserID             uuid.UUID  `json:"sub"`
	Role               model.Role `json:"role"`
	Name               string     `json:"name,omitempty"`
	WalletAddress      string     `json:"wallet,omitempty"`
	NeedsRoleSelection bool       `json:"nrs,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies session tokens (HS256).
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a new token service
func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Sign issues a session token built from the current user row.
func (s *TokenService) Sign(u model.User) (string, error) {
	now := s.now()
	claims := claimsFromUser(u)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionLifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token
func (s *TokenService) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// RefreshIfStale re-signs the session from the current user row when the
// token was issued more than refreshAfter ago. Returns the new token and
// true, or "" and false when the token is still fresh.
func (s *TokenService) RefreshIfStale(claims *SessionClaims, u model.User) (string, bool, error) {
	if claims.IssuedAt == nil {
		return "", false, fmt.Errorf("token has no issued-at claim")
	}
	if s.now().Sub(claims.IssuedAt.Time) < refreshAfter {
		return "", false, nil
	}
	token, err := s.Sign(u)
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func claimsFromUser(u model.User) *SessionClaims {
	c := &SessionClaims{
		UserID:             u.ID,
		Role:               u.Role,
		Name:               u.Name,
		NeedsRoleSelection: u.NeedsRoleSelection,
	}
	if u.WalletAddress != nil {
		c.WalletAddress = *u.WalletAddress
	}
	return c
}
