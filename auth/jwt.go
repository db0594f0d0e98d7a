/*
jwt.go - Caller identity

PURPOSE:
  The scheduling engine never authenticates anyone; it receives an actor.
  This package is the boundary: it signs and verifies bearer tokens that
  name a user and role, and carries the resolved schedule.User through a
  request context.

SEE ALSO:
  - api/middleware.go: resolves the bearer token into the request actor
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/warp/shift-engine/schedule"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims are the custom token claims.
type Claims struct {
	UserID string        `json:"user_id"`
	Role   schedule.Role `json:"role"`
	jwtv5.RegisteredClaims
}

// Manager issues and verifies HS256 tokens.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret, issuer string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue signs a token for user.
func (m *Manager) Issue(user schedule.User) (string, error) {
	if user.ID == "" {
		return "", fmt.Errorf("%w: empty user id", ErrTokenInvalid)
	}
	now := m.now()
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse verifies a token and returns its claims.
func (m *Manager) Parse(token string) (*Claims, error) {
	parsed, err := jwtv5.ParseWithClaims(token, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	}, jwtv5.WithIssuer(m.issuer), jwtv5.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// =============================================================================
// REQUEST CONTEXT
// =============================================================================

type ctxKey struct{}

// WithUser stores the resolved actor on ctx.
func WithUser(ctx context.Context, u schedule.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// CurrentUser returns the actor stored by WithUser.
func CurrentUser(ctx context.Context) (schedule.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(schedule.User)
	return u, ok
}

// IsSuperAdmin reports whether the request actor is a super admin.
func IsSuperAdmin(ctx context.Context) bool {
	u, ok := CurrentUser(ctx)
	return ok && u.IsSuperAdmin()
}
