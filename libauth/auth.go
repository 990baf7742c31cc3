// Package libauth issues and verifies the JWT bearer tokens guarding the
// admin surface.
package libauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNotAuthorized           = errors.New("libauth: not authorized")
	ErrTokenMissing            = errors.New("libauth: token missing")
	ErrTokenExpired            = errors.New("libauth: token expired")
	ErrIdentityMissing         = errors.New("libauth: identity missing in claims")
	ErrIssuedAtMissing         = errors.New("libauth: issued-at missing in claims")
	ErrIssuedAtInFuture        = errors.New("libauth: issued-at lies in the future")
	ErrInvalidTokenClaims      = errors.New("libauth: invalid token claims")
	ErrUnexpectedSigningMethod = errors.New("libauth: unexpected signing method")
	ErrTokenParsingFailed      = errors.New("libauth: token parsing failed")
	ErrTokenSigningFailed      = errors.New("libauth: token signing failed")
)

type contextKey string

const contextKeyIdentity contextKey = "identity"

// Claims is the JWT claim set carried by admin tokens.
type Claims struct {
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens with an HMAC secret.
type Manager struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewManager creates a token manager. ttl bounds token validity.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("libauth: empty signing secret")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{secret: []byte(secret), tokenTTL: ttl}, nil
}

// CreateToken issues a signed token for the given identity.
func (m *Manager) CreateToken(identity string) (string, error) {
	if identity == "" {
		return "", ErrIdentityMissing
	}
	now := time.Now().UTC()
	claims := Claims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenSigningFailed, err)
	}
	return signed, nil
}

// VerifyToken validates a signed token and returns the identity it carries.
func (m *Manager) VerifyToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrTokenMissing
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnexpectedSigningMethod
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		if errors.Is(err, ErrUnexpectedSigningMethod) {
			return "", ErrUnexpectedSigningMethod
		}
		return "", fmt.Errorf("%w: %w", ErrTokenParsingFailed, err)
	}
	if !token.Valid {
		return "", ErrInvalidTokenClaims
	}
	if claims.Identity == "" {
		return "", ErrIdentityMissing
	}
	if claims.IssuedAt == nil {
		return "", ErrIssuedAtMissing
	}
	if claims.IssuedAt.After(time.Now().UTC().Add(time.Minute)) {
		return "", ErrIssuedAtInFuture
	}
	return claims.Identity, nil
}

// FromRequest extracts and verifies the bearer token of an HTTP request,
// returning a context annotated with the verified identity.
func (m *Manager) FromRequest(r *http.Request) (context.Context, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return r.Context(), ErrTokenMissing
	}
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return r.Context(), ErrTokenMissing
	}
	identity, err := m.VerifyToken(tokenString)
	if err != nil {
		return r.Context(), err
	}
	return context.WithValue(r.Context(), contextKeyIdentity, identity), nil
}

// IdentityFromContext returns the verified identity, if any.
func IdentityFromContext(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(contextKeyIdentity).(string)
	return identity, ok && identity != ""
}
