// Package token issues and verifies the signed, time-bounded credentials
// used by the auth core: short-lived access tokens, long-lived refresh
// tokens, and five-minute activation tickets. Tokens are stateless bearer
// credentials; validity is exactly "signature verifies and expiry not
// passed". Session revocation lives in the session cache, not here.
package token

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned when a token's signature verifies but its
	// expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for malformed tokens and bad signatures.
	ErrTokenInvalid = errors.New("invalid token")
)

// Each token class carries its own audience claim, enforced on parse, so a
// token of one class can never be accepted as another even when the signing
// secrets are shared.
const (
	audienceAccess     = "access"
	audienceRefresh    = "refresh"
	audienceActivation = "activation"
)

// Config defines the signing material and validity windows. The access and
// refresh secrets must differ so one class of token can never be replayed
// as the other.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Claims is the claim set carried by access and refresh tokens: the identity
// id plus the registered audience and expiry/issued-at fields.
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens. It is immutable after construction and
// safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager. Empty or identical
// secrets and non-positive TTLs are rejected outright.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, errors.New("token: access secret required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token: refresh secret required")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: invalid TTL configuration")
	}
	return &Manager{config: cfg}, nil
}

// AccessTTL reports the configured access-token validity window.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL reports the configured refresh-token validity window.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// IssueAccess signs {id, exp=now+access_ttl} with the access secret.
func (m *Manager) IssueAccess(userID string) (string, error) {
	return m.sign(userID, m.config.AccessSecret, m.config.AccessTTL, audienceAccess)
}

// IssueRefresh signs {id, exp=now+refresh_ttl} with the refresh secret.
func (m *Manager) IssueRefresh(userID string) (string, error) {
	return m.sign(userID, m.config.RefreshSecret, m.config.RefreshTTL, audienceRefresh)
}

// ParseAccess verifies an access token's signature, expiry, and audience.
func (m *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, m.config.AccessSecret, audienceAccess)
}

// ParseRefresh verifies a refresh token's signature, expiry, and audience.
func (m *Manager) ParseRefresh(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, m.config.RefreshSecret, audienceRefresh)
}

func (m *Manager) sign(userID string, secret []byte, ttl time.Duration, audience string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

func (m *Manager) parse(tokenStr string, secret []byte, audience string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(audience),
	)

	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
