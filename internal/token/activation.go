package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ActivationTTL is the validity window of an activation ticket.
const ActivationTTL = 5 * time.Minute

// ActivationClaims binds an identity id to a 4-digit confirmation code.
type ActivationClaims struct {
	UserID string `json:"id"`
	Code   string `json:"code"`
	jwt.RegisteredClaims
}

// Activation is the issued ticket plus the raw code intended for
// out-of-band delivery.
type Activation struct {
	Ticket string
	Code   string
}

// IssueActivation creates an activation ticket for userID. The ticket is
// stateless: it stays redeemable until its embedded expiry even after a
// successful activation, because no server-side record of outstanding
// tickets exists. The five-minute window keeps that exposure short.
func (m *Manager) IssueActivation(userID string) (Activation, error) {
	code, err := activationCode()
	if err != nil {
		return Activation{}, err
	}

	now := time.Now()
	claims := ActivationClaims{
		UserID: userID,
		Code:   code,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audienceActivation},
			ExpiresAt: jwt.NewNumericDate(now.Add(ActivationTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	ticket, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.AccessSecret)
	if err != nil {
		return Activation{}, fmt.Errorf("token: sign activation: %w", err)
	}

	return Activation{Ticket: ticket, Code: code}, nil
}

// ParseActivation verifies an activation ticket's signature, expiry, and
// audience and returns the embedded identity id and code.
func (m *Manager) ParseActivation(ticket string) (*ActivationClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(audienceActivation),
	)

	parsed, err := parser.ParseWithClaims(ticket, &ActivationClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.AccessSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*ActivationClaims)
	if !ok || !parsed.Valid || claims.UserID == "" || claims.Code == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// activationCode draws a uniform 4-digit numeric code in [1000, 9999].
func activationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("token: activation code: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}
