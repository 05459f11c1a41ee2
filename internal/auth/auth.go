// Package auth issues and verifies the bearer tokens of the HTTP API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Modes.
const (
	ModeOff  = "off"
	ModeHMAC = "hmac"
)

// Roles. Operators may start runs; viewers only read them.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
)

var (
	ErrNoToken   = errors.New("auth: missing bearer token")
	ErrForbidden = errors.New("auth: role not allowed")
)

// Claims carried by fleetroute tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the verified caller.
type Principal struct {
	Subject string
	Role    string
}

// Can reports whether p holds at least role.
func (p Principal) Can(role string) bool {
	switch role {
	case RoleViewer:
		return p.Role == RoleViewer || p.Role == RoleOperator
	case RoleOperator:
		return p.Role == RoleOperator
	}
	return false
}

// Verifier checks HS256 tokens. In ModeOff every caller is an operator.
type Verifier struct {
	mode   string
	secret []byte
}

func NewVerifier(mode, secret string) (*Verifier, error) {
	switch mode {
	case "", ModeOff:
		return &Verifier{mode: ModeOff}, nil
	case ModeHMAC:
		if len(secret) < 16 {
			return nil, fmt.Errorf("auth: hmac secret must be at least 16 bytes")
		}
		return &Verifier{mode: ModeHMAC, secret: []byte(secret)}, nil
	}
	return nil, fmt.Errorf("auth: unknown mode %q", mode)
}

func (v *Verifier) Mode() string { return v.mode }

// Verify validates token and returns its principal.
func (v *Verifier) Verify(token string) (Principal, error) {
	if v.mode == ModeOff {
		return Principal{Subject: "anonymous", Role: RoleOperator}, nil
	}
	if token == "" {
		return Principal{}, ErrNoToken
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("auth: %w", err)
	}
	if !parsed.Valid {
		return Principal{}, errors.New("auth: invalid token")
	}
	if claims.Role != RoleViewer && claims.Role != RoleOperator {
		return Principal{}, fmt.Errorf("auth: unknown role %q", claims.Role)
	}
	return Principal{Subject: claims.Subject, Role: claims.Role}, nil
}

// Issue signs a token for subject with role, valid for ttl.
func (v *Verifier) Issue(subject, role string, ttl time.Duration) (string, error) {
	if v.mode != ModeHMAC {
		return "", errors.New("auth: tokens need hmac mode")
	}
	now := time.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
