// Package auth implements the demo login flows: social, passkey and Xverse
// wallet logins issue short-lived HS256 session tokens.
package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yourorg/liquid-btc-yield/internal/types"
)

var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token is expired")
	ErrTokenInvalid   = errors.New("token is invalid")
)

// User is an authenticated account with its derived Starknet address
type User struct {
	ID         string           `json:"id"`
	Address    string           `json:"address"`
	AuthMethod types.AuthMethod `json:"authMethod"`
}

// DeriveAddress maps a user id to a placeholder Starknet address
func DeriveAddress(uid string) string {
	h := hex.EncodeToString([]byte(uid))
	if len(h) > 40 {
		h = h[:40]
	}
	return "0x" + h
}

// NewUser builds a user with its derived address
func NewUser(uid string, method types.AuthMethod) User {
	return User{ID: uid, Address: DeriveAddress(uid), AuthMethod: method}
}

// Claims is the session token payload
type Claims struct {
	Address    string           `json:"address"`
	AuthMethod types.AuthMethod `json:"auth_method"`
	jwt.RegisteredClaims
}

// Sessions issues and parses session tokens
type Sessions struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions creates a session issuer. The secret must not be empty.
func NewSessions(secret, issuer string, ttl time.Duration) (*Sessions, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source
func (s *Sessions) WithClock(now func() time.Time) *Sessions {
	s.now = now
	return s
}

// Issue signs a session token for the user
func (s *Sessions) Issue(u User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		Address:    u.Address,
		AuthMethod: u.AuthMethod,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session: %w", err)
	}
	return token, expires, nil
}

// Parse validates a session token and returns the user it was issued for
func (s *Sessions) Parse(tokenString string) (User, *Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return User{}, nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return User{}, nil, ErrTokenExpired
		default:
			return User{}, nil, ErrTokenInvalid
		}
	}
	if !token.Valid {
		return User{}, nil, ErrTokenInvalid
	}

	return User{ID: claims.Subject, Address: claims.Address, AuthMethod: claims.AuthMethod}, claims, nil
}
