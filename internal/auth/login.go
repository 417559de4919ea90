package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/liquid-btc-yield/internal/types"
)

var (
	// ErrAuthFailed is returned when credentials do not check out
	ErrAuthFailed = errors.New("authentication failed")

	// ErrUnsupportedMethod is returned for unknown login methods
	ErrUnsupportedMethod = errors.New("unsupported login method")
)

// IDTokenVerifier checks a social login id token and returns the user id
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (string, error)
}

// UnverifiedIDTokens reads the subject of a JWT id token without checking
// its signature. Only suitable for the demo.
type UnverifiedIDTokens struct{}

// VerifyIDToken implements IDTokenVerifier
func (UnverifiedIDTokens) VerifyIDToken(_ context.Context, idToken string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: id token has no subject", ErrAuthFailed)
	}
	return sub, nil
}

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Method        types.AuthMethod `json:"method" validate:"required,oneof=social passkey xverse"`
	IDToken       string           `json:"idToken,omitempty" validate:"required_if=Method social"`
	CredentialID  string           `json:"credentialId,omitempty" validate:"required_if=Method passkey"`
	WalletAddress string           `json:"walletAddress,omitempty" validate:"required_if=Method xverse"`
}

// Session is returned after a successful login
type Session struct {
	Token     string    `json:"session"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// Service ties the login methods to session issuance
type Service struct {
	sessions *Sessions
	passkeys *PasskeyStore
	verifier IDTokenVerifier
}

// NewService creates the login service
func NewService(sessions *Sessions, passkeys *PasskeyStore, verifier IDTokenVerifier) *Service {
	if verifier == nil {
		verifier = UnverifiedIDTokens{}
	}
	return &Service{sessions: sessions, passkeys: passkeys, verifier: verifier}
}

// Sessions exposes the session issuer
func (s *Service) Sessions() *Sessions {
	return s.sessions
}

// Passkeys exposes the passkey store
func (s *Service) Passkeys() *PasskeyStore {
	return s.passkeys
}

// Login authenticates the request and issues a session
func (s *Service) Login(ctx context.Context, req LoginRequest) (Session, error) {
	var (
		user User
		err  error
	)

	switch req.Method {
	case types.AuthSocial:
		var uid string
		uid, err = s.verifier.VerifyIDToken(ctx, req.IDToken)
		if err == nil {
			user = NewUser(uid, types.AuthSocial)
		}
	case types.AuthPasskey:
		user, err = s.passkeys.Lookup(req.CredentialID)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
	case types.AuthXverse:
		addr := strings.TrimSpace(req.WalletAddress)
		if addr == "" {
			err = fmt.Errorf("%w: wallet address required", ErrAuthFailed)
			break
		}
		user = NewUser("xverse:"+addr, types.AuthXverse)
	default:
		return Session{}, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}
	if err != nil {
		logrus.WithField("method", req.Method).Warnf("Login failed: %v", err)
		return Session{}, err
	}

	return s.Issue(user)
}

// Issue creates a session for an already authenticated user
func (s *Service) Issue(user User) (Session, error) {
	token, expires, err := s.sessions.Issue(user)
	if err != nil {
		return Session{}, err
	}
	logrus.WithFields(logrus.Fields{
		"user":   user.ID,
		"method": user.AuthMethod,
	}).Info("Session issued")
	return Session{Token: token, ExpiresAt: expires, User: user}, nil
}
