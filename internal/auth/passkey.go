package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/liquid-btc-yield/internal/types"
)

var (
	// ErrNoCredentials is returned by AuthOptions when no passkey has been registered
	ErrNoCredentials = errors.New("no passkey registered")

	// ErrUnknownChallenge is returned for challenges that were never issued, already used or expired
	ErrUnknownChallenge = errors.New("unknown or expired challenge")

	// ErrUnknownCredential is returned when a credential id is not registered
	ErrUnknownCredential = errors.New("unknown credential")
)

// RelyingParty identifies this service to the authenticator
type RelyingParty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PubKeyCredParam is an accepted credential algorithm
type PubKeyCredParam struct {
	Type string `json:"type"`
	Alg  int    `json:"alg"`
}

// CredentialDescriptor references a registered credential
type CredentialDescriptor struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// RegistrationOptions are passed to navigator.credentials.create
type RegistrationOptions struct {
	Challenge string       `json:"challenge"`
	RP        RelyingParty `json:"rp"`
	User      struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	} `json:"user"`
	PubKeyCredParams []PubKeyCredParam `json:"pubKeyCredParams"`
	Timeout          int64             `json:"timeout"`
	Attestation      string            `json:"attestation"`
}

// AuthenticationOptions are passed to navigator.credentials.get
type AuthenticationOptions struct {
	Challenge        string                 `json:"challenge"`
	RPID             string                 `json:"rpId"`
	AllowCredentials []CredentialDescriptor `json:"allowCredentials"`
	Timeout          int64                  `json:"timeout"`
	UserVerification string                 `json:"userVerification"`
}

// CeremonyResponse is the part of an attestation or assertion the stub checks
type CeremonyResponse struct {
	ID        string `json:"id" validate:"required"`
	Challenge string `json:"challenge" validate:"required"`
}

type challenge struct {
	// userID is set for registration challenges only
	userID  string
	expires time.Time
}

// PasskeyStore keeps passkey credentials and outstanding challenges in memory.
// Signatures are not checked; everything is lost on restart.
type PasskeyStore struct {
	rp      RelyingParty
	timeout time.Duration
	now     func() time.Time

	mu          sync.Mutex
	challenges  map[string]challenge
	credentials map[string]string // credential id -> user id
}

// NewPasskeyStore creates an empty store
func NewPasskeyStore(rp RelyingParty, timeout time.Duration) *PasskeyStore {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &PasskeyStore{
		rp:          rp,
		timeout:     timeout,
		now:         time.Now,
		challenges:  make(map[string]challenge),
		credentials: make(map[string]string),
	}
}

// RegisterOptions starts a registration ceremony for a new user
func (p *PasskeyStore) RegisterOptions(name string) RegistrationOptions {
	if name == "" {
		name = "Bitcoin Yield user"
	}
	userID := uuid.NewString()
	c := p.newChallenge(userID)

	opts := RegistrationOptions{
		Challenge: c,
		RP:        p.rp,
		PubKeyCredParams: []PubKeyCredParam{
			{Type: "public-key", Alg: -7},   // ES256
			{Type: "public-key", Alg: -257}, // RS256
		},
		Timeout:     p.timeout.Milliseconds(),
		Attestation: "none",
	}
	opts.User.ID = userID
	opts.User.Name = name
	opts.User.DisplayName = name
	return opts
}

// VerifyRegistration stores the credential for the challenge's user
func (p *PasskeyStore) VerifyRegistration(r CeremonyResponse) (User, error) {
	c, err := p.takeChallenge(r.Challenge)
	if err != nil {
		return User{}, err
	}
	if c.userID == "" {
		return User{}, fmt.Errorf("%w: not a registration challenge", ErrUnknownChallenge)
	}

	p.mu.Lock()
	p.credentials[r.ID] = c.userID
	p.mu.Unlock()

	logrus.WithFields(logrus.Fields{"user": c.userID, "credential": r.ID}).Info("Passkey registered")
	return NewUser(c.userID, types.AuthPasskey), nil
}

// AuthOptions starts an authentication ceremony over all known credentials
func (p *PasskeyStore) AuthOptions() (AuthenticationOptions, error) {
	p.mu.Lock()
	allow := make([]CredentialDescriptor, 0, len(p.credentials))
	for id := range p.credentials {
		allow = append(allow, CredentialDescriptor{ID: id, Type: "public-key"})
	}
	p.mu.Unlock()

	if len(allow) == 0 {
		return AuthenticationOptions{}, ErrNoCredentials
	}

	return AuthenticationOptions{
		Challenge:        p.newChallenge(""),
		RPID:             p.rp.ID,
		AllowCredentials: allow,
		Timeout:          p.timeout.Milliseconds(),
		UserVerification: "preferred",
	}, nil
}

// VerifyAuthentication resolves the credential to its user
func (p *PasskeyStore) VerifyAuthentication(r CeremonyResponse) (User, error) {
	c, err := p.takeChallenge(r.Challenge)
	if err != nil {
		return User{}, err
	}
	if c.userID != "" {
		return User{}, fmt.Errorf("%w: not an authentication challenge", ErrUnknownChallenge)
	}
	return p.Lookup(r.ID)
}

// Lookup returns the user owning a credential
func (p *PasskeyStore) Lookup(credentialID string) (User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	uid, ok := p.credentials[credentialID]
	if !ok {
		return User{}, fmt.Errorf("%w: %s", ErrUnknownCredential, credentialID)
	}
	return NewUser(uid, types.AuthPasskey), nil
}

func (p *PasskeyStore) newChallenge(userID string) string {
	id := uuid.NewString()
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for k, c := range p.challenges {
		if now.After(c.expires) {
			delete(p.challenges, k)
		}
	}
	p.challenges[id] = challenge{userID: userID, expires: now.Add(p.timeout)}
	return id
}

// takeChallenge consumes a challenge; each one is single use
func (p *PasskeyStore) takeChallenge(id string) (challenge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.challenges[id]
	if !ok {
		return challenge{}, ErrUnknownChallenge
	}
	delete(p.challenges, id)
	if p.now().After(c.expires) {
		return challenge{}, ErrUnknownChallenge
	}
	return c, nil
}
