package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/liquid-btc-yield/internal/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	sessions, err := NewSessions("test-secret", "liquid-btc-yield", time.Hour)
	require.NoError(t, err)
	return NewService(sessions, NewPasskeyStore(RelyingParty{ID: "localhost", Name: "Test"}, time.Minute), nil)
}

func idToken(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString([]byte("issuer-key"))
	require.NoError(t, err)
	return tok
}

func TestDeriveAddress(t *testing.T) {
	tests := []struct {
		uid  string
		want string
	}{
		{uid: "abc", want: "0x616263"},
		{uid: "firebase-user-0123456789", want: "0x66697265626173652d757365722d303132333435"},
		{uid: "", want: "0x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveAddress(tt.uid), tt.uid)
	}
	assert.Len(t, DeriveAddress("a very long user identifier indeed"), 42)
}

func TestLogin_Social(t *testing.T) {
	svc := newTestService(t)

	sess, err := svc.Login(context.Background(), LoginRequest{Method: types.AuthSocial, IDToken: idToken(t, "user-1")})
	require.NoError(t, err)
	assert.Equal(t, "user-1", sess.User.ID)
	assert.Equal(t, DeriveAddress("user-1"), sess.User.Address)
	assert.Equal(t, types.AuthSocial, sess.User.AuthMethod)

	user, claims, err := svc.Sessions().Parse(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User, user)
	assert.Equal(t, "liquid-btc-yield", claims.Issuer)
}

func TestLogin_Failures(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name    string
		req     LoginRequest
		wantErr error
	}{
		{name: "garbage id token", req: LoginRequest{Method: types.AuthSocial, IDToken: "nope"}, wantErr: ErrAuthFailed},
		{name: "id token without subject", req: LoginRequest{Method: types.AuthSocial, IDToken: idToken(t, "")}, wantErr: ErrAuthFailed},
		{name: "unknown passkey", req: LoginRequest{Method: types.AuthPasskey, CredentialID: "cred"}, wantErr: ErrAuthFailed},
		{name: "xverse without address", req: LoginRequest{Method: types.AuthXverse}, wantErr: ErrAuthFailed},
		{name: "unknown method", req: LoginRequest{Method: "telepathy"}, wantErr: ErrUnsupportedMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLogin_Xverse(t *testing.T) {
	svc := newTestService(t)

	sess, err := svc.Login(context.Background(), LoginRequest{Method: types.AuthXverse, WalletAddress: "bc1qxyz"})
	require.NoError(t, err)
	assert.Equal(t, "xverse:bc1qxyz", sess.User.ID)
	assert.Equal(t, types.AuthXverse, sess.User.AuthMethod)
}

func TestPasskeyCeremonies(t *testing.T) {
	svc := newTestService(t)
	store := svc.Passkeys()

	_, err := store.AuthOptions()
	assert.ErrorIs(t, err, ErrNoCredentials)

	reg := store.RegisterOptions("satoshi")
	assert.Equal(t, "localhost", reg.RP.ID)
	assert.Equal(t, "satoshi", reg.User.Name)
	assert.Equal(t, int64(60000), reg.Timeout)

	user, err := store.VerifyRegistration(CeremonyResponse{ID: "cred-1", Challenge: reg.Challenge})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, user.ID)

	_, err = store.VerifyRegistration(CeremonyResponse{ID: "cred-1", Challenge: reg.Challenge})
	assert.ErrorIs(t, err, ErrUnknownChallenge, "challenges are single use")

	opts, err := store.AuthOptions()
	require.NoError(t, err)
	require.Len(t, opts.AllowCredentials, 1)
	assert.Equal(t, "cred-1", opts.AllowCredentials[0].ID)

	_, err = store.VerifyRegistration(CeremonyResponse{ID: "cred-2", Challenge: opts.Challenge})
	assert.ErrorIs(t, err, ErrUnknownChallenge, "an auth challenge cannot register")

	opts, err = store.AuthOptions()
	require.NoError(t, err)
	again, err := store.VerifyAuthentication(CeremonyResponse{ID: "cred-1", Challenge: opts.Challenge})
	require.NoError(t, err)
	assert.Equal(t, user, again)

	sess, err := svc.Login(context.Background(), LoginRequest{Method: types.AuthPasskey, CredentialID: "cred-1"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.User.ID)
}

func TestPasskeyChallengeExpiry(t *testing.T) {
	store := NewPasskeyStore(RelyingParty{ID: "localhost"}, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	reg := store.RegisterOptions("")
	now = now.Add(2 * time.Minute)

	_, err := store.VerifyRegistration(CeremonyResponse{ID: "cred", Challenge: reg.Challenge})
	assert.ErrorIs(t, err, ErrUnknownChallenge)
}

func TestSessions(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewSessions("secret", "test", time.Hour)
	require.NoError(t, err)
	s.WithClock(func() time.Time { return now })

	token, expires, err := s.Issue(NewUser("u1", types.AuthSocial))
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expires)

	_, _, err = s.Parse(token)
	require.NoError(t, err)

	other, err := NewSessions("other", "test", time.Hour)
	require.NoError(t, err)
	other.WithClock(func() time.Time { return now })
	_, _, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, _, err = s.Parse("not.a.token")
	assert.ErrorIs(t, err, ErrTokenMalformed)

	now = now.Add(2 * time.Hour)
	_, _, err = s.Parse(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = NewSessions("", "test", time.Hour)
	assert.Error(t, err)
}
