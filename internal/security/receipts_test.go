package security

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/liquid-btc-yield/internal/model"
	"github.com/yourorg/liquid-btc-yield/internal/types"
)

const testKey = "fad9c8855b740a0b7ed4c221dbad0f33a83a49cad6b3fe8d5817ac83d38b6a19"

func confirmedTx() model.Transaction {
	return model.Transaction{
		ID:          "tx_000001",
		Kind:        types.KindDeposit,
		Amount:      decimal.RequireFromString("1000"),
		Token:       "USDC",
		Protocol:    "Vesu",
		Status:      types.StatusConfirmed,
		TxHash:      "0xfeed",
		BlockNumber: 42,
		SettledAt:   time.Date(2025, 1, 1, 12, 0, 3, 0, time.UTC),
	}
}

func TestReceiptSigner_SignAndVerify(t *testing.T) {
	s, err := NewReceiptSigner(SignerOptions{PrivateKeyHex: testKey})
	require.NoError(t, err)
	assert.Len(t, s.Address(), 42)

	again, err := NewReceiptSigner(SignerOptions{PrivateKeyHex: testKey})
	require.NoError(t, err)
	assert.Equal(t, s.Address(), again.Address(), "the address is derived from the key")

	r, err := s.Sign(confirmedTx())
	require.NoError(t, err)
	assert.Equal(t, s.Address(), r.Signer)
	assert.Equal(t, Algorithm, r.Algorithm)
	assert.Len(t, r.Signature, 2+65*2)
	assert.Equal(t, "1000", r.Payload.Amount)

	assert.NoError(t, s.Verify(r))
}

func TestReceiptSigner_RejectsPending(t *testing.T) {
	s, err := NewReceiptSigner(SignerOptions{})
	require.NoError(t, err)

	tx := confirmedTx()
	tx.Status = types.StatusPending
	_, err = s.Sign(tx)
	assert.ErrorIs(t, err, ErrNotSettled)
}

func TestReceiptSigner_DetectsTampering(t *testing.T) {
	s, err := NewReceiptSigner(SignerOptions{PrivateKeyHex: "0x" + testKey})
	require.NoError(t, err)

	r, err := s.Sign(confirmedTx())
	require.NoError(t, err)

	tampered := r
	tampered.Payload.Amount = "100000"
	assert.ErrorIs(t, s.Verify(tampered), ErrHashMismatch)

	badSig := r
	badSig.Signature = "0x1234"
	assert.ErrorIs(t, s.Verify(badSig), ErrInvalidSignature)
}

func TestReceiptSigner_ForeignSigner(t *testing.T) {
	ours, err := NewReceiptSigner(SignerOptions{PrivateKeyHex: testKey})
	require.NoError(t, err)
	theirs, err := NewReceiptSigner(SignerOptions{})
	require.NoError(t, err)

	r, err := theirs.Sign(confirmedTx())
	require.NoError(t, err)

	assert.ErrorIs(t, ours.Verify(r), ErrInvalidSignature)
}

func TestReceiptSigner_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewReceiptSigner(SignerOptions{
		PrivateKeyHex: testKey,
		Validity:      time.Hour,
		Now:           func() time.Time { return now },
	})
	require.NoError(t, err)

	r, err := s.Sign(confirmedTx())
	require.NoError(t, err)
	require.NoError(t, s.Verify(r))

	now = now.Add(2 * time.Hour)
	assert.ErrorIs(t, s.Verify(r), ErrExpired)
}

func TestNewReceiptSigner_InvalidKey(t *testing.T) {
	_, err := NewReceiptSigner(SignerOptions{PrivateKeyHex: "not-hex"})
	assert.Error(t, err)
}
