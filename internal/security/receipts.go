// Package security signs settlement receipts so clients can check that a
// transaction record was issued by this service and not altered.
package security

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/liquid-btc-yield/internal/model"
	"github.com/yourorg/liquid-btc-yield/internal/types"
)

var (
	// ErrNotSettled is returned when a receipt is requested for a pending transaction
	ErrNotSettled = errors.New("transaction is not settled")

	// ErrInvalidSignature is returned when a receipt was not signed by this service
	ErrInvalidSignature = errors.New("invalid receipt signature")

	// ErrHashMismatch is returned when the receipt payload does not match its hash
	ErrHashMismatch = errors.New("receipt hash mismatch")

	// ErrExpired is returned for receipts past their validity
	ErrExpired = errors.New("receipt expired")
)

// Algorithm identifies the signature scheme in receipts
const Algorithm = "secp256k1-keccak256"

// ReceiptPayload is the signed part of a receipt. Field order is fixed so the
// JSON encoding, and therefore the hash, is stable.
type ReceiptPayload struct {
	TransactionID string         `json:"transactionId"`
	Kind          types.TxKind   `json:"type"`
	Amount        string         `json:"amount"`
	Token         string         `json:"token"`
	Protocol      string         `json:"protocol,omitempty"`
	Status        types.TxStatus `json:"status"`
	TxHash        string         `json:"txHash,omitempty"`
	BlockNumber   uint64         `json:"blockNumber,omitempty"`
	SettledAt     int64          `json:"settledAt"`
	IssuedAt      int64          `json:"issuedAt"`
	ValidUntil    int64          `json:"validUntil,omitempty"`
}

// Receipt is a signed statement about a settled transaction
type Receipt struct {
	Payload   ReceiptPayload `json:"payload"`
	Hash      string         `json:"keccak256Hash"`
	Signature string         `json:"signature"`
	Signer    string         `json:"signer"`
	Algorithm string         `json:"algorithm"`
}

// SignerOptions configures receipt signing
type SignerOptions struct {
	// PrivateKeyHex is a hex encoded secp256k1 key; empty generates an ephemeral key
	PrivateKeyHex string

	// Validity bounds how long receipts verify; zero means forever
	Validity time.Duration

	Now func() time.Time
}

// ReceiptSigner issues and verifies receipts
type ReceiptSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	validity   time.Duration
	now        func() time.Time
}

// NewReceiptSigner creates a signer from the configured key
func NewReceiptSigner(opts SignerOptions) (*ReceiptSigner, error) {
	var (
		key *ecdsa.PrivateKey
		err error
	)
	if opts.PrivateKeyHex != "" {
		key, err = crypto.HexToECDSA(strings.TrimPrefix(opts.PrivateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid receipt signing key: %w", err)
		}
	} else {
		key, err = crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate key: %w", err)
		}
		logrus.Warn("No receipt signing key configured, using an ephemeral key")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &ReceiptSigner{
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		validity:   opts.Validity,
		now:        opts.Now,
	}
	logrus.Infof("Receipt signer initialized with address %s", s.address.Hex())
	return s, nil
}

// Address returns the signer's Ethereum-style address
func (s *ReceiptSigner) Address() string {
	return s.address.Hex()
}

// Sign issues a receipt for a settled transaction
func (s *ReceiptSigner) Sign(tx model.Transaction) (Receipt, error) {
	if !tx.Status.Terminal() {
		return Receipt{}, fmt.Errorf("%w: %s is %s", ErrNotSettled, tx.ID, tx.Status)
	}

	now := s.now()
	payload := ReceiptPayload{
		TransactionID: tx.ID,
		Kind:          tx.Kind,
		Amount:        tx.Amount.String(),
		Token:         tx.Token,
		Protocol:      tx.Protocol,
		Status:        tx.Status,
		TxHash:        tx.TxHash,
		BlockNumber:   tx.BlockNumber,
		SettledAt:     tx.SettledAt.UnixMilli(),
		IssuedAt:      now.Unix(),
	}
	if s.validity > 0 {
		payload.ValidUntil = now.Add(s.validity).Unix()
	}

	hash, err := payloadHash(payload)
	if err != nil {
		return Receipt{}, err
	}
	sig, err := crypto.Sign(hash.Bytes(), s.privateKey)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to sign receipt: %w", err)
	}

	return Receipt{
		Payload:   payload,
		Hash:      hash.Hex(),
		Signature: hexutil.Encode(sig),
		Signer:    s.address.Hex(),
		Algorithm: Algorithm,
	}, nil
}

// Verify checks that r was signed by this signer, has not been altered and is still valid
func (s *ReceiptSigner) Verify(r Receipt) error {
	hash, err := payloadHash(r.Payload)
	if err != nil {
		return err
	}
	if !strings.EqualFold(hash.Hex(), r.Hash) {
		return ErrHashMismatch
	}

	sig, err := hexutil.Decode(r.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}

	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if crypto.PubkeyToAddress(*pub) != s.address {
		return fmt.Errorf("%w: signed by %s", ErrInvalidSignature, crypto.PubkeyToAddress(*pub).Hex())
	}

	if r.Payload.ValidUntil > 0 && s.now().Unix() > r.Payload.ValidUntil {
		return fmt.Errorf("%w at %s", ErrExpired, time.Unix(r.Payload.ValidUntil, 0).UTC().Format(time.RFC3339))
	}
	return nil
}

func payloadHash(p ReceiptPayload) (common.Hash, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to marshal receipt: %w", err)
	}
	return crypto.Keccak256Hash(b), nil
}
