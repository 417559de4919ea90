// Package types contains shared enumerations used across multiple packages
package types

// TxKind identifies the operation a ledger transaction records
type TxKind string

// Supported transaction kinds
const (
	KindDeposit          TxKind = "deposit"
	KindWithdraw         TxKind = "withdraw"
	KindYieldClaim       TxKind = "yield_claim"
	KindLightningPayment TxKind = "lightning_payment"
	KindBridge           TxKind = "bridge"
	KindSwap             TxKind = "swap"
)

// AllKinds lists every transaction kind in display order
var AllKinds = []TxKind{
	KindDeposit,
	KindWithdraw,
	KindYieldClaim,
	KindLightningPayment,
	KindBridge,
	KindSwap,
}

// Valid reports whether k is a known kind
func (k TxKind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// TxStatus is the settlement state of a transaction.
// A transaction leaves StatusPending exactly once.
type TxStatus string

// Transaction states
const (
	StatusPending   TxStatus = "pending"
	StatusConfirmed TxStatus = "confirmed"
	StatusFailed    TxStatus = "failed"
)

// Terminal reports whether the status can no longer change
func (s TxStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// RiskTier classifies a yield strategy
type RiskTier string

// Risk tiers
const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// AuthMethod is the way a user signed in
type AuthMethod string

// Supported login methods
const (
	AuthSocial  AuthMethod = "social"
	AuthPasskey AuthMethod = "passkey"
	AuthXverse  AuthMethod = "xverse"
)
