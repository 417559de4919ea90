// Package model defines the core data structures for the yield engine ledger.
package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourorg/liquid-btc-yield/internal/types"
)

// DisplayPlaces is the number of decimals used when amounts are rendered
const DisplayPlaces = 2

// StrategyDescriptor describes a yield strategy a user can allocate USDC to.
// Descriptors are created once at start-up and never mutated.
type StrategyDescriptor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"`

	// APY is the Annual Percentage Yield, expressed as a decimal
	// e.g., 0.085 for 8.5% APY
	APY decimal.Decimal `json:"apy"`

	// TVL is a display string such as "$12.3M"
	TVL string `json:"tvl"`

	RiskLevel      types.RiskTier  `json:"riskLevel"`
	Description    string          `json:"description"`
	MinimumDeposit decimal.Decimal `json:"minimumDeposit"`
	LockPeriod     string          `json:"lockPeriod,omitempty"`
	Rewards        []string        `json:"rewards,omitempty"`
}

// PositionKey identifies a position. There is at most one position per key.
type PositionKey struct {
	Protocol string
	Strategy string
}

// Position is the accumulated stake in one (protocol, strategy) pair
type Position struct {
	Protocol string
	Strategy string

	// Deposited never goes below zero
	Deposited decimal.Decimal

	// Earned only grows between claims
	Earned decimal.Decimal

	// APY copied from the strategy when the position was opened
	APY decimal.Decimal

	LastUpdate time.Time
}

// Key returns the identity of the position
func (p Position) Key() PositionKey {
	return PositionKey{Protocol: p.Protocol, Strategy: p.Strategy}
}

// MarshalJSON renders amounts with two decimals and the timestamp in milliseconds
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Protocol   string          `json:"protocol"`
		Strategy   string          `json:"strategy"`
		Deposited  string          `json:"deposited"`
		Earned     string          `json:"earned"`
		APY        decimal.Decimal `json:"apy"`
		LastUpdate int64           `json:"lastUpdate"`
	}{
		Protocol:   p.Protocol,
		Strategy:   p.Strategy,
		Deposited:  p.Deposited.StringFixed(DisplayPlaces),
		Earned:     p.Earned.StringFixed(DisplayPlaces),
		APY:        p.APY,
		LastUpdate: p.LastUpdate.UnixMilli(),
	})
}

// Transaction is an append-only record of a simulated operation
type Transaction struct {
	ID          string          `json:"id"`
	Kind        types.TxKind    `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Token       string          `json:"token"`
	Protocol    string          `json:"protocol,omitempty"`
	Status      types.TxStatus  `json:"status"`
	CreatedAt   time.Time       `json:"timestamp"`
	TxHash      string          `json:"txHash,omitempty"`
	BlockNumber uint64          `json:"blockNumber,omitempty"`
	GasUsed     string          `json:"gasUsed,omitempty"`
	Description string          `json:"description"`
	Metadata    map[string]any  `json:"metadata,omitempty"`

	// SettledAt is zero while the transaction is pending
	SettledAt time.Time `json:"settledAt,omitempty"`
}

// Clone returns a copy that shares no mutable state with t
func (t Transaction) Clone() Transaction {
	if t.Metadata != nil {
		md := make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			md[k] = v
		}
		t.Metadata = md
	}
	return t
}

// DashboardView is a consistent snapshot of the ledger for display
type DashboardView struct {
	TotalBalance       string               `json:"totalBalance"`
	BTCBalance         string               `json:"btcBalance"`
	USDCBalance        string               `json:"usdcBalance"`
	TotalDeposited     string               `json:"totalDeposited"`
	TotalYieldEarned   string               `json:"totalYieldEarned"`
	WeightedAPY        decimal.Decimal      `json:"weightedApy"`
	Positions          []Position           `json:"positions"`
	RecentTransactions []Transaction        `json:"recentTransactions"`
	YieldStrategies    []StrategyDescriptor `json:"yieldStrategies"`
	GeneratedAt        time.Time            `json:"generatedAt"`
}

// GasEstimate is the simulated cost of an on-chain operation
type GasEstimate struct {
	GasLimit string `json:"gasLimit"`
	GasFee   string `json:"gasFee"`
}
