// Package bridge simulates the Atomiq BTC to Starknet USDC bridge: deposit
// addresses, quotes and swap status. Nothing here touches a real chain.
package bridge

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/liquid-btc-yield/internal/circuitbreaker"
	"github.com/yourorg/liquid-btc-yield/internal/ledger"
)

// Provider is the bridge name recorded on transactions
const Provider = "Atomiq"

const (
	satsPerBTC      = 100_000_000
	usdcBaseUnits   = 1_000_000
	addressHexChars = 56
)

// Swap states reported by Status
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrInvalidAccount is returned when no Starknet account is given
var ErrInvalidAccount = errors.New("starknet account address is required")

// Deposit is a one-off BTC address bound to a swap
type Deposit struct {
	Address string `json:"address"`
	SwapID  string `json:"swapId"`
}

// Quote is the expected USDC output for a BTC input
type Quote struct {
	// USDCAmount is expressed in USDC base units (6 decimals)
	USDCAmount    string          `json:"usdcAmount"`
	RateUSDPerBTC decimal.Decimal `json:"rateUsdPerBtc"`

	// Fees are in satoshis
	Fees string `json:"fees"`
}

// SwapStatus reports the progress of a swap
type SwapStatus struct {
	Status string `json:"status"`
	TxHash string `json:"txHash,omitempty"`
}

// Options configures the bridge. Zero values select the defaults.
type Options struct {
	// Breaker guards new deposit addresses; nil disables it
	Breaker *circuitbreaker.CircuitBreaker

	// Prices supplies BTC/USD; defaults to the fixed reference price
	Prices ledger.PriceSource

	// FeeRate is the bridge fee as a fraction, default 0.005
	FeeRate decimal.Decimal

	// NewSwapID generates swap ids; defaults to random UUIDs
	NewSwapID func() string
}

// Service is the simulated Atomiq bridge
type Service struct {
	breaker   *circuitbreaker.CircuitBreaker
	prices    ledger.PriceSource
	feeRate   decimal.Decimal
	newSwapID func() string
}

// New creates a bridge service
func New(opts Options) *Service {
	s := &Service{
		breaker:   opts.Breaker,
		prices:    opts.Prices,
		feeRate:   opts.FeeRate,
		newSwapID: opts.NewSwapID,
	}
	if s.prices == nil {
		s.prices = ledger.FixedPrice{Price: ledger.DefaultBTCPrice}
	}
	if !s.feeRate.IsPositive() {
		s.feeRate = decimal.RequireFromString("0.005")
	}
	if s.newSwapID == nil {
		s.newSwapID = uuid.NewString
	}
	return s
}

// Breaker returns the circuit breaker guarding the bridge, which may be nil
func (s *Service) Breaker() *circuitbreaker.CircuitBreaker {
	return s.breaker
}

// DepositAddress issues a BTC deposit address for a Starknet account.
// It is refused while the breaker is open.
func (s *Service) DepositAddress(account string) (Deposit, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return Deposit{}, ErrInvalidAccount
	}
	if s.breaker != nil {
		if err := s.breaker.Allow(); err != nil {
			return Deposit{}, err
		}
	}

	swapID := s.newSwapID()
	d := Deposit{Address: depositAddress(account, swapID), SwapID: swapID}

	logrus.WithFields(logrus.Fields{
		"account": account,
		"swapId":  swapID,
		"address": d.Address,
	}).Info("Generated bridge deposit address")

	return d, nil
}

// depositAddress derives a bech32-looking address from the account and swap id
func depositAddress(account, swapID string) string {
	h := hex.EncodeToString([]byte(account + swapID))
	if len(h) > addressHexChars {
		h = h[:addressHexChars]
	}
	return "bc1q" + h + strings.Repeat("0", addressHexChars-len(h))
}

// Quote prices a BTC deposit of the given satoshis in USDC, net of fees
func (s *Service) Quote(ctx context.Context, sats int64) (Quote, error) {
	if sats <= 0 {
		return Quote{}, fmt.Errorf("invalid satoshi amount %d", sats)
	}
	price, err := s.prices.BTCUSD(ctx)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to price quote: %w", err)
	}

	amount := decimal.NewFromInt(sats)
	fees := amount.Mul(s.feeRate).Floor()
	net := amount.Sub(fees)
	usdc := net.Div(decimal.NewFromInt(satsPerBTC)).Mul(price).Mul(decimal.NewFromInt(usdcBaseUnits)).Floor()

	return Quote{
		USDCAmount:    usdc.String(),
		RateUSDPerBTC: price,
		Fees:          fees.String(),
	}, nil
}

// Status reports a swap's progress. The simulation derives it from the id:
// ids ending in 1 have completed, ids ending in 2 have failed.
func (s *Service) Status(swapID string) SwapStatus {
	switch {
	case strings.HasSuffix(swapID, "1"):
		h := swapID
		if len(h) > 64 {
			h = h[:64]
		}
		return SwapStatus{Status: StatusCompleted, TxHash: "0x" + h}
	case strings.HasSuffix(swapID, "2"):
		return SwapStatus{Status: StatusFailed}
	}
	return SwapStatus{Status: StatusPending}
}

// SwapOutcome settles a bridge transaction against the swap status and feeds
// the result to the breaker. A swap still pending at confirmation counts as done.
func (s *Service) SwapOutcome(swapID string) (bool, string) {
	st := s.Status(swapID)
	if st.Status == StatusFailed {
		reason := fmt.Sprintf("%s swap %s failed", Provider, swapID)
		if s.breaker != nil {
			s.breaker.RecordFailure(reason)
		}
		return false, reason
	}
	if s.breaker != nil {
		s.breaker.RecordSuccess()
	}
	return true, ""
}
