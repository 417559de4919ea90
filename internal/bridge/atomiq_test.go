package bridge

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/liquid-btc-yield/internal/circuitbreaker"
	"github.com/yourorg/liquid-btc-yield/internal/ledger"
)

func sequence(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func TestDepositAddress(t *testing.T) {
	svc := New(Options{NewSwapID: sequence("swap-1")})

	d, err := svc.DepositAddress("0xabc")
	require.NoError(t, err)
	assert.Equal(t, "swap-1", d.SwapID)
	assert.Len(t, d.Address, 60)
	// hex("0xabcswap-1") padded with zeros
	assert.Equal(t, "bc1q3078616263737761702d31"+strings.Repeat("0", 34), d.Address)

	_, err = svc.DepositAddress("  ")
	assert.ErrorIs(t, err, ErrInvalidAccount)
}

func TestDepositAddress_TruncatesLongInput(t *testing.T) {
	svc := New(Options{})

	d, err := svc.DepositAddress("0x0123456789abcdef0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	assert.Len(t, d.Address, 60)
	assert.NotEmpty(t, d.SwapID)
}

func TestQuote(t *testing.T) {
	svc := New(Options{})

	tests := []struct {
		name     string
		sats     int64
		wantUSDC string
		wantFees string
	}{
		{name: "0.001 BTC", sats: 100_000, wantUSDC: "64675000", wantFees: "500"},
		{name: "1 BTC", sats: 100_000_000, wantUSDC: "64675000000", wantFees: "500000"},
		{name: "dust", sats: 150, wantUSDC: "97500", wantFees: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := svc.Quote(context.Background(), tt.sats)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUSDC, q.USDCAmount)
			assert.Equal(t, tt.wantFees, q.Fees)
			assert.True(t, q.RateUSDPerBTC.Equal(decimal.NewFromInt(65000)))
		})
	}

	_, err := svc.Quote(context.Background(), 0)
	assert.Error(t, err)
}

func TestQuote_UsesPriceSource(t *testing.T) {
	svc := New(Options{Prices: ledger.FixedPrice{Price: decimal.NewFromInt(100000)}})

	q, err := svc.Quote(context.Background(), 100_000)
	require.NoError(t, err)
	assert.Equal(t, "99500000", q.USDCAmount)
}

func TestStatus(t *testing.T) {
	svc := New(Options{})

	assert.Equal(t, SwapStatus{Status: StatusCompleted, TxHash: "0xabc1"}, svc.Status("abc1"))
	assert.Equal(t, SwapStatus{Status: StatusFailed}, svc.Status("abc2"))
	assert.Equal(t, SwapStatus{Status: StatusPending}, svc.Status("abc3"))
}

func TestSwapOutcome_TripsBreaker(t *testing.T) {
	cb := circuitbreaker.New(circuitbreaker.Thresholds{FailureThreshold: 2}).WithResetDelay(time.Hour)
	svc := New(Options{Breaker: cb, NewSwapID: sequence("next")})

	ok, reason := svc.SwapOutcome("a2")
	assert.False(t, ok)
	assert.Contains(t, reason, "failed")

	ok, _ = svc.SwapOutcome("b1")
	assert.True(t, ok, "a success resets the failure count")

	svc.SwapOutcome("c2")
	svc.SwapOutcome("d2")
	assert.Equal(t, circuitbreaker.StateOpen, cb.GetState())

	_, err := svc.DepositAddress("0xabc")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)

	cb.Reset()
	_, err = svc.DepositAddress("0xabc")
	assert.NoError(t, err)
}

func TestSwapOutcome_WithSimulator(t *testing.T) {
	svc := New(Options{})
	sched := ledger.NewManualScheduler()
	sim, err := ledger.New(mustCatalog(t), ledger.Options{
		Scheduler: sched,
		IDs:       &ledger.SequenceIDs{},
		Swaps:     svc,
	})
	require.NoError(t, err)
	defer sim.Close()

	tx, err := sim.Bridge(context.Background(), ledger.BridgeRequest{BTCAmount: "0.01", SwapID: "swap-2"})
	require.NoError(t, err)

	settled, err := sim.ConfirmNow(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", string(settled.Status))
}
