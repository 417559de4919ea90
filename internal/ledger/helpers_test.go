package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/liquid-btc-yield/internal/catalog"
	"github.com/yourorg/liquid-btc-yield/internal/model"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type fixedSettlement struct{}

func (fixedSettlement) TxHash() string      { return "0xfeed" }
func (fixedSettlement) BlockNumber() uint64 { return 42 }
func (fixedSettlement) Invoice() string     { return "lnbctest" }
func (fixedSettlement) Preimage() string    { return "beef" }

type swapStub map[string]bool

func (s swapStub) SwapOutcome(id string) (bool, string) {
	if s[id] {
		return true, ""
	}
	return false, "swap failed"
}

type testEnv struct {
	sim   *Simulator
	clock *fakeClock
	sched *ManualScheduler
}

func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()

	clock := newFakeClock()
	sched := NewManualScheduler()
	opts := Options{
		Clock:      clock.Now,
		Scheduler:  sched,
		IDs:        &SequenceIDs{},
		Settlement: fixedSettlement{},
	}
	for _, m := range mutate {
		m(&opts)
	}

	sim, err := New(catalog.Default(), opts)
	require.NoError(t, err)
	t.Cleanup(sim.Close)

	return &testEnv{sim: sim, clock: clock, sched: sched}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func vesu(t *testing.T) model.StrategyDescriptor {
	t.Helper()
	s, err := catalog.Default().Find("vesu-usdc-lending")
	require.NoError(t, err)
	return s
}

func findPosition(positions []model.Position, protocol string) (model.Position, bool) {
	for _, p := range positions {
		if p.Protocol == protocol {
			return p, true
		}
	}
	return model.Position{}, false
}
