package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/liquid-btc-yield/internal/catalog"
	"github.com/yourorg/liquid-btc-yield/internal/ledger"
	"github.com/yourorg/liquid-btc-yield/internal/model"
)

type recordingSink struct {
	mu      sync.Mutex
	views   []model.DashboardView
	pending []int
}

func (s *recordingSink) ObserveDashboard(view model.DashboardView, pending int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views = append(s.views, view)
	s.pending = append(s.pending, pending)
}

func (s *recordingSink) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

type countingJob struct {
	mu   sync.Mutex
	runs int
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	return j.err
}

func (j *countingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

func TestAccrualJob(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sim, err := ledger.New(catalog.Default(), ledger.Options{
		Clock:     func() time.Time { return now },
		Scheduler: ledger.NewManualScheduler(),
		IDs:       &ledger.SequenceIDs{},
		Seed:      true,
	})
	require.NoError(t, err)
	defer sim.Close()

	sink := &recordingSink{}
	require.NoError(t, AccrualJob{Ledger: sim, Sink: sink}.Run())

	require.Equal(t, 1, sink.calls())
	assert.Equal(t, "3700.00", sink.views[0].TotalDeposited)
	assert.Equal(t, 1, sink.pending[0], "the seeded claim is still pending")
}

type flakyPrices struct{ err error }

func (f flakyPrices) BTCUSD(context.Context) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return decimal.NewFromInt(64000), nil
}

func TestPriceRefreshJob(t *testing.T) {
	var got decimal.Decimal
	job := PriceRefreshJob{Prices: flakyPrices{}, OnPrice: func(p decimal.Decimal) { got = p }}

	require.NoError(t, job.Run())
	assert.Equal(t, "64000", got.String())

	failing := PriceRefreshJob{Prices: flakyPrices{err: errors.New("down")}}
	assert.Error(t, failing.Run())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New()
	job := &countingJob{}

	require.NoError(t, s.AddJob("@every 1s", job))
	assert.Error(t, s.AddJob("not a schedule", job))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.count() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New()
	job := &countingJob{err: errors.New("boom")}

	assert.Error(t, s.RunNow(job))
	assert.Equal(t, 1, job.count())
}
