package jobs

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourorg/liquid-btc-yield/internal/model"
)

// Ledger is the part of the simulator the jobs need
type Ledger interface {
	Now() time.Time
	Snapshot(now time.Time) model.DashboardView
	PendingCount() int
}

// GaugeSink receives the state published by AccrualJob
type GaugeSink interface {
	ObserveDashboard(view model.DashboardView, pending int)
}

// AccrualJob settles yield up to the current time and publishes the totals
type AccrualJob struct {
	Ledger Ledger
	Sink   GaugeSink
}

// Name implements Job
func (AccrualJob) Name() string { return "accrue-yield" }

// Run implements Job
func (j AccrualJob) Run() error {
	view := j.Ledger.Snapshot(j.Ledger.Now())
	if j.Sink != nil {
		j.Sink.ObserveDashboard(view, j.Ledger.PendingCount())
	}
	return nil
}

// PriceSource quotes BTC/USD
type PriceSource interface {
	BTCUSD(ctx context.Context) (decimal.Decimal, error)
}

// PriceRefreshJob keeps the price cache warm so requests rarely wait on a feed
type PriceRefreshJob struct {
	Prices  PriceSource
	Timeout time.Duration

	// OnPrice is called with every refreshed price
	OnPrice func(decimal.Decimal)
}

// Name implements Job
func (PriceRefreshJob) Name() string { return "refresh-btc-price" }

// Run implements Job
func (j PriceRefreshJob) Run() error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	p, err := j.Prices.BTCUSD(ctx)
	if err != nil {
		return err
	}
	if j.OnPrice != nil {
		j.OnPrice(p)
	}
	return nil
}
