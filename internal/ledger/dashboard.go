package ledger

import (
	"time"

	"github.com/yourorg/liquid-btc-yield/internal/aggregate"
	"github.com/yourorg/liquid-btc-yield/internal/model"
)

// Snapshot settles accrual up to now and assembles the dashboard.
// It is a read that also advances accrual state; callers should pass a non-decreasing now.
func (s *Simulator) Snapshot(now time.Time) model.DashboardView {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.book.AccrueYield(now)
	positions := s.book.List()
	totals := aggregate.Sum(positions)

	return model.DashboardView{
		TotalBalance:       totals.Balance.StringFixed(model.DisplayPlaces),
		BTCBalance:         s.btcBalance,
		USDCBalance:        s.usdcBalance,
		TotalDeposited:     totals.Deposited.StringFixed(model.DisplayPlaces),
		TotalYieldEarned:   totals.Earned.StringFixed(model.DisplayPlaces),
		WeightedAPY:        aggregate.Weighted(positions),
		Positions:          positions,
		RecentTransactions: s.log.List(s.recentLimit),
		YieldStrategies:    s.catalog.List(),
		GeneratedAt:        now,
	}
}
