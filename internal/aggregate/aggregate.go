// Package aggregate folds positions into portfolio level figures.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/yourorg/liquid-btc-yield/internal/model"
)

// Totals are the portfolio sums shown on the dashboard
type Totals struct {
	Deposited decimal.Decimal `json:"deposited"`
	Earned    decimal.Decimal `json:"earned"`

	// Balance is Deposited + Earned
	Balance decimal.Decimal `json:"balance"`
}

// Sum adds up deposited and earned amounts across positions
func Sum(positions []model.Position) Totals {
	var t Totals
	for _, p := range positions {
		t.Deposited = t.Deposited.Add(p.Deposited)
		t.Earned = t.Earned.Add(p.Earned)
	}
	t.Balance = t.Deposited.Add(t.Earned)
	return t
}

// Weighted computes the deposit-weighted APY of the positions.
// Positions with nothing deposited do not contribute. Returns zero when the book is empty.
func Weighted(positions []model.Position) decimal.Decimal {
	var totalDeposited, weightedAPY decimal.Decimal

	for _, p := range positions {
		if !p.Deposited.IsPositive() || p.APY.IsNegative() {
			continue
		}
		totalDeposited = totalDeposited.Add(p.Deposited)
		weightedAPY = weightedAPY.Add(p.APY.Mul(p.Deposited))
	}

	if !totalDeposited.IsPositive() {
		return decimal.Zero
	}
	return weightedAPY.Div(totalDeposited)
}

// ProtocolTotals is the share of the portfolio held in one protocol
type ProtocolTotals struct {
	Protocol string `json:"protocol"`
	Totals
}

// ByProtocol groups positions per protocol, sorted by protocol name
func ByProtocol(positions []model.Position) []ProtocolTotals {
	grouped := make(map[string][]model.Position)
	for _, p := range positions {
		grouped[p.Protocol] = append(grouped[p.Protocol], p)
	}

	out := make([]ProtocolTotals, 0, len(grouped))
	for protocol, ps := range grouped {
		out = append(out, ProtocolTotals{Protocol: protocol, Totals: Sum(ps)})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Protocol < out[j].Protocol
	})
	return out
}

// ProjectedAnnualYield is the simple-interest yield the book would earn over a year at current APYs
func ProjectedAnnualYield(positions []model.Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		if p.Deposited.IsPositive() {
			total = total.Add(p.Deposited.Mul(p.APY))
		}
	}
	return total
}
