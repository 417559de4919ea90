package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourorg/liquid-btc-yield/internal/model"
)

var (
	daysPerYear = decimal.NewFromInt(365)
	msPerYear   = decimal.NewFromInt(int64(24 * time.Hour / time.Millisecond)).Mul(daysPerYear)
)

// PositionBook tracks deposits and accrued yield per (protocol, strategy).
// It is not safe for concurrent use; Simulator serialises access.
type PositionBook struct {
	order []*model.Position
	index map[model.PositionKey]*model.Position
}

// NewPositionBook creates an empty book
func NewPositionBook() *PositionBook {
	return &PositionBook{index: make(map[model.PositionKey]*model.Position)}
}

// ApplyDeposit adds amount to the strategy's position, opening it if needed.
// Yield earned so far is settled first so the new funds only earn from now on.
func (b *PositionBook) ApplyDeposit(s model.StrategyDescriptor, amount decimal.Decimal, now time.Time) {
	key := model.PositionKey{Protocol: s.Protocol, Strategy: s.Name}
	p, ok := b.index[key]
	if !ok {
		p = &model.Position{
			Protocol:   s.Protocol,
			Strategy:   s.Name,
			Deposited:  decimal.Zero,
			Earned:     decimal.Zero,
			LastUpdate: now,
		}
		b.order = append(b.order, p)
		b.index[key] = p
	}

	accrue(p, now)
	p.Deposited = p.Deposited.Add(amount)
	p.APY = s.APY
}

// ApplyWithdrawal removes amount from the position, never going below zero.
// Earned yield is left untouched.
func (b *PositionBook) ApplyWithdrawal(s model.StrategyDescriptor, amount decimal.Decimal, now time.Time) error {
	p, ok := b.index[model.PositionKey{Protocol: s.Protocol, Strategy: s.Name}]
	if !ok {
		return fmt.Errorf("%w: no position in %s", ErrNotFound, s.ID)
	}

	accrue(p, now)
	p.Deposited = p.Deposited.Sub(amount)
	if p.Deposited.IsNegative() {
		p.Deposited = decimal.Zero
	}
	return nil
}

// AccrueYield folds simple interest up to now into every position.
// Calling it again with the same instant adds nothing.
func (b *PositionBook) AccrueYield(now time.Time) {
	for _, p := range b.order {
		accrue(p, now)
	}
}

// Claim returns the yield earned in every position of protocol and resets it to zero
func (b *PositionBook) Claim(protocol string) (decimal.Decimal, error) {
	claimed := decimal.Zero
	found := false
	for _, p := range b.order {
		if p.Protocol != protocol {
			continue
		}
		found = true
		claimed = claimed.Add(p.Earned)
		p.Earned = decimal.Zero
	}
	if !found {
		return decimal.Zero, fmt.Errorf("%w: no position in %s", ErrNotFound, protocol)
	}
	return claimed, nil
}

// HasProtocol reports whether any position exists for protocol
func (b *PositionBook) HasProtocol(protocol string) bool {
	for _, p := range b.order {
		if p.Protocol == protocol {
			return true
		}
	}
	return false
}

// Has reports whether the strategy has a position
func (b *PositionBook) Has(s model.StrategyDescriptor) bool {
	_, ok := b.index[model.PositionKey{Protocol: s.Protocol, Strategy: s.Name}]
	return ok
}

// List returns copies of all positions in opening order
func (b *PositionBook) List() []model.Position {
	out := make([]model.Position, len(b.order))
	for i, p := range b.order {
		out[i] = *p
	}
	return out
}

// restore inserts a position verbatim, used for demo seed data
func (b *PositionBook) restore(p model.Position) {
	if existing, ok := b.index[p.Key()]; ok {
		*existing = p
		return
	}
	cp := p
	b.order = append(b.order, &cp)
	b.index[p.Key()] = &cp
}

// accrue adds deposited × APY × elapsed/365d to earned and advances LastUpdate.
// A now at or before LastUpdate is a no-op.
func accrue(p *model.Position, now time.Time) {
	if !now.After(p.LastUpdate) {
		return
	}
	elapsed := decimal.NewFromInt(now.Sub(p.LastUpdate).Milliseconds())
	if p.Deposited.IsPositive() && p.APY.IsPositive() {
		p.Earned = p.Earned.Add(p.Deposited.Mul(p.APY).Mul(elapsed).Div(msPerYear))
	}
	p.LastUpdate = now
}
