// Package catalog holds the static list of yield strategies offered by the engine.
package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yourorg/liquid-btc-yield/internal/model"
	"github.com/yourorg/liquid-btc-yield/internal/types"
	"github.com/yourorg/liquid-btc-yield/internal/validation"
)

// ErrNotFound is returned when no strategy has the requested id
var ErrNotFound = errors.New("strategy not found")

// Catalog is an immutable, ordered set of strategies
type Catalog struct {
	strategies []model.StrategyDescriptor
	byID       map[string]int
}

// New builds a catalog preserving the given order. Duplicate ids are rejected.
func New(strategies []model.StrategyDescriptor) (*Catalog, error) {
	c := &Catalog{
		strategies: make([]model.StrategyDescriptor, len(strategies)),
		byID:       make(map[string]int, len(strategies)),
	}
	for i, s := range strategies {
		if err := validation.Strategy(s); err != nil {
			return nil, fmt.Errorf("strategy %d: %w", i, err)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate strategy id %q", s.ID)
		}
		c.strategies[i] = copyStrategy(s)
		c.byID[s.ID] = i
	}
	return c, nil
}

// Default returns the catalog of Starknet strategies shown by the demo.
// Descriptors that fail validation are dropped rather than failing start-up.
func Default() *Catalog {
	c, err := New(validation.FilterStrategies(DefaultStrategies()))
	if err != nil {
		panic(err)
	}
	return c
}

// List returns all strategies in catalog order
func (c *Catalog) List() []model.StrategyDescriptor {
	out := make([]model.StrategyDescriptor, len(c.strategies))
	for i, s := range c.strategies {
		out[i] = copyStrategy(s)
	}
	return out
}

// Find looks a strategy up by id
func (c *Catalog) Find(id string) (model.StrategyDescriptor, error) {
	i, ok := c.byID[id]
	if !ok {
		return model.StrategyDescriptor{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyStrategy(c.strategies[i]), nil
}

// Len returns the number of strategies
func (c *Catalog) Len() int {
	return len(c.strategies)
}

func copyStrategy(s model.StrategyDescriptor) model.StrategyDescriptor {
	if s.Rewards != nil {
		s.Rewards = append([]string(nil), s.Rewards...)
	}
	return s
}

// DefaultStrategies returns the built-in strategy descriptors
func DefaultStrategies() []model.StrategyDescriptor {
	return []model.StrategyDescriptor{
		{
			ID:             "vesu-usdc-lending",
			Name:           "USDC Lending",
			Protocol:       "Vesu",
			APY:            decimal.RequireFromString("0.085"),
			TVL:            "$12.3M",
			RiskLevel:      types.RiskLow,
			Description:    "Lend USDC to earn stable yield from borrowers on Vesu protocol",
			MinimumDeposit: decimal.NewFromInt(10),
			Rewards:        []string{"VESU tokens", "Protocol fees"},
		},
		{
			ID:             "nostra-stable-farm",
			Name:           "Stable LP Farming",
			Protocol:       "Nostra",
			APY:            decimal.RequireFromString("0.128"),
			TVL:            "$8.7M",
			RiskLevel:      types.RiskMedium,
			Description:    "Provide liquidity to USDC/USDT pool and farm NSTR rewards",
			MinimumDeposit: decimal.NewFromInt(50),
			LockPeriod:     "7 days",
			Rewards:        []string{"NSTR tokens", "Trading fees"},
		},
		{
			ID:             "ekubo-concentrated",
			Name:           "Concentrated Liquidity",
			Protocol:       "Ekubo",
			APY:            decimal.RequireFromString("0.152"),
			TVL:            "$5.2M",
			RiskLevel:      types.RiskHigh,
			Description:    "Active liquidity management in USDC/ETH concentrated range",
			MinimumDeposit: decimal.NewFromInt(100),
			Rewards:        []string{"Trading fees", "EKU rewards"},
		},
		{
			ID:             "zklend-supply",
			Name:           "Supply & Borrow",
			Protocol:       "zkLend",
			APY:            decimal.RequireFromString("0.063"),
			TVL:            "$18.5M",
			RiskLevel:      types.RiskLow,
			Description:    "Supply USDC and borrow against it for leveraged strategies",
			MinimumDeposit: decimal.NewFromInt(25),
			Rewards:        []string{"ZEND tokens"},
		},
		{
			ID:             "myswap-autocompound",
			Name:           "Auto-compound LP",
			Protocol:       "MySwap",
			APY:            decimal.RequireFromString("0.114"),
			TVL:            "$3.8M",
			RiskLevel:      types.RiskMedium,
			Description:    "Auto-compounding USDC/STRK liquidity pool position",
			MinimumDeposit: decimal.NewFromInt(75),
			Rewards:        []string{"MYSWAP tokens", "Compounded fees"},
		},
	}
}
