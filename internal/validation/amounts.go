// Package validation provides input checks for amounts and strategy descriptors.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/liquid-btc-yield/internal/model"
)

var (
	// ErrInvalidAmount is returned for amounts that are not finite positive decimals
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrBelowMinimum is returned when a deposit is smaller than the strategy minimum
	ErrBelowMinimum = errors.New("amount below strategy minimum")

	// ErrInvalidStrategy is returned for malformed strategy descriptors
	ErrInvalidStrategy = errors.New("invalid strategy")
)

// AmountOptions holds configuration for amount parsing
type AmountOptions struct {
	// MaxPlaces is the largest number of fractional digits accepted
	MaxPlaces int32

	// MaxAmount rejects absurdly large inputs; zero disables the check
	MaxAmount decimal.Decimal

	// AllowZero accepts "0" as a valid amount
	AllowZero bool
}

// DefaultAmountOptions returns sensible defaults: up to 8 places (satoshi precision)
// and at most one billion units.
func DefaultAmountOptions() AmountOptions {
	return AmountOptions{
		MaxPlaces: 8,
		MaxAmount: decimal.NewFromInt(1_000_000_000),
	}
}

// ParseAmount parses a user supplied amount with the default options.
func ParseAmount(raw string) (decimal.Decimal, error) {
	return ParseAmountWithOptions(raw, DefaultAmountOptions())
}

// ParseAmountWithOptions parses raw as a decimal and applies opts.
// NaN, infinities and exponent notation never parse.
func ParseAmountWithOptions(raw string, opts AmountOptions) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, s)
	}
	if d.IsZero() && !opts.AllowZero {
		return decimal.Zero, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	if opts.MaxPlaces >= 0 && -d.Exponent() > opts.MaxPlaces && !d.Equal(d.Truncate(opts.MaxPlaces)) {
		return decimal.Zero, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, opts.MaxPlaces)
	}
	if opts.MaxAmount.IsPositive() && d.GreaterThan(opts.MaxAmount) {
		return decimal.Zero, fmt.Errorf("%w: %s exceeds maximum %s", ErrInvalidAmount, s, opts.MaxAmount)
	}

	return d, nil
}

// CheckMinimumDeposit rejects deposits below the strategy minimum
func CheckMinimumDeposit(s model.StrategyDescriptor, amount decimal.Decimal) error {
	if amount.LessThan(s.MinimumDeposit) {
		return fmt.Errorf("%w: %s requires at least %s USDC, got %s",
			ErrBelowMinimum, s.ID, s.MinimumDeposit, amount)
	}
	return nil
}

// Strategy checks a descriptor for the fields the ledger relies on
func Strategy(s model.StrategyDescriptor) error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidStrategy)
	case s.Protocol == "" || s.Name == "":
		return fmt.Errorf("%w: %s has no protocol or name", ErrInvalidStrategy, s.ID)
	case s.APY.IsNegative():
		return fmt.Errorf("%w: %s has negative APY", ErrInvalidStrategy, s.ID)
	case s.APY.GreaterThan(decimal.NewFromInt(10)):
		// 1000% as decimal
		return fmt.Errorf("%w: %s APY %s is implausible", ErrInvalidStrategy, s.ID, s.APY)
	case s.MinimumDeposit.IsNegative():
		return fmt.Errorf("%w: %s has negative minimum deposit", ErrInvalidStrategy, s.ID)
	}
	return nil
}

// FilterStrategies removes descriptors that fail Strategy
func FilterStrategies(strategies []model.StrategyDescriptor) []model.StrategyDescriptor {
	valid := make([]model.StrategyDescriptor, 0, len(strategies))
	for _, s := range strategies {
		if err := Strategy(s); err != nil {
			logrus.WithFields(logrus.Fields{
				"strategy": s.ID,
				"protocol": s.Protocol,
				"apy":      s.APY.String(),
			}).Debugf("Filtered invalid strategy: %v", err)
			continue
		}
		valid = append(valid, s)
	}
	return valid
}
