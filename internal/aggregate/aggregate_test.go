package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/liquid-btc-yield/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSum(t *testing.T) {
	tests := []struct {
		name      string
		positions []model.Position
		deposited string
		earned    string
		balance   string
	}{
		{
			name:      "empty input",
			positions: nil,
			deposited: "0",
			earned:    "0",
			balance:   "0",
		},
		{
			name: "multiple positions",
			positions: []model.Position{
				{Protocol: "Vesu", Deposited: d("2500"), Earned: d("34.22")},
				{Protocol: "Nostra", Deposited: d("1200"), Earned: d("18.95")},
			},
			deposited: "3700",
			earned:    "53.17",
			balance:   "3753.17",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sum(tt.positions)
			assert.True(t, got.Deposited.Equal(d(tt.deposited)), "deposited got = %s", got.Deposited)
			assert.True(t, got.Earned.Equal(d(tt.earned)), "earned got = %s", got.Earned)
			assert.True(t, got.Balance.Equal(d(tt.balance)), "balance got = %s", got.Balance)
		})
	}
}

func TestWeighted(t *testing.T) {
	tests := []struct {
		name      string
		positions []model.Position
		expected  string
	}{
		{
			name:      "single position",
			positions: []model.Position{{Deposited: d("1000"), APY: d("0.05")}},
			expected:  "0.05",
		},
		{
			name: "multiple positions",
			positions: []model.Position{
				{Deposited: d("1000"), APY: d("0.05")},
				{Deposited: d("3000"), APY: d("0.1")},
			},
			expected: "0.0875", // (0.05*1000 + 0.1*3000)/4000
		},
		{
			name: "withdrawn positions ignored",
			positions: []model.Position{
				{Deposited: d("0"), APY: d("0.5")},
				{Deposited: d("100"), APY: d("0.08")},
			},
			expected: "0.08",
		},
		{
			name:      "empty input",
			positions: []model.Position{},
			expected:  "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Weighted(tt.positions)
			assert.True(t, got.Equal(d(tt.expected)), "Weighted() = %s, want %s", got, tt.expected)
		})
	}
}

func TestByProtocol(t *testing.T) {
	positions := []model.Position{
		{Protocol: "Vesu", Strategy: "A", Deposited: d("10"), Earned: d("1")},
		{Protocol: "Ekubo", Strategy: "B", Deposited: d("5")},
		{Protocol: "Vesu", Strategy: "C", Deposited: d("20"), Earned: d("2")},
	}

	got := ByProtocol(positions)
	require.Len(t, got, 2)
	assert.Equal(t, "Ekubo", got[0].Protocol)
	assert.Equal(t, "Vesu", got[1].Protocol)
	assert.True(t, got[1].Balance.Equal(d("33")))
}

func TestProjectedAnnualYield(t *testing.T) {
	positions := []model.Position{
		{Deposited: d("1000"), APY: d("0.085")},
		{Deposited: d("0"), APY: d("0.2")},
	}
	assert.True(t, ProjectedAnnualYield(positions).Equal(d("85")))
}
