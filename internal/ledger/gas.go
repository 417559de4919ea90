package ledger

import (
	"time"

	"github.com/yourorg/liquid-btc-yield/internal/model"
	"github.com/yourorg/liquid-btc-yield/internal/types"
)

// gasTable mirrors the fee estimates the wallet UI shows before signing
var gasTable = map[string]model.GasEstimate{
	"deposit":  {GasLimit: "85000", GasFee: "0.0034"},
	"withdraw": {GasLimit: "95000", GasFee: "0.0038"},
	"claim":    {GasLimit: "65000", GasFee: "0.0026"},
	"swap":     {GasLimit: "120000", GasFee: "0.0048"},
	"bridge":   {GasLimit: "150000", GasFee: "0.006"},
}

var defaultGas = model.GasEstimate{GasLimit: "100000", GasFee: "0.004"}

// EstimateGas returns the simulated cost of an operation; unknown operations get a generic estimate.
func EstimateGas(operation string) model.GasEstimate {
	if g, ok := gasTable[operation]; ok {
		return g
	}
	return defaultGas
}

// gasOperation maps a transaction kind to its gas table entry.
// Lightning payments settle off-chain and use no gas.
func gasOperation(k types.TxKind) (string, bool) {
	switch k {
	case types.KindDeposit:
		return "deposit", true
	case types.KindWithdraw:
		return "withdraw", true
	case types.KindYieldClaim:
		return "claim", true
	case types.KindSwap:
		return "swap", true
	case types.KindBridge:
		return "bridge", true
	}
	return "", false
}

// DefaultDelays are the simulated confirmation latencies per kind
func DefaultDelays() map[types.TxKind]time.Duration {
	return map[types.TxKind]time.Duration{
		types.KindDeposit:          3 * time.Second,
		types.KindWithdraw:         4 * time.Second,
		types.KindLightningPayment: 1 * time.Second,
		types.KindBridge:           10 * time.Second,
		types.KindYieldClaim:       2 * time.Second,
		types.KindSwap:             3 * time.Second,
	}
}
