package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourorg/liquid-btc-yield/internal/model"
	"github.com/yourorg/liquid-btc-yield/internal/types"
)

const day = 24 * time.Hour

type seedTx struct {
	entry   Entry
	age     time.Duration
	hash    string
	block   uint64
	gas     string
	pending bool
}

// seed preloads the demo portfolio: two open positions and five historical transactions.
func (s *Simulator) seed(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.book.restore(model.Position{
		Protocol:   "Vesu",
		Strategy:   "USDC Lending",
		Deposited:  decimal.RequireFromString("2500.00"),
		Earned:     decimal.RequireFromString("34.22"),
		APY:        decimal.RequireFromString("0.085"),
		LastUpdate: now.Add(-3 * day),
	})
	s.book.restore(model.Position{
		Protocol:   "Nostra",
		Strategy:   "Stable LP Farming",
		Deposited:  decimal.RequireFromString("1200.00"),
		Earned:     decimal.RequireFromString("18.95"),
		APY:        decimal.RequireFromString("0.128"),
		LastUpdate: now.Add(-1 * day),
	})

	history := []seedTx{
		{
			entry: Entry{
				Kind:        types.KindBridge,
				Amount:      decimal.RequireFromString("0.05834"),
				Token:       "BTC",
				Description: "Bridge BTC to Starknet via Atomiq",
				Metadata: map[string]any{
					"fromAddress":  "bc1q...xyz",
					"toAddress":    "0x...abc",
					MetaActualUSDC: "3800.00",
				},
			},
			age:   5 * day,
			hash:  "0x1a2b3c4d5e6f789abcdef123456789",
			block: 123456,
			gas:   "0.0023",
		},
		{
			entry: Entry{
				Kind:        types.KindDeposit,
				Amount:      decimal.RequireFromString("2500.00"),
				Token:       "USDC",
				Protocol:    "Vesu",
				Description: "Deposit USDC to Vesu lending pool",
				Metadata:    map[string]any{MetaStrategyID: "vesu-usdc-lending"},
			},
			age:  4 * day,
			hash: "0x2b3c4d5e6f789abcdef123456789ab",
		},
		{
			entry: Entry{
				Kind:        types.KindDeposit,
				Amount:      decimal.RequireFromString("1200.00"),
				Token:       "USDC",
				Protocol:    "Nostra",
				Description: "Add liquidity to Nostra USDC/USDT pool",
				Metadata:    map[string]any{MetaStrategyID: "nostra-stable-farm"},
			},
			age:  2 * day,
			hash: "0x3c4d5e6f789abcdef123456789abc1",
		},
		{
			entry: Entry{
				Kind:        types.KindLightningPayment,
				Amount:      decimal.RequireFromString("0.00012"),
				Token:       "BTC",
				Description: "Lightning payment to coffee shop",
				Metadata:    map[string]any{MetaInvoice: "lnbc...", MetaPreimage: "..."},
			},
			age: 1 * day,
		},
		{
			entry: Entry{
				Kind:        types.KindYieldClaim,
				Amount:      decimal.RequireFromString("12.34"),
				Token:       "USDC",
				Protocol:    "Vesu",
				Description: "Claim accrued lending yield from Vesu",
			},
			age:     time.Hour,
			pending: true,
		},
	}

	for _, h := range history {
		at := now.Add(-h.age)
		tx, err := s.log.Record(h.entry, at)
		if err != nil {
			return err
		}
		if h.pending {
			s.schedule(tx.ID, tx.Kind)
			continue
		}
		if _, err := s.log.Settle(tx.ID, Settlement{
			Status:      types.StatusConfirmed,
			TxHash:      h.hash,
			BlockNumber: h.block,
			GasUsed:     h.gas,
			At:          at,
		}); err != nil {
			return err
		}
	}
	return nil
}
