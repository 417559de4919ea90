package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/liquid-btc-yield/internal/catalog"
	"github.com/yourorg/liquid-btc-yield/internal/model"
	"github.com/yourorg/liquid-btc-yield/internal/types"
	"github.com/yourorg/liquid-btc-yield/internal/validation"
)

// Metadata keys written by the simulator
const (
	MetaStrategyID     = "strategyId"
	MetaSwapID         = "swapId"
	MetaDepositAddress = "depositAddress"
	MetaExpectedUSDC   = "expectedUSDC"
	MetaActualUSDC     = "actualUSDC"
	MetaBridgeProvider = "bridgeProvider"
	MetaInvoice        = "invoice"
	MetaRoute          = "route"
	MetaPreimage       = "preimage"
	MetaFromToken      = "fromToken"
	MetaToToken        = "toToken"
	MetaRate           = "rate"
	MetaExpectedOut    = "expectedOut"
	MetaAmountOut      = "amountOut"
	MetaFailureReason  = "failureReason"
)

// PriceSource quotes the BTC/USD reference price
type PriceSource interface {
	BTCUSD(ctx context.Context) (decimal.Decimal, error)
}

// FixedPrice is a PriceSource that never changes
type FixedPrice struct {
	Price decimal.Decimal
}

// BTCUSD implements PriceSource
func (f FixedPrice) BTCUSD(context.Context) (decimal.Decimal, error) {
	return f.Price, nil
}

// SwapChecker reports whether a bridge swap went through
type SwapChecker interface {
	SwapOutcome(swapID string) (ok bool, reason string)
}

// Options configures a Simulator. Zero values select the defaults.
type Options struct {
	// Clock supplies the current time; defaults to time.Now
	Clock func() time.Time

	// Scheduler runs delayed confirmations; defaults to TimerScheduler
	Scheduler Scheduler

	// IDs generates transaction ids; defaults to Sonyflake with machine id 1
	IDs IDGenerator

	// Settlement supplies hashes, block numbers and invoices; defaults to RandomSettlement
	Settlement SettlementSource

	// Prices quotes BTC/USD for bridges and swaps; defaults to 65000
	Prices PriceSource

	// Swaps decides bridge outcomes; nil confirms every bridge
	Swaps SwapChecker

	Observers []Observer

	// Delays overrides per-kind confirmation latency
	Delays map[types.TxKind]time.Duration

	// DelayScale multiplies every delay, 0 means 1
	DelayScale float64

	// RecentLimit is the number of transactions on the dashboard, default 10
	RecentLimit int

	// BTCBalance and USDCBalance are the placeholder wallet balances shown on the dashboard
	BTCBalance  string
	USDCBalance string

	// Seed preloads demo positions and history
	Seed bool
}

// DefaultBTCPrice is the reference price used when no feed is configured
var DefaultBTCPrice = decimal.NewFromInt(65000)

// Simulator owns the strategy catalog, position book and transaction log.
// All mutation happens under one mutex so each operation is a single step.
type Simulator struct {
	mu sync.Mutex

	catalog *catalog.Catalog
	book    *PositionBook
	log     *TransactionLog

	clock      func() time.Time
	scheduler  Scheduler
	settlement SettlementSource
	prices     PriceSource
	swaps      SwapChecker
	observers  []Observer
	delays     map[types.TxKind]time.Duration

	recentLimit int
	btcBalance  string
	usdcBalance string

	pending map[string]Cancel
	closed  bool
}

// New creates a simulator over the given catalog
func New(cat *catalog.Catalog, opts Options) (*Simulator, error) {
	if cat == nil {
		return nil, errors.New("catalog is required")
	}

	s := &Simulator{
		catalog:     cat,
		book:        NewPositionBook(),
		clock:       opts.Clock,
		scheduler:   opts.Scheduler,
		settlement:  opts.Settlement,
		prices:      opts.Prices,
		swaps:       opts.Swaps,
		observers:   opts.Observers,
		recentLimit: opts.RecentLimit,
		btcBalance:  opts.BTCBalance,
		usdcBalance: opts.USDCBalance,
		pending:     make(map[string]Cancel),
	}

	if s.clock == nil {
		s.clock = time.Now
	}
	if s.scheduler == nil {
		s.scheduler = TimerScheduler{}
	}
	if s.settlement == nil {
		s.settlement = RandomSettlement{}
	}
	if s.prices == nil {
		s.prices = FixedPrice{Price: DefaultBTCPrice}
	}
	if s.recentLimit <= 0 {
		s.recentLimit = 10
	}
	if s.btcBalance == "" {
		s.btcBalance = "0.08734"
	}
	if s.usdcBalance == "" {
		s.usdcBalance = "127.45"
	}

	ids := opts.IDs
	if ids == nil {
		sf, err := NewSonyflakeIDs(1)
		if err != nil {
			return nil, err
		}
		ids = sf
	}
	s.log = NewTransactionLog(ids)

	scale := opts.DelayScale
	if scale <= 0 {
		scale = 1
	}
	s.delays = DefaultDelays()
	for k, d := range opts.Delays {
		s.delays[k] = d
	}
	for k, d := range s.delays {
		s.delays[k] = time.Duration(float64(d) * scale)
	}

	if opts.Seed {
		if err := s.seed(s.clock()); err != nil {
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"strategies": cat.Len(),
		"seeded":     opts.Seed,
		"scale":      scale,
	}).Info("Ledger simulator initialized")

	return s, nil
}

// Now returns the simulator clock reading
func (s *Simulator) Now() time.Time {
	return s.clock()
}

// Strategies lists the catalog
func (s *Simulator) Strategies() []model.StrategyDescriptor {
	return s.catalog.List()
}

// Strategy looks one strategy up
func (s *Simulator) Strategy(id string) (model.StrategyDescriptor, error) {
	st, err := s.catalog.Find(id)
	if err != nil {
		return model.StrategyDescriptor{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return st, nil
}

// Deposit records a pending deposit; the position grows once it confirms.
func (s *Simulator) Deposit(strategyID, rawAmount string) (model.Transaction, error) {
	strategy, err := s.Strategy(strategyID)
	if err != nil {
		return model.Transaction{}, err
	}
	amount, err := validation.ParseAmount(rawAmount)
	if err != nil {
		return model.Transaction{}, err
	}
	if err := validation.CheckMinimumDeposit(strategy, amount); err != nil {
		return model.Transaction{}, err
	}

	return s.submit(s.clock(), func() (Entry, error) {
		return Entry{
			Kind:        types.KindDeposit,
			Amount:      amount,
			Token:       "USDC",
			Protocol:    strategy.Protocol,
			Description: fmt.Sprintf("Deposit %s USDC to %s", amount, strategy.Name),
			Metadata:    map[string]any{MetaStrategyID: strategy.ID},
		}, nil
	})
}

// Withdraw records a pending withdrawal from an existing position.
// Withdrawing more than deposited empties the position.
func (s *Simulator) Withdraw(strategyID, rawAmount string) (model.Transaction, error) {
	strategy, err := s.Strategy(strategyID)
	if err != nil {
		return model.Transaction{}, err
	}
	amount, err := validation.ParseAmount(rawAmount)
	if err != nil {
		return model.Transaction{}, err
	}

	return s.submit(s.clock(), func() (Entry, error) {
		if !s.book.Has(strategy) {
			return Entry{}, fmt.Errorf("%w: no position in %s", ErrNotFound, strategy.ID)
		}
		return Entry{
			Kind:        types.KindWithdraw,
			Amount:      amount,
			Token:       "USDC",
			Protocol:    strategy.Protocol,
			Description: fmt.Sprintf("Withdraw %s USDC from %s", amount, strategy.Name),
			Metadata:    map[string]any{MetaStrategyID: strategy.ID},
		}, nil
	})
}

// Claim settles accrual up to now and moves the protocol's earned yield into a
// pending yield_claim transaction. Earned is reset immediately so a second claim yields zero.
func (s *Simulator) Claim(protocol string, now time.Time) (model.Transaction, error) {
	return s.submit(now, func() (Entry, error) {
		if !s.book.HasProtocol(protocol) {
			return Entry{}, fmt.Errorf("%w: no position in %s", ErrNotFound, protocol)
		}
		s.book.AccrueYield(now)
		claimed, err := s.book.Claim(protocol)
		if err != nil {
			return Entry{}, err
		}
		amount := claimed.Round(model.DisplayPlaces)
		return Entry{
			Kind:        types.KindYieldClaim,
			Amount:      amount,
			Token:       "USDC",
			Protocol:    protocol,
			Description: fmt.Sprintf("Claim %s USDC rewards from %s", amount.StringFixed(model.DisplayPlaces), protocol),
		}, nil
	})
}

// Pay records a Lightning payment in BTC
func (s *Simulator) Pay(rawAmount, description string) (model.Transaction, error) {
	amount, err := validation.ParseAmount(rawAmount)
	if err != nil {
		return model.Transaction{}, err
	}
	if strings.TrimSpace(description) == "" {
		description = "Lightning payment"
	}

	return s.submit(s.clock(), func() (Entry, error) {
		return Entry{
			Kind:        types.KindLightningPayment,
			Amount:      amount,
			Token:       "BTC",
			Description: description,
			Metadata: map[string]any{
				MetaInvoice: s.settlement.Invoice(),
				MetaRoute:   []string{"Node A", "Node B", "Destination"},
			},
		}, nil
	})
}

// BridgeRequest describes a BTC deposit bridged to Starknet USDC
type BridgeRequest struct {
	BTCAmount      string
	DepositAddress string
	SwapID         string
}

// Bridge records a pending BTC to USDC bridge at the current reference price
func (s *Simulator) Bridge(ctx context.Context, req BridgeRequest) (model.Transaction, error) {
	amount, err := validation.ParseAmount(req.BTCAmount)
	if err != nil {
		return model.Transaction{}, err
	}
	price, err := s.prices.BTCUSD(ctx)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to price bridge: %w", err)
	}
	usdc := amount.Mul(price).StringFixed(model.DisplayPlaces)

	return s.submit(s.clock(), func() (Entry, error) {
		md := map[string]any{
			MetaDepositAddress: req.DepositAddress,
			MetaExpectedUSDC:   usdc,
			MetaBridgeProvider: "Atomiq",
		}
		if req.SwapID != "" {
			md[MetaSwapID] = req.SwapID
		}
		return Entry{
			Kind:        types.KindBridge,
			Amount:      amount,
			Token:       "BTC",
			Description: fmt.Sprintf("Bridge %s BTC to Starknet USDC", amount),
			Metadata:    md,
		}, nil
	})
}

// SwapRequest converts between BTC and USDC
type SwapRequest struct {
	FromToken string
	ToToken   string
	Amount    string
}

// Swap records a pending BTC/USDC swap at the current reference price
func (s *Simulator) Swap(ctx context.Context, req SwapRequest) (model.Transaction, error) {
	from := strings.ToUpper(strings.TrimSpace(req.FromToken))
	to := strings.ToUpper(strings.TrimSpace(req.ToToken))

	amount, err := validation.ParseAmount(req.Amount)
	if err != nil {
		return model.Transaction{}, err
	}
	price, err := s.prices.BTCUSD(ctx)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to price swap: %w", err)
	}
	if !price.IsPositive() {
		return model.Transaction{}, fmt.Errorf("invalid BTC price %s", price)
	}

	var out string
	switch {
	case from == "BTC" && to == "USDC":
		out = amount.Mul(price).StringFixed(model.DisplayPlaces)
	case from == "USDC" && to == "BTC":
		out = amount.DivRound(price, 8).StringFixed(8)
	default:
		return model.Transaction{}, fmt.Errorf("%w: %s/%s", ErrUnsupportedPair, req.FromToken, req.ToToken)
	}

	return s.submit(s.clock(), func() (Entry, error) {
		return Entry{
			Kind:        types.KindSwap,
			Amount:      amount,
			Token:       from,
			Description: fmt.Sprintf("Swap %s %s to %s", amount, from, to),
			Metadata: map[string]any{
				MetaFromToken:   from,
				MetaToToken:     to,
				MetaRate:        price.String(),
				MetaExpectedOut: out,
			},
		}, nil
	})
}

// Transaction returns one transaction by id
func (s *Simulator) Transaction(id string) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Get(id)
}

// Transactions returns up to limit transactions, newest first
func (s *Simulator) Transactions(limit int) []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.List(limit)
}

// Filter searches the log, newest first
func (s *Simulator) Filter(kind func(types.TxKind) bool, text func(model.Transaction) bool) []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Filter(kind, text)
}

// Positions returns the positions without settling accrual
func (s *Simulator) Positions() []model.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.List()
}

// AccrueYield settles simple interest up to now
func (s *Simulator) AccrueYield(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.book.AccrueYield(now)
}

// PendingCount returns the number of transactions awaiting confirmation
func (s *Simulator) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.log.Pending())
}

// ConfirmNow settles a pending transaction immediately and cancels its timer
func (s *Simulator) ConfirmNow(id string) (model.Transaction, error) {
	return s.settle(id)
}

// Close cancels every scheduled confirmation. Pending transactions stay pending.
func (s *Simulator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, cancel := range s.pending {
		cancel()
		delete(s.pending, id)
	}
	logrus.Info("Ledger simulator closed")
}

// submit records the entry built by prepare and schedules its confirmation.
// prepare runs under the lock so its checks and the insert are one step.
func (s *Simulator) submit(at time.Time, prepare func() (Entry, error)) (model.Transaction, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Transaction{}, ErrClosed
	}

	entry, err := prepare()
	if err != nil {
		s.mu.Unlock()
		return model.Transaction{}, err
	}
	tx, err := s.log.Record(entry, at)
	if err != nil {
		s.mu.Unlock()
		return model.Transaction{}, err
	}
	s.schedule(tx.ID, tx.Kind)
	recorded := tx.Clone()
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"id":       recorded.ID,
		"kind":     recorded.Kind,
		"amount":   recorded.Amount.String(),
		"token":    recorded.Token,
		"protocol": recorded.Protocol,
	}).Info("Transaction recorded")

	for _, o := range s.observers {
		o.TransactionRecorded(recorded)
	}
	return recorded, nil
}

// schedule must be called with s.mu held
func (s *Simulator) schedule(id string, kind types.TxKind) {
	delay := s.delays[kind]
	s.pending[id] = s.scheduler.Schedule(delay, func() {
		if _, err := s.settle(id); err != nil && !errors.Is(err, ErrNotPending) && !errors.Is(err, ErrClosed) {
			logrus.Warnf("Scheduled confirmation of %s failed: %v", id, err)
		}
	})
}

func (s *Simulator) settle(id string) (model.Transaction, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Transaction{}, ErrClosed
	}

	tx, ok := s.log.byID[id]
	if !ok {
		s.mu.Unlock()
		return model.Transaction{}, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	if tx.Status != types.StatusPending {
		s.mu.Unlock()
		return model.Transaction{}, fmt.Errorf("%w: %s is %s", ErrNotPending, id, tx.Status)
	}
	if cancel, ok := s.pending[id]; ok {
		cancel()
		delete(s.pending, id)
	}

	now := s.clock()
	settled, err := s.log.Settle(id, s.settlementFor(*tx, now))
	if err != nil {
		s.mu.Unlock()
		return model.Transaction{}, err
	}
	out := settled.Clone()
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"id":     out.ID,
		"kind":   out.Kind,
		"status": out.Status,
		"hash":   out.TxHash,
	}).Info("Transaction settled")

	for _, o := range s.observers {
		o.TransactionSettled(out)
	}
	return out, nil
}

// settlementFor applies the side effects of a confirmation and describes the result.
// Must be called with s.mu held.
func (s *Simulator) settlementFor(tx model.Transaction, now time.Time) Settlement {
	st := Settlement{Status: types.StatusConfirmed, At: now}
	if op, ok := gasOperation(tx.Kind); ok {
		st.TxHash = s.settlement.TxHash()
		st.BlockNumber = s.settlement.BlockNumber()
		st.GasUsed = EstimateGas(op).GasFee
	}

	fail := func(reason string) Settlement {
		logrus.WithFields(logrus.Fields{"id": tx.ID, "kind": tx.Kind}).Warnf("Transaction failed: %s", reason)
		return Settlement{
			Status:   types.StatusFailed,
			At:       now,
			Metadata: map[string]any{MetaFailureReason: reason},
		}
	}

	switch tx.Kind {
	case types.KindDeposit, types.KindWithdraw:
		strategyID, _ := tx.Metadata[MetaStrategyID].(string)
		strategy, err := s.catalog.Find(strategyID)
		if err != nil {
			return fail(err.Error())
		}
		if tx.Kind == types.KindDeposit {
			s.book.ApplyDeposit(strategy, tx.Amount, now)
		} else if err := s.book.ApplyWithdrawal(strategy, tx.Amount, now); err != nil {
			return fail(err.Error())
		}

	case types.KindLightningPayment:
		st.TxHash = s.settlement.TxHash()
		st.Metadata = map[string]any{MetaPreimage: s.settlement.Preimage()}

	case types.KindBridge:
		if swapID, _ := tx.Metadata[MetaSwapID].(string); swapID != "" && s.swaps != nil {
			if ok, reason := s.swaps.SwapOutcome(swapID); !ok {
				return fail(reason)
			}
		}
		st.Metadata = map[string]any{MetaActualUSDC: tx.Metadata[MetaExpectedUSDC]}

	case types.KindSwap:
		st.Metadata = map[string]any{MetaAmountOut: tx.Metadata[MetaExpectedOut]}
	}

	return st
}
