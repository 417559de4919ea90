package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourorg/liquid-btc-yield/internal/model"
	"github.com/yourorg/liquid-btc-yield/internal/types"
)

// Entry is what a caller supplies when recording a transaction
type Entry struct {
	Kind        types.TxKind
	Amount      decimal.Decimal
	Token       string
	Protocol    string
	Description string
	Metadata    map[string]any
}

// Settlement describes how a pending transaction settles
type Settlement struct {
	Status      types.TxStatus
	TxHash      string
	BlockNumber uint64
	GasUsed     string
	At          time.Time

	// Metadata is merged into the transaction metadata
	Metadata map[string]any
}

// TransactionLog is the append-only record of simulated operations.
// It is not safe for concurrent use; Simulator serialises access.
type TransactionLog struct {
	ids IDGenerator

	// entries are kept in insertion order, reads reverse them
	entries []*model.Transaction
	byID    map[string]*model.Transaction
}

// NewTransactionLog creates an empty log
func NewTransactionLog(ids IDGenerator) *TransactionLog {
	return &TransactionLog{
		ids:  ids,
		byID: make(map[string]*model.Transaction),
	}
}

// Record appends a pending transaction at the head of the log and returns the stored entry.
// The returned pointer is shared with the log.
func (l *TransactionLog) Record(e Entry, at time.Time) (*model.Transaction, error) {
	id, err := l.ids.NextID()
	if err != nil {
		return nil, err
	}
	if _, dup := l.byID[id]; dup {
		return nil, fmt.Errorf("duplicate transaction id %s", id)
	}

	tx := &model.Transaction{
		ID:          id,
		Kind:        e.Kind,
		Amount:      e.Amount,
		Token:       e.Token,
		Protocol:    e.Protocol,
		Status:      types.StatusPending,
		CreatedAt:   at,
		Description: e.Description,
		Metadata:    e.Metadata,
	}

	l.entries = append(l.entries, tx)
	l.byID[id] = tx
	return tx, nil
}

// Settle moves a pending transaction to its terminal status
func (l *TransactionLog) Settle(id string, s Settlement) (*model.Transaction, error) {
	tx, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	if tx.Status != types.StatusPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, id, tx.Status)
	}
	if !s.Status.Terminal() {
		return nil, fmt.Errorf("cannot settle %s to %q", id, s.Status)
	}

	tx.Status = s.Status
	tx.TxHash = s.TxHash
	tx.BlockNumber = s.BlockNumber
	tx.GasUsed = s.GasUsed
	tx.SettledAt = s.At
	if len(s.Metadata) > 0 {
		if tx.Metadata == nil {
			tx.Metadata = make(map[string]any, len(s.Metadata))
		}
		for k, v := range s.Metadata {
			tx.Metadata[k] = v
		}
	}
	return tx, nil
}

// Get returns a copy of the transaction with the given id
func (l *TransactionLog) Get(id string) (model.Transaction, error) {
	tx, ok := l.byID[id]
	if !ok {
		return model.Transaction{}, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	return tx.Clone(), nil
}

// List returns up to limit transactions, newest first. A limit <= 0 returns everything.
func (l *TransactionLog) List(limit int) []model.Transaction {
	n := len(l.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.Transaction, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.entries[i].Clone())
	}
	return out
}

// Filter returns the transactions accepted by both predicates, newest first.
// A nil predicate accepts everything.
func (l *TransactionLog) Filter(kind func(types.TxKind) bool, text func(model.Transaction) bool) []model.Transaction {
	var out []model.Transaction
	for i := len(l.entries) - 1; i >= 0; i-- {
		tx := l.entries[i]
		if kind != nil && !kind(tx.Kind) {
			continue
		}
		if text != nil && !text(*tx) {
			continue
		}
		out = append(out, tx.Clone())
	}
	return out
}

// Len returns the number of recorded transactions
func (l *TransactionLog) Len() int {
	return len(l.entries)
}

// Pending returns the ids of transactions still pending, oldest first
func (l *TransactionLog) Pending() []string {
	var ids []string
	for _, tx := range l.entries {
		if tx.Status == types.StatusPending {
			ids = append(ids, tx.ID)
		}
	}
	return ids
}

// KindIs builds a kind predicate; with no kinds it accepts everything
func KindIs(kinds ...types.TxKind) func(types.TxKind) bool {
	if len(kinds) == 0 {
		return nil
	}
	return func(k types.TxKind) bool {
		for _, want := range kinds {
			if k == want {
				return true
			}
		}
		return false
	}
}

// TextMatches builds a case-insensitive search over description, protocol, token and id.
// An empty query accepts everything.
func TextMatches(query string) func(model.Transaction) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	return func(tx model.Transaction) bool {
		for _, field := range []string{tx.Description, tx.Protocol, tx.Token, tx.ID, string(tx.Kind)} {
			if strings.Contains(strings.ToLower(field), q) {
				return true
			}
		}
		return false
	}
}
