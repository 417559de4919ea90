// Package ledger implements the in-memory yield and transaction simulator behind the dashboard.
package ledger

import "errors"

var (
	// ErrNotFound is returned when a strategy, position or transaction does not exist
	ErrNotFound = errors.New("not found")

	// ErrNotPending is returned when settling a transaction that already settled
	ErrNotPending = errors.New("transaction is not pending")

	// ErrUnsupportedPair is returned for swaps between tokens the simulator does not price
	ErrUnsupportedPair = errors.New("unsupported swap pair")

	// ErrClosed is returned by operations on a closed simulator
	ErrClosed = errors.New("simulator closed")
)
