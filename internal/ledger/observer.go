package ledger

import "github.com/yourorg/liquid-btc-yield/internal/model"

// Observer is notified about ledger activity. Callbacks run after the simulator
// releases its lock and receive copies.
type Observer interface {
	TransactionRecorded(tx model.Transaction)
	TransactionSettled(tx model.Transaction)
}

// ObserverFuncs adapts plain functions to Observer; nil fields are skipped
type ObserverFuncs struct {
	Recorded func(tx model.Transaction)
	Settled  func(tx model.Transaction)
}

// TransactionRecorded implements Observer
func (o ObserverFuncs) TransactionRecorded(tx model.Transaction) {
	if o.Recorded != nil {
		o.Recorded(tx)
	}
}

// TransactionSettled implements Observer
func (o ObserverFuncs) TransactionSettled(tx model.Transaction) {
	if o.Settled != nil {
		o.Settled(tx)
	}
}
