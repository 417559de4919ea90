package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/liquid-btc-yield/internal/model"
	"github.com/yourorg/liquid-btc-yield/internal/types"
)

func TestTransactionLog_RecordIsImmediatelyVisible(t *testing.T) {
	l := NewTransactionLog(&SequenceIDs{})

	tx, err := l.Record(Entry{Kind: types.KindDeposit, Amount: dec("5"), Token: "USDC"}, epoch)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, tx.Status)

	list := l.List(0)
	require.Len(t, list, 1)
	assert.Equal(t, tx.ID, list[0].ID)
}

func TestTransactionLog_NewestFirst(t *testing.T) {
	l := NewTransactionLog(&SequenceIDs{})
	for i := 0; i < 5; i++ {
		_, err := l.Record(Entry{Kind: types.KindDeposit, Amount: dec("1")}, epoch)
		require.NoError(t, err)
	}

	list := l.List(3)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"tx_000005", "tx_000004", "tx_000003"}, ids(list))
}

func TestTransactionLog_SettleOnce(t *testing.T) {
	l := NewTransactionLog(&SequenceIDs{})
	tx, err := l.Record(Entry{Kind: types.KindLightningPayment, Metadata: map[string]any{"invoice": "x"}}, epoch)
	require.NoError(t, err)

	settled, err := l.Settle(tx.ID, Settlement{
		Status:   types.StatusConfirmed,
		TxHash:   "0xabc",
		At:       epoch,
		Metadata: map[string]any{"preimage": "p"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusConfirmed, settled.Status)
	assert.Equal(t, "x", settled.Metadata["invoice"])
	assert.Equal(t, "p", settled.Metadata["preimage"])

	_, err = l.Settle(tx.ID, Settlement{Status: types.StatusFailed})
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = l.Settle("missing", Settlement{Status: types.StatusConfirmed})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransactionLog_SettleRejectsPendingStatus(t *testing.T) {
	l := NewTransactionLog(&SequenceIDs{})
	tx, err := l.Record(Entry{Kind: types.KindDeposit}, epoch)
	require.NoError(t, err)

	_, err = l.Settle(tx.ID, Settlement{Status: types.StatusPending})
	assert.Error(t, err)
}

func TestTransactionLog_GetReturnsCopy(t *testing.T) {
	l := NewTransactionLog(&SequenceIDs{})
	tx, err := l.Record(Entry{Kind: types.KindBridge, Metadata: map[string]any{"k": "v"}}, epoch)
	require.NoError(t, err)

	got, err := l.Get(tx.ID)
	require.NoError(t, err)
	got.Metadata["k"] = "changed"

	again, err := l.Get(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "v", again.Metadata["k"])
}

func TestTransactionLog_Filter(t *testing.T) {
	l := NewTransactionLog(&SequenceIDs{})
	entries := []Entry{
		{Kind: types.KindDeposit, Protocol: "Vesu", Description: "Deposit 10 USDC to USDC Lending"},
		{Kind: types.KindLightningPayment, Token: "BTC", Description: "Coffee"},
		{Kind: types.KindDeposit, Protocol: "Nostra", Description: "Deposit 50 USDC to Stable LP Farming"},
		{Kind: types.KindBridge, Token: "BTC", Description: "Bridge 0.1 BTC"},
	}
	for _, e := range entries {
		_, err := l.Record(e, epoch)
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		kind  func(types.TxKind) bool
		text  func(model.Transaction) bool
		count int
	}{
		{name: "everything", count: 4},
		{name: "deposits", kind: KindIs(types.KindDeposit), count: 2},
		{name: "text case insensitive", text: TextMatches("nostra"), count: 1},
		{name: "kind and text", kind: KindIs(types.KindDeposit, types.KindBridge), text: TextMatches("btc"), count: 1},
		{name: "empty query", text: TextMatches("  "), count: 4},
		{name: "no match", text: TextMatches("ekubo"), count: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.Filter(tt.kind, tt.text)
			assert.Len(t, got, tt.count)
		})
	}
}

func ids(txs []model.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}
