package export

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/liquid-btc-yield/internal/model"
	"github.com/yourorg/liquid-btc-yield/internal/types"
)

type receiver struct {
	mu       sync.Mutex
	payloads []Payload
	auth     string
	status   int
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != 0 {
		w.WriteHeader(r.status)
		return
	}
	var p Payload
	if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	r.auth = req.Header.Get("Authorization")
	r.payloads = append(r.payloads, p)
}

func (r *receiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.payloads {
		n += p.Count
	}
	return n
}

func (r *receiver) setStatus(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = code
}

func settled(id string) model.Transaction {
	return model.Transaction{
		ID:     id,
		Kind:   types.KindDeposit,
		Amount: decimal.NewFromInt(100),
		Token:  "USDC",
		Status: types.StatusConfirmed,
	}
}

func TestExporter_FlushesFullBatch(t *testing.T) {
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	e, err := New(Config{Enabled: true, URL: srv.URL, APIKey: "secret", BatchSize: 2, Interval: time.Hour})
	require.NoError(t, err)
	defer e.Stop(context.Background())

	e.TransactionRecorded(settled("tx_1"))
	e.TransactionSettled(settled("tx_1"))
	assert.Equal(t, 1, e.Status().CurrentBatch)

	e.TransactionSettled(settled("tx_2"))

	assert.Eventually(t, func() bool { return rcv.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	rcv.mu.Lock()
	assert.Equal(t, "Bearer secret", rcv.auth)
	assert.Equal(t, "tx_1", rcv.payloads[0].Transactions[0].ID)
	rcv.mu.Unlock()
}

func TestExporter_StopFlushesRemainder(t *testing.T) {
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	e, err := New(Config{Enabled: true, URL: srv.URL, BatchSize: 10, Interval: time.Hour})
	require.NoError(t, err)

	e.TransactionSettled(settled("tx_1"))
	require.NoError(t, e.Stop(context.Background()))

	assert.Equal(t, 1, rcv.count())
	assert.Equal(t, 1, e.Status().Exported)
}

func TestExporter_FailedBatchIsRequeued(t *testing.T) {
	rcv := &receiver{status: http.StatusBadRequest}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	e, err := New(Config{Enabled: true, URL: srv.URL, BatchSize: 10, Interval: time.Hour})
	require.NoError(t, err)
	defer e.Stop(context.Background())

	e.TransactionSettled(settled("tx_1"))
	assert.Error(t, e.Flush(context.Background()))

	st := e.Status()
	assert.Equal(t, 1, st.CurrentBatch)
	assert.Equal(t, 1, st.Failures)
	assert.Contains(t, st.LastError, "400")

	rcv.setStatus(0)
	require.NoError(t, e.Flush(context.Background()))
	assert.Equal(t, 1, rcv.count())
	assert.Zero(t, e.Status().CurrentBatch)
}

func TestExporter_Disabled(t *testing.T) {
	e, err := New(Config{})
	require.NoError(t, err)

	e.TransactionSettled(settled("tx_1"))
	assert.NoError(t, e.Flush(context.Background()))
	assert.NoError(t, e.Stop(context.Background()))
	assert.Zero(t, e.Status().CurrentBatch)
}

func TestExporter_RequiresURL(t *testing.T) {
	_, err := New(Config{Enabled: true})
	assert.Error(t, err)
}
