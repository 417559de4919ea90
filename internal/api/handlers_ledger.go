package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/liquid-btc-yield/internal/aggregate"
	"github.com/yourorg/liquid-btc-yield/internal/ledger"
	"github.com/yourorg/liquid-btc-yield/internal/model"
	"github.com/yourorg/liquid-btc-yield/internal/security"
	"github.com/yourorg/liquid-btc-yield/internal/types"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 500
)

type amountRequest struct {
	StrategyID string `json:"strategyId" validate:"required"`
	Amount     string `json:"amount" validate:"required"`
}

type claimRequest struct {
	Protocol string `json:"protocol" validate:"required"`
}

type paymentRequest struct {
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description,omitempty" validate:"max=256"`
}

type bridgeRequest struct {
	BTCAmount      string `json:"btcAmount" validate:"required"`
	DepositAddress string `json:"depositAddress" validate:"required"`
	SwapID         string `json:"swapId,omitempty"`
}

type swapRequest struct {
	FromToken string `json:"fromToken" validate:"required"`
	ToToken   string `json:"toToken" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
}

type positionsResponse struct {
	Positions  []model.Position           `json:"positions"`
	ByProtocol []aggregate.ProtocolTotals `json:"byProtocol"`
	Projected  string                     `json:"projectedAnnualYield"`
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Ledger.Strategies())
}

func (s *Server) handleStrategy(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Ledger.Strategy(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions := s.deps.Ledger.Positions()
	writeJSON(w, http.StatusOK, positionsResponse{
		Positions:  positions,
		ByProtocol: aggregate.ByProtocol(positions),
		Projected:  aggregate.ProjectedAnnualYield(positions).StringFixed(model.DisplayPlaces),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Ledger.Snapshot(s.deps.Ledger.Now()))
}

func (s *Server) handleGas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ledger.EstimateGas(chi.URLParam(r, "operation")))
}

// handleTransactions lists the log newest first.
// Query: limit, type (comma separated kinds), q (text search).
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := defaultTransactionLimit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.fail(w, r, fmt.Errorf("%w: invalid limit %q", errBadRequest, raw))
			return
		}
		limit = min(n, maxTransactionLimit)
	}

	var kinds []types.TxKind
	if raw := query.Get("type"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			k := types.TxKind(strings.TrimSpace(part))
			if !k.Valid() {
				s.fail(w, r, fmt.Errorf("%w: unknown transaction type %q", errBadRequest, part))
				return
			}
			kinds = append(kinds, k)
		}
	}

	txs := s.deps.Ledger.Filter(ledger.KindIs(kinds...), ledger.TextMatches(query.Get("q")))
	if len(txs) > limit {
		txs = txs[:limit]
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.deps.Ledger.Transaction(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// handleReceipt signs a settled transaction
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	tx, err := s.deps.Ledger.Transaction(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	receipt, err := s.deps.Receipts.Sign(tx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleVerifyReceipt reports whether a receipt is genuine and still valid
func (s *Server) handleVerifyReceipt(w http.ResponseWriter, r *http.Request) {
	var receipt security.Receipt
	if err := s.decode(r, &receipt); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.Receipts.Verify(receipt); err != nil {
		logrus.WithField("transaction", receipt.Payload.TransactionID).Debugf("Receipt rejected: %v", err)
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "signer": receipt.Signer})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	tx, err := s.deps.Ledger.ConfirmNow(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.accepted(w, r)(s.deps.Ledger.Deposit(req.StrategyID, req.Amount))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.accepted(w, r)(s.deps.Ledger.Withdraw(req.StrategyID, req.Amount))
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.accepted(w, r)(s.deps.Ledger.Claim(req.Protocol, s.deps.Ledger.Now()))
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.accepted(w, r)(s.deps.Ledger.Pay(req.Amount, req.Description))
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	var req bridgeRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.accepted(w, r)(s.deps.Ledger.Bridge(r.Context(), ledger.BridgeRequest{
		BTCAmount:      req.BTCAmount,
		DepositAddress: req.DepositAddress,
		SwapID:         req.SwapID,
	}))
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.accepted(w, r)(s.deps.Ledger.Swap(r.Context(), ledger.SwapRequest{
		FromToken: req.FromToken,
		ToToken:   req.ToToken,
		Amount:    req.Amount,
	}))
}

// accepted replies 202 with the pending transaction, or maps the error
func (s *Server) accepted(w http.ResponseWriter, r *http.Request) func(model.Transaction, error) {
	return func(tx model.Transaction, err error) {
		if err != nil {
			if errors.Is(err, ledger.ErrClosed) {
				logrus.Warn("Rejected operation on closed ledger")
			}
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, tx)
	}
}
