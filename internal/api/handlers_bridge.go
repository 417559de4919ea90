package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type bridgeAddressRequest struct {
	StarknetAddress string `json:"starknetAddress" validate:"required"`
}

type bridgeQuoteRequest struct {
	Satoshis int64 `json:"satoshis" validate:"required,gt=0"`
}

func (s *Server) handleBridgeAddress(w http.ResponseWriter, r *http.Request) {
	var req bridgeAddressRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.deps.Bridge.DepositAddress(req.StarknetAddress)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleBridgeQuote(w http.ResponseWriter, r *http.Request) {
	var req bridgeQuoteRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	q, err := s.deps.Bridge.Quote(r.Context(), req.Satoshis)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleBridgeStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Bridge.Status(chi.URLParam(r, "swapId")))
}
