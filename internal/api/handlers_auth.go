package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yourorg/liquid-btc-yield/internal/auth"
)

type registerOptionsRequest struct {
	Name string `json:"name,omitempty" validate:"max=64"`
}

type sponsorRequest struct {
	Account string `json:"account" validate:"required,startswith=0x"`
	Calls   []call `json:"calls" validate:"required,min=1,dive"`
}

type call struct {
	ContractAddress string   `json:"contractAddress" validate:"required"`
	Entrypoint      string   `json:"entrypoint" validate:"required"`
	Calldata        []string `json:"calldata,omitempty"`
}

type sponsorResponse struct {
	TransactionHash string            `json:"transactionHash"`
	FeeMode         map[string]string `json:"feeMode"`
	Account         string            `json:"account"`
	CallCount       int               `json:"callCount"`
	SponsoredAt     time.Time         `json:"sponsoredAt"`
}

// handleLogin authenticates social, passkey and xverse logins
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.deps.Auth.Login(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleSession decodes the bearer session token
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	user, claims, err := s.bearer(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := map[string]any{"user": user}
	if claims.ExpiresAt != nil {
		resp["expiresAt"] = claims.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) bearer(r *http.Request) (auth.User, *auth.Claims, error) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return auth.User{}, nil, fmt.Errorf("%w: missing bearer token", auth.ErrAuthFailed)
	}
	return s.deps.Auth.Sessions().Parse(strings.TrimSpace(token))
}

func (s *Server) handleRegisterOptions(w http.ResponseWriter, r *http.Request) {
	var req registerOptionsRequest
	if r.ContentLength != 0 {
		if err := s.decode(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.deps.Auth.Passkeys().RegisterOptions(req.Name))
}

func (s *Server) handleRegisterVerify(w http.ResponseWriter, r *http.Request) {
	s.verifyCeremony(w, r, s.deps.Auth.Passkeys().VerifyRegistration)
}

func (s *Server) handleAuthOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.deps.Auth.Passkeys().AuthOptions()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	s.verifyCeremony(w, r, s.deps.Auth.Passkeys().VerifyAuthentication)
}

// verifyCeremony completes a passkey ceremony and logs the user in
func (s *Server) verifyCeremony(w http.ResponseWriter, r *http.Request, verify func(auth.CeremonyResponse) (auth.User, error)) {
	var req auth.CeremonyResponse
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	user, err := verify(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.deps.Auth.Issue(user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verified": true,
		"session":  sess,
	})
}

// handleSponsor accepts calls for gasless execution and returns a pseudo hash
func (s *Server) handleSponsor(w http.ResponseWriter, r *http.Request) {
	var req sponsorRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sponsorResponse{
		TransactionHash: s.deps.Settlement.TxHash(),
		FeeMode:         map[string]string{"mode": "sponsored"},
		Account:         req.Account,
		CallCount:       len(req.Calls),
		SponsoredAt:     time.Now().UTC(),
	})
}
