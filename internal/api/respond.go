package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/liquid-btc-yield/internal/auth"
	"github.com/yourorg/liquid-btc-yield/internal/bridge"
	"github.com/yourorg/liquid-btc-yield/internal/catalog"
	"github.com/yourorg/liquid-btc-yield/internal/circuitbreaker"
	"github.com/yourorg/liquid-btc-yield/internal/ledger"
	"github.com/yourorg/liquid-btc-yield/internal/otel"
	"github.com/yourorg/liquid-btc-yield/internal/security"
	"github.com/yourorg/liquid-btc-yield/internal/validation"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks malformed or invalid request bodies
var errBadRequest = errors.New("bad request")

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Status     string `json:"status"`
	Error      string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("Failed to encode response: %v", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, statusCode int, msg string) {
	logrus.WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"status": statusCode,
	}).Warn(msg)

	writeJSON(w, statusCode, ErrorResponse{
		StatusCode: statusCode,
		Status:     "error",
		Error:      msg,
	})
}

// fail maps err to a status code and records it on the request span
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	otel.RecordError(r.Context(), err)
	s.errorResponse(w, r, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, auth.ErrNoCredentials):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, validation.ErrInvalidAmount),
		errors.Is(err, validation.ErrBelowMinimum),
		errors.Is(err, ledger.ErrUnsupportedPair),
		errors.Is(err, bridge.ErrInvalidAccount),
		errors.Is(err, auth.ErrUnsupportedMethod),
		errors.Is(err, auth.ErrUnknownChallenge):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrAuthFailed),
		errors.Is(err, auth.ErrUnknownCredential),
		errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrNotPending),
		errors.Is(err, security.ErrNotSettled):
		return http.StatusConflict
	case errors.Is(err, circuitbreaker.ErrOpen),
		errors.Is(err, ledger.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into dst and validates its struct tags
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: field %s failed %q", errBadRequest, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
