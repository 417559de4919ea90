// Package api exposes the ledger simulator and the demo auth, bridge and
// paymaster stubs over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/liquid-btc-yield/internal/auth"
	"github.com/yourorg/liquid-btc-yield/internal/bridge"
	"github.com/yourorg/liquid-btc-yield/internal/circuitbreaker"
	"github.com/yourorg/liquid-btc-yield/internal/export"
	"github.com/yourorg/liquid-btc-yield/internal/ledger"
	"github.com/yourorg/liquid-btc-yield/internal/security"
)

// Version is reported by /health and /status
const Version = "1.0.0"

// Options configures the HTTP layer
type Options struct {
	Port           string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
	CORSOrigins    []string

	// DevMode registers POST /transactions/{id}/confirm
	DevMode bool
}

// Deps are the services behind the handlers. Exporter and Breaker may be nil.
type Deps struct {
	Ledger   *ledger.Simulator
	Bridge   *bridge.Service
	Auth     *auth.Service
	Receipts *security.ReceiptSigner
	Exporter *export.Exporter
	Breaker  *circuitbreaker.CircuitBreaker
	Metrics  *Metrics

	// Settlement supplies pseudo transaction hashes for the paymaster
	Settlement ledger.SettlementSource
}

// Server serves the API
type Server struct {
	opts      Options
	deps      Deps
	validate  *validator.Validate
	limiter   *rate.Limiter
	startTime time.Time
	server    *http.Server
}

// NewServer creates a server; call Handler or Start
func NewServer(opts Options, deps Deps) (*Server, error) {
	if deps.Ledger == nil || deps.Bridge == nil || deps.Auth == nil || deps.Receipts == nil {
		return nil, errors.New("ledger, bridge, auth and receipts are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if deps.Settlement == nil {
		deps.Settlement = ledger.RandomSettlement{}
	}
	if opts.Port == "" {
		opts.Port = "8080"
	}

	s := &Server{
		opts:      opts,
		deps:      deps,
		validate:  validator.New(),
		startTime: time.Now(),
	}
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
		logrus.Infof("Rate limiting initialized: %v req/s, burst: %d", opts.RateLimitRPS, burst)
	}

	logrus.WithFields(logrus.Fields{
		"port":       opts.Port,
		"dev_mode":   opts.DevMode,
		"strategies": len(deps.Ledger.Strategies()),
		"exporter":   deps.Exporter != nil,
		"signer":     deps.Receipts.Address(),
	}).Info("Server initialized")

	return s, nil
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.instrument)
	r.Use(s.rateLimit)
	if s.opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	r.Get("/circuit", s.handleCircuit)
	r.Post("/circuit", s.handleCircuit)

	r.Post("/login", s.handleLogin)
	r.Get("/session", s.handleSession)
	r.Route("/webauthn", func(r chi.Router) {
		r.Post("/register/options", s.handleRegisterOptions)
		r.Post("/register/verify", s.handleRegisterVerify)
		r.Post("/auth/options", s.handleAuthOptions)
		r.Post("/auth/verify", s.handleAuthVerify)
	})
	r.Post("/paymaster/sponsor", s.handleSponsor)

	r.Route("/bridge", func(r chi.Router) {
		r.Post("/address", s.handleBridgeAddress)
		r.Post("/quote", s.handleBridgeQuote)
		r.Get("/status/{swapId}", s.handleBridgeStatus)
	})

	r.Get("/strategies", s.handleStrategies)
	r.Get("/strategies/{id}", s.handleStrategy)
	r.Get("/positions", s.handlePositions)
	r.Get("/dashboard", s.handleDashboard)
	r.Get("/gas/{operation}", s.handleGas)

	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", s.handleTransactions)
		r.Get("/{id}", s.handleTransaction)
		r.Get("/{id}/receipt", s.handleReceipt)
		if s.opts.DevMode {
			r.Post("/{id}/confirm", s.handleConfirm)
		}
	})
	r.Post("/receipts/verify", s.handleVerifyReceipt)

	r.Post("/deposits", s.handleDeposit)
	r.Post("/withdrawals", s.handleWithdraw)
	r.Post("/claims", s.handleClaim)
	r.Post("/payments", s.handlePayment)
	r.Post("/bridges", s.handleBridge)
	r.Post("/swaps", s.handleSwap)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.errorResponse(w, r, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.errorResponse(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// Start listens until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         ":" + s.opts.Port,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Server starting on port %s", s.opts.Port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logrus.Info("Server stopped")
	return nil
}

func (s *Server) corsOrigins() []string {
	if len(s.opts.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return s.opts.CORSOrigins
}
