package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/openbuilders/ft-multisender/internal/health"
	"github.com/openbuilders/ft-multisender/internal/multisender"
	"github.com/openbuilders/ft-multisender/internal/types"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// APIHandler is a custom handler type that returns data or an error
type APIHandler func(w http.ResponseWriter, r *http.Request) (interface{}, error)

// Service is what the endpoints drive.
type Service interface {
	SetText(text string) (*types.RecipientList, error)
	List() *types.RecipientList
	Clear() error
	Verify(ctx context.Context) (int, *types.RecipientList, error)
	Status() multisender.Status
	RefreshDeposit(ctx context.Context) (decimal.Decimal, error)
	RefreshBalance(ctx context.Context) (decimal.Decimal, error)
	StartFund(ctx context.Context) error
	StartSend(ctx context.Context, mode types.SendMode) error
	StartResume(ctx context.Context, mode types.SendMode) error
	WithdrawAll(ctx context.Context) error
	Transfer(ctx context.Context, receiverID string, amount decimal.Decimal) error
	StorageDeposit(ctx context.Context) error
}

type HealthReporter interface {
	GetHealthStatus() health.HealthStatus
}

type Server struct {
	config     *Config
	service    Service
	health     HealthReporter
	httpServer *http.Server
	ctx        context.Context
	log        *slog.Logger
}

type Config struct {
	ListenAddr   string
	ListenPort   int
	MetricsPort  int
	ProbesPort   int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// MaxBodySize limits the recipients text.
	MaxBodySize int64
	ID          string
}

func NewServer(config *Config, service Service, health HealthReporter) *Server {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = 8 << 20
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 30 * time.Second
	}

	return &Server{
		config:  config,
		service: service,
		health:  health,
		ctx:     context.Background(),
		log:     slog.With("pod", config.ID, "component", "web-server"),
		httpServer: &http.Server{
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Routes returns the API handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /recipients", WithJSONResponse(s.SetRecipientsHandler))
	mux.HandleFunc("GET /recipients", WithJSONResponse(s.ListRecipientsHandler))
	mux.HandleFunc("DELETE /recipients", WithJSONResponse(s.ClearRecipientsHandler))
	mux.HandleFunc("GET /recipients.csv", s.ExportRecipientsHandler)
	mux.HandleFunc("POST /recipients/verify", WithJSONResponse(s.VerifyHandler))

	mux.HandleFunc("GET /status", WithJSONResponse(s.StatusHandler))
	mux.HandleFunc("POST /deposit/refresh", WithJSONResponse(s.RefreshDepositHandler))
	mux.HandleFunc("POST /balance/refresh", WithJSONResponse(s.RefreshBalanceHandler))
	mux.HandleFunc("POST /fund", WithJSONResponse(s.FundHandler))
	mux.HandleFunc("POST /send", WithJSONResponse(s.SendHandler))
	mux.HandleFunc("POST /resume", WithJSONResponse(s.ResumeHandler))
	mux.HandleFunc("POST /withdraw", WithJSONResponse(s.WithdrawHandler))
	mux.HandleFunc("POST /transfer", WithJSONResponse(s.TransferHandler))
	mux.HandleFunc("POST /storage-deposit", WithJSONResponse(s.StorageDepositHandler))

	return mux
}

// ProbeRoutes returns the liveness and readiness probes.
func (s *Server) ProbeRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", WithMethod(
		WithJSONResponse(s.HealthHandler),
		http.MethodGet,
	))

	mux.Handle("/ready", WithMethod(
		WithJSONResponse(s.ReadinessHandler),
		http.MethodGet,
	))

	return mux
}

func (s *Server) StartProbesAndMetrics() {
	// Expose Prometheus metrics
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.log.Info("Serving metrics", "port", s.config.MetricsPort)

		addr := fmt.Sprintf(":%d", s.config.MetricsPort)
		s.log.Error("Prometheus HTTP listener failed", "error",
			http.ListenAndServe(addr, mux))
	}()

	// Expose health probes
	go func() {
		s.log.Info("Serving health probes", "port", s.config.ProbesPort)

		addr := fmt.Sprintf(":%d", s.config.ProbesPort)
		s.log.Error("Health checks HTTP listener failed", "error",
			http.ListenAndServe(addr, s.ProbeRoutes()))
	}()
}

// Start serves the API until ctx is cancelled. Operations started in the
// background are bound to ctx.
func (s *Server) Start(ctx context.Context) error {
	s.ctx = ctx

	s.StartProbesAndMetrics()

	s.httpServer.Handler = http.TimeoutHandler(s.Routes(), s.config.WriteTimeout, "Timeout")

	s.log.Info("Starting server", "port", s.config.ListenPort)

	// Use ListenConfig to create a listener with context support
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.config.ListenAddr, s.config.ListenPort))
	if err != nil {
		return fmt.Errorf("error creating listener: %w", err)
	}

	errs := make(chan error, 1)
	go func() {
		errs <- s.httpServer.Serve(listener)
	}()

	select {
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server forced to shutdown", "error", err)
	}

	s.log.Info("Server exiting")

	return nil
}
