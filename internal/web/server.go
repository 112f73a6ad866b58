package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/broker_gateway/internal/domain"
	"github.com/finsight/broker_gateway/internal/usecase"
)

// Server exposes the trading surface consumed by the dashboard UI: the
// preview/confirm flow, direct order placement, and account reads.
type Server struct {
	router    *http.ServeMux
	server    *http.Server
	gateway   *usecase.Gateway
	confirm   *usecase.ConfirmService
	orderRepo domain.OrderRepository
	// connected reports live-transport health for /status; nil when the
	// service runs purely on the HTTP fallback or in paper mode.
	connected func() bool
	startedAt time.Time
	logger    *zap.Logger
}

func NewServer(
	port int,
	gateway *usecase.Gateway,
	confirm *usecase.ConfirmService,
	orderRepo domain.OrderRepository,
	connected func() bool,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		gateway:   gateway,
		confirm:   confirm,
		orderRepo: orderRepo,
		connected: connected,
		startedAt: time.Now(),
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Trade confirmation flow
	s.router.HandleFunc("POST /api/trade/preview", s.handleCreatePreview)
	s.router.HandleFunc("POST /api/trade/confirm", s.handleConfirmTrade)

	// Orders
	s.router.HandleFunc("POST /api/orders", s.handlePlaceOrder)
	s.router.HandleFunc("DELETE /api/orders/{id}", s.handleCancelOrder)
	s.router.HandleFunc("GET /api/orders", s.handleListOrders)

	// Account
	s.router.HandleFunc("GET /api/positions", s.handlePositions)
	s.router.HandleFunc("GET /api/balance", s.handleBalance)

	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
