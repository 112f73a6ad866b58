package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/finsight/broker_gateway/internal/domain"
)

// Gateway routes orders to the right execution engine by mode and journals
// every returned result. There is exactly one Gateway per process; ownership
// of the engines and the journal is explicit rather than global state.
type Gateway struct {
	live        domain.Broker
	paper       domain.Broker
	journal     domain.OrderRepository
	defaultMode domain.TradeMode
	logger      *zap.Logger
}

// NewGateway wires the live and paper engines. journal may be nil, in which
// case order history is not persisted.
func NewGateway(live, paper domain.Broker, journal domain.OrderRepository, defaultMode domain.TradeMode, logger *zap.Logger) *Gateway {
	return &Gateway{
		live:        live,
		paper:       paper,
		journal:     journal,
		defaultMode: defaultMode,
		logger:      logger,
	}
}

func (g *Gateway) engineFor(mode domain.TradeMode) (domain.Broker, domain.TradeMode) {
	if mode == "" {
		mode = g.defaultMode
	}
	if mode == domain.ModeLive {
		return g.live, domain.ModeLive
	}
	return g.paper, domain.ModePaper
}

// PlaceOrder validates preconditions, executes against the engine for the
// request's mode and journals the result. Failures are never retried here:
// a blind resubmission could execute the order twice.
func (g *Gateway) PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	engine, mode := g.engineFor(req.Mode)
	result, err := engine.PlaceOrder(ctx, req)
	if err != nil {
		g.logger.Warn("Order placement failed",
			zap.String("symbol", req.Symbol),
			zap.String("mode", string(mode)),
			zap.Error(err))
		return nil, err
	}
	result.Mode = mode

	g.journalOrder(ctx, result)
	return result, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, orderID string, mode domain.TradeMode) (*domain.CancelAck, error) {
	engine, _ := g.engineFor(mode)
	return engine.CancelOrder(ctx, orderID)
}

func (g *Gateway) GetPositions(ctx context.Context, mode domain.TradeMode) ([]*domain.Position, error) {
	engine, _ := g.engineFor(mode)
	return engine.GetPositions(ctx)
}

func (g *Gateway) GetBalance(ctx context.Context, mode domain.TradeMode) (*domain.Balance, error) {
	engine, _ := g.engineFor(mode)
	return engine.GetBalance(ctx)
}

func (g *Gateway) DefaultMode() domain.TradeMode {
	return g.defaultMode
}

// journalOrder persists the result best-effort. A journal failure must not
// fail a trade that already executed.
func (g *Gateway) journalOrder(ctx context.Context, result *domain.OrderResult) {
	if g.journal == nil {
		return
	}
	if err := g.journal.SaveOrder(ctx, result); err != nil {
		g.logger.Error("Failed to journal order",
			zap.String("id", result.ID), zap.Error(err))
	}
}
