package broker

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finsight/broker_gateway/internal/domain"
)

// Static per-symbol base prices for the simulation. Unknown symbols fall back
// to defaultBasePrice.
var basePrices = map[string]float64{
	"AAPL":  175.50,
	"NVDA":  450.25,
	"TSLA":  245.80,
	"MSFT":  380.15,
	"GOOGL": 142.30,
}

const defaultBasePrice = 100.00

// PaperEngine simulates order execution against an in-memory ledger. Fills
// are synchronous: the order comes back already filled and the ledger is
// mutated before PlaceOrder returns. The ledger does not survive a process
// restart; it resets to the starting balance.
//
// All ledger read-modify-write runs under a single mutex so concurrent
// placements for the same symbol cannot lose updates.
type PaperEngine struct {
	mu        sync.Mutex
	positions map[string]*domain.Position
	balance   domain.Balance
	logger    *zap.Logger
}

func NewPaperEngine(startingCash float64, logger *zap.Logger) *PaperEngine {
	return &PaperEngine{
		positions: make(map[string]*domain.Position),
		balance: domain.Balance{
			Cash:        startingCash,
			BuyingPower: startingCash,
			TotalValue:  startingCash,
			Currency:    "USD",
		},
		logger: logger,
	}
}

// simulatedPrice derives a fill price from the symbol's base price perturbed
// by a bounded ±1% factor.
func simulatedPrice(symbol string) float64 {
	base, ok := basePrices[symbol]
	if !ok {
		base = defaultBasePrice
	}
	variation := (rand.Float64() - 0.5) * 0.02
	return base * (1 + variation)
}

func (e *PaperEngine) PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderResult, error) {
	fillPrice := req.LimitPrice
	if req.Type == domain.OrderTypeMarket {
		fillPrice = simulatedPrice(req.Symbol)
	}

	now := time.Now().UTC()
	order := &domain.OrderResult{
		ID:          fmt.Sprintf("paper_%s", uuid.NewString()),
		Status:      domain.OrderStatusFilled,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Qty:         req.Qty,
		Type:        req.Type,
		LimitPrice:  req.LimitPrice,
		AvgPrice:    fillPrice,
		Mode:        domain.ModePaper,
		SubmittedAt: now,
		FilledAt:    &now,
	}

	e.mu.Lock()
	order.RealizedPnL = e.applyFillLocked(req.Symbol, req.Side, req.Qty, fillPrice)
	e.mu.Unlock()

	e.logger.Info("Paper order filled",
		zap.String("id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Int64("qty", order.Qty),
		zap.Float64("avgPrice", order.AvgPrice))

	return order, nil
}

// applyFillLocked mutates positions and balance for one fill and returns the
// realized P&L of the fill (zero for buys). Caller holds e.mu.
func (e *PaperEngine) applyFillLocked(symbol string, side domain.Side, qty int64, price float64) float64 {
	value := float64(qty) * price
	var realized float64

	pos, ok := e.positions[symbol]
	switch {
	case side == domain.SideBuy && ok:
		// Weighted-average-cost accounting.
		totalCost := float64(pos.Qty)*pos.AvgPrice + value
		pos.Qty += qty
		pos.AvgPrice = totalCost / float64(pos.Qty)
	case side == domain.SideBuy:
		pos = &domain.Position{Symbol: symbol, Qty: qty, AvgPrice: price}
		e.positions[symbol] = pos
	case ok:
		// Realized P&L accrues on every sell before quantity is reduced.
		sold := qty
		if sold > pos.Qty {
			sold = pos.Qty
		}
		realized = (price - pos.AvgPrice) * float64(sold)
		pos.RealizedPnL += realized
		pos.Qty -= qty
		if pos.Qty <= 0 {
			delete(e.positions, symbol)
			pos = nil
		}
	default:
		// Selling with no open position: proceeds are credited, no short
		// position is created.
	}

	if pos != nil {
		// Mark the touched position to the fill price.
		pos.MarketValue = float64(pos.Qty) * price
		pos.UnrealizedPnL = (price - pos.AvgPrice) * float64(pos.Qty)
	}

	if side == domain.SideBuy {
		e.balance.Cash -= value
		e.balance.BuyingPower -= value
	} else {
		e.balance.Cash += value
		e.balance.BuyingPower += value
	}

	total := e.balance.Cash
	for _, p := range e.positions {
		total += p.MarketValue
	}
	e.balance.TotalValue = total

	return realized
}

// CancelOrder always succeeds in paper mode: fills are synchronous, so there
// is never a resting order to race against.
func (e *PaperEngine) CancelOrder(ctx context.Context, orderID string) (*domain.CancelAck, error) {
	return &domain.CancelAck{
		Success: true,
		Message: fmt.Sprintf("Paper order %s cancelled", orderID),
	}, nil
}

func (e *PaperEngine) GetPositions(ctx context.Context) ([]*domain.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	positions := make([]*domain.Position, 0, len(e.positions))
	for _, p := range e.positions {
		cp := *p
		positions = append(positions, &cp)
	}
	return positions, nil
}

func (e *PaperEngine) GetBalance(ctx context.Context) (*domain.Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	balance := e.balance
	return &balance, nil
}
