package domain

import (
	"fmt"
	"time"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

type TimeInForce string

const (
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTC TimeInForce = "gtc"
)

type TradeMode string

const (
	ModePaper TradeMode = "paper"
	ModeLive  TradeMode = "live"
)

type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// OrderRequest is the order intent as produced by the dashboard or the
// confirmation flow.
type OrderRequest struct {
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	Qty         int64       `json:"qty"`
	Type        OrderType   `json:"type"`
	LimitPrice  float64     `json:"limitPrice,omitempty"`
	TimeInForce TimeInForce `json:"timeInForce"`
	Mode        TradeMode   `json:"mode,omitempty"`
}

// Validate checks the order preconditions before it is handed to any engine.
// A limit price is required exactly when the order type is limit.
func (r *OrderRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("%w: invalid side %q", ErrInvalidOrder, r.Side)
	}
	if r.Qty <= 0 {
		return fmt.Errorf("%w: qty must be positive, got %d", ErrInvalidOrder, r.Qty)
	}
	switch r.Type {
	case OrderTypeMarket:
		if r.LimitPrice != 0 {
			return fmt.Errorf("%w: limit price not allowed on market order", ErrInvalidOrder)
		}
	case OrderTypeLimit:
		if r.LimitPrice <= 0 {
			return fmt.Errorf("%w: limit order requires a positive limit price", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: invalid order type %q", ErrInvalidOrder, r.Type)
	}
	if r.TimeInForce != TimeInForceDay && r.TimeInForce != TimeInForceGTC {
		return fmt.Errorf("%w: invalid time in force %q", ErrInvalidOrder, r.TimeInForce)
	}
	return nil
}

// OrderResult is created at submission time and never mutated afterwards.
type OrderResult struct {
	ID          string      `json:"id"`
	Status      OrderStatus `json:"status"`
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	Qty         int64       `json:"qty"`
	Type        OrderType   `json:"type"`
	LimitPrice  float64     `json:"limitPrice,omitempty"`
	AvgPrice    float64     `json:"avgPrice,omitempty"`
	RealizedPnL float64     `json:"realizedPnL,omitempty"`
	Mode        TradeMode   `json:"mode"`
	SubmittedAt time.Time   `json:"submittedAt"`
	FilledAt    *time.Time  `json:"filledAt,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// CancelAck acknowledges an order cancellation.
type CancelAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
