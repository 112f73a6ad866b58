package domain

import "context"

// Broker is the uniform order-execution contract. Implementations are the
// persistent websocket transport, the stateless HTTP fallback, and the
// in-process paper engine.
type Broker interface {
	PlaceOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) (*CancelAck, error)
	GetPositions(ctx context.Context) ([]*Position, error)
	GetBalance(ctx context.Context) (*Balance, error)
}

// OrderRepository defines storage operations for the order journal.
type OrderRepository interface {
	SaveOrder(ctx context.Context, order *OrderResult) error
	ListOrders(ctx context.Context, limit int) ([]*OrderResult, error)
}
