package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/broker_gateway/internal/domain"
)

// ConfirmService enforces that no order reaches the gateway without an
// explicit, separately transmitted human decision. Previews are keyed by an
// unguessable token, consumed exactly once, and expire unread after the TTL.
type ConfirmService struct {
	mu       sync.Mutex
	previews map[string]*domain.TradePreview

	ttl     time.Duration
	gateway *Gateway
	logger  *zap.Logger

	// now is swappable for deterministic expiry tests.
	now func() time.Time
}

func NewConfirmService(gateway *Gateway, ttl time.Duration, logger *zap.Logger) *ConfirmService {
	return &ConfirmService{
		previews: make(map[string]*domain.TradePreview),
		ttl:      ttl,
		gateway:  gateway,
		logger:   logger,
		now:      time.Now,
	}
}

// newToken returns 128 bits from crypto/rand, hex encoded. The token is
// effectively a capability that authorizes moving money, so nothing weaker
// will do.
func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate confirmation token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CreatePreview validates and stores a proposed order and returns the preview
// with its confirmation token. Expired entries are swept opportunistically on
// every call, so no background scheduler is needed.
func (s *ConfirmService) CreatePreview(intent domain.OrderRequest, ownerID string) (*domain.TradePreview, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	preview := &domain.TradePreview{
		Token:     token,
		Order:     intent,
		OwnerID:   ownerID,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.sweepExpiredLocked()
	s.previews[token] = preview
	s.mu.Unlock()

	s.logger.Info("Trade preview created",
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.Int64("qty", intent.Qty),
		zap.String("owner", ownerID))

	cp := *preview
	return &cp, nil
}

// ResolvePreview consumes the token. Accepted previews are forwarded to the
// gateway with the requested mode; rejected ones return an acknowledgement
// without touching the gateway. A second resolution of the same token fails
// with domain.ErrUnknownOrExpiredToken because the entry is already gone.
func (s *ConfirmService) ResolvePreview(ctx context.Context, token string, accepted bool, mode domain.TradeMode) (*domain.ConfirmResult, error) {
	s.mu.Lock()
	preview, ok := s.previews[token]
	if ok {
		delete(s.previews, token)
	}
	s.mu.Unlock()

	if !ok || s.now().Sub(preview.CreatedAt) > s.ttl {
		return nil, domain.ErrUnknownOrExpiredToken
	}

	if !accepted {
		s.logger.Info("Trade preview rejected",
			zap.String("symbol", preview.Order.Symbol),
			zap.String("owner", preview.OwnerID))
		return &domain.ConfirmResult{
			Accepted: false,
			Cancel: &domain.CancelAck{
				Success: true,
				Message: "Trade cancelled, no order was placed",
			},
		}, nil
	}

	order := preview.Order
	if mode != "" {
		order.Mode = mode
	}

	result, err := s.gateway.PlaceOrder(ctx, &order)
	if err != nil {
		return nil, err
	}
	return &domain.ConfirmResult{Accepted: true, Order: result}, nil
}

// SweepExpired removes every preview older than the TTL and reports how many
// were dropped.
func (s *ConfirmService) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepExpiredLocked()
}

func (s *ConfirmService) sweepExpiredLocked() int {
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for token, preview := range s.previews {
		if preview.CreatedAt.Before(cutoff) {
			delete(s.previews, token)
			removed++
		}
	}
	return removed
}

// PendingCount reports how many previews are awaiting a decision.
func (s *ConfirmService) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.previews)
}
