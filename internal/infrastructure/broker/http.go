package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/finsight/broker_gateway/internal/domain"
)

// HTTPBroker is the stateless fallback used when the persistent transport is
// not available in the runtime environment. Every call is an independent
// request/response against the venue's REST surface.
type HTTPBroker struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewHTTPBroker(baseURL string, logger *zap.Logger) *HTTPBroker {
	return &HTTPBroker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultRequestTimeout},
		logger:  logger,
	}
}

func (b *HTTPBroker) sendRequest(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrRemoteRejected, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}

func (b *HTTPBroker) PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderResult, error) {
	var result domain.OrderResult
	if err := b.sendRequest(ctx, http.MethodPost, "/orders", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (b *HTTPBroker) CancelOrder(ctx context.Context, orderID string) (*domain.CancelAck, error) {
	var ack domain.CancelAck
	if err := b.sendRequest(ctx, http.MethodDelete, "/orders/"+orderID, nil, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (b *HTTPBroker) GetPositions(ctx context.Context) ([]*domain.Position, error) {
	var positions []*domain.Position
	if err := b.sendRequest(ctx, http.MethodGet, "/positions", nil, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (b *HTTPBroker) GetBalance(ctx context.Context) (*domain.Balance, error) {
	var balance domain.Balance
	if err := b.sendRequest(ctx, http.MethodGet, "/balance", nil, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}
