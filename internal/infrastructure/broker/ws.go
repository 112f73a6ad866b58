package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/finsight/broker_gateway/internal/domain"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultReconnectBase  = 1 * time.Second
	defaultMaxReconnects  = 5
)

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// wsRequest is the envelope sent to the execution venue. Responses are
// matched to requests solely by the correlation id.
type wsRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type wsResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// WSBroker talks to the execution venue over a single persistent websocket
// connection, multiplexing concurrent calls over it by correlation id. Each
// outbound request owns a one-shot channel; the read loop completes the
// matching channel when the response arrives.
//
// On an unexpected close the broker fails all outstanding requests, drops to
// disconnected and schedules reconnects with exponentially increasing delay,
// up to a fixed attempt cap. While disconnected every call fails fast with
// domain.ErrTransportUnavailable; nothing is queued or replayed.
type WSBroker struct {
	url    string
	dialer *websocket.Dialer
	logger *zap.Logger

	requestTimeout time.Duration
	reconnectBase  time.Duration
	maxReconnects  int

	mu       sync.Mutex // guards conn, state, attempts, nextID, pending
	conn     *websocket.Conn
	state    connState
	attempts int
	closed   bool
	nextID   uint64
	pending  map[uint64]chan wsResponse

	writeMu sync.Mutex
}

func NewWSBroker(url string, logger *zap.Logger) *WSBroker {
	return &WSBroker{
		url:            url,
		dialer:         websocket.DefaultDialer,
		logger:         logger,
		requestTimeout: defaultRequestTimeout,
		reconnectBase:  defaultReconnectBase,
		maxReconnects:  defaultMaxReconnects,
		pending:        make(map[uint64]chan wsResponse),
	}
}

// Connect dials the venue and starts the read loop. A failed dial schedules a
// reconnect; a successful one resets the attempt counter.
func (b *WSBroker) Connect() error {
	b.mu.Lock()
	if b.closed || b.state != stateDisconnected {
		b.mu.Unlock()
		return nil
	}
	b.state = stateConnecting
	b.mu.Unlock()

	c, _, err := b.dialer.Dial(b.url, nil)
	if err != nil {
		b.logger.Warn("Broker connect failed", zap.String("url", b.url), zap.Error(err))
		b.mu.Lock()
		b.state = stateDisconnected
		b.scheduleReconnectLocked()
		b.mu.Unlock()
		return fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err)
	}

	b.mu.Lock()
	b.conn = c
	b.state = stateConnected
	b.attempts = 0
	b.mu.Unlock()

	b.logger.Info("Broker connection established", zap.String("url", b.url))
	go b.readLoop(c)
	return nil
}

// Connected reports whether the persistent transport is currently up.
func (b *WSBroker) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateConnected
}

// Close shuts the transport down permanently. No reconnects are scheduled
// afterwards.
func (b *WSBroker) Close() error {
	b.mu.Lock()
	b.closed = true
	c := b.conn
	b.conn = nil
	b.state = stateDisconnected
	b.failPendingLocked()
	b.mu.Unlock()

	if c != nil {
		return c.Close()
	}
	return nil
}

func (b *WSBroker) readLoop(c *websocket.Conn) {
	for {
		var resp wsResponse
		if err := c.ReadJSON(&resp); err != nil {
			b.handleDisconnect(c, err)
			return
		}

		b.mu.Lock()
		ch, ok := b.pending[resp.ID]
		if ok {
			delete(b.pending, resp.ID)
		}
		b.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

func (b *WSBroker) handleDisconnect(c *websocket.Conn, err error) {
	c.Close()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != c {
		// A newer connection already replaced this one.
		return
	}
	b.conn = nil
	b.state = stateDisconnected
	b.failPendingLocked()
	if !b.closed {
		b.logger.Warn("Broker connection closed", zap.Error(err))
		b.scheduleReconnectLocked()
	}
}

// failPendingLocked fails every outstanding request. A closed channel reads
// as transport loss on the caller side; in-flight requests are never replayed.
func (b *WSBroker) failPendingLocked() {
	for id, ch := range b.pending {
		delete(b.pending, id)
		close(ch)
	}
}

func (b *WSBroker) scheduleReconnectLocked() {
	if b.closed {
		return
	}
	b.attempts++
	if b.attempts > b.maxReconnects {
		b.logger.Error("Max broker reconnection attempts reached",
			zap.Int("attempts", b.maxReconnects))
		return
	}
	delay := b.reconnectBase << (b.attempts - 1)
	b.logger.Info("Scheduling broker reconnect",
		zap.Duration("delay", delay), zap.Int("attempt", b.attempts))
	time.AfterFunc(delay, func() {
		// Connect reschedules on failure, so errors need no handling here.
		_ = b.Connect()
	})
}

func (b *WSBroker) removePending(id uint64) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// call sends one request and suspends the caller until the matching response,
// the request deadline, or context cancellation. Giving up waiting does not
// retract a request already sent to the venue.
func (b *WSBroker) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	b.mu.Lock()
	if b.state != stateConnected || b.conn == nil {
		b.mu.Unlock()
		return domain.ErrTransportUnavailable
	}
	b.nextID++
	id := b.nextID
	ch := make(chan wsResponse, 1)
	b.pending[id] = ch
	c := b.conn
	b.mu.Unlock()

	req := wsRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}

	b.writeMu.Lock()
	err := c.WriteJSON(req)
	b.writeMu.Unlock()
	if err != nil {
		b.removePending(id)
		return fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err)
	}

	timer := time.NewTimer(b.requestTimeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return domain.ErrTransportUnavailable
		}
		if resp.Error != "" {
			return fmt.Errorf("%w: %s", domain.ErrRemoteRejected, resp.Error)
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("failed to decode %s result: %w", method, err)
			}
		}
		return nil
	case <-timer.C:
		b.removePending(id)
		return fmt.Errorf("%w: no response to %s within %s", domain.ErrRequestTimeout, method, b.requestTimeout)
	case <-ctx.Done():
		b.removePending(id)
		return ctx.Err()
	}
}

func (b *WSBroker) PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderResult, error) {
	var result domain.OrderResult
	if err := b.call(ctx, "place_order", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (b *WSBroker) CancelOrder(ctx context.Context, orderID string) (*domain.CancelAck, error) {
	var ack domain.CancelAck
	params := map[string]string{"orderId": orderID}
	if err := b.call(ctx, "cancel_order", params, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (b *WSBroker) GetPositions(ctx context.Context) ([]*domain.Position, error) {
	var positions []*domain.Position
	if err := b.call(ctx, "get_positions", struct{}{}, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (b *WSBroker) GetBalance(ctx context.Context) (*domain.Balance, error) {
	var balance domain.Balance
	if err := b.call(ctx, "get_balance", struct{}{}, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}
