package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finsight/broker_gateway/internal/domain"
)

var upgrader = websocket.Upgrader{}

// startVenue runs a fake execution venue. handler is called once per inbound
// request and may reply on the connection (writes must go through reply).
func startVenue(t *testing.T, handler func(reply func(wsResponse), req wsRequest, raw json.RawMessage)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var writeMu sync.Mutex
		reply := func(resp wsResponse) {
			writeMu.Lock()
			defer writeMu.Unlock()
			_ = conn.WriteJSON(resp)
		}

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req wsRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				continue
			}
			handler(reply, req, raw)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func connectedBroker(t *testing.T, srv *httptest.Server) *WSBroker {
	t.Helper()
	b := NewWSBroker(wsURL(srv), zap.NewNop())
	require.NoError(t, b.Connect())
	t.Cleanup(func() { b.Close() })
	return b
}

// rawParams pulls the params object back out of the request envelope.
func rawParams(raw json.RawMessage, out interface{}) {
	var envelope struct {
		Params json.RawMessage `json:"params"`
	}
	_ = json.Unmarshal(raw, &envelope)
	_ = json.Unmarshal(envelope.Params, out)
}

func mustResult(v interface{}) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}

func TestWSBrokerRoundTrips(t *testing.T) {
	srv := startVenue(t, func(reply func(wsResponse), req wsRequest, raw json.RawMessage) {
		switch req.Method {
		case "place_order":
			var order domain.OrderRequest
			rawParams(raw, &order)
			reply(wsResponse{ID: req.ID, Result: mustResult(domain.OrderResult{
				ID:     "live_42",
				Status: domain.OrderStatusSubmitted,
				Symbol: order.Symbol,
				Side:   order.Side,
				Qty:    order.Qty,
			})})
		case "cancel_order":
			reply(wsResponse{ID: req.ID, Result: mustResult(domain.CancelAck{Success: true, Message: "cancelled"})})
		case "get_positions":
			reply(wsResponse{ID: req.ID, Result: mustResult([]*domain.Position{{Symbol: "AAPL", Qty: 3}})})
		case "get_balance":
			reply(wsResponse{ID: req.ID, Result: mustResult(domain.Balance{Cash: 5000, Currency: "USD"})})
		}
	})

	b := connectedBroker(t, srv)
	ctx := context.Background()

	order, err := b.PlaceOrder(ctx, &domain.OrderRequest{
		Symbol: "NVDA", Side: domain.SideBuy, Qty: 2,
		Type: domain.OrderTypeMarket, TimeInForce: domain.TimeInForceDay,
	})
	require.NoError(t, err)
	assert.Equal(t, "live_42", order.ID)
	assert.Equal(t, "NVDA", order.Symbol)
	assert.Equal(t, int64(2), order.Qty)

	ack, err := b.CancelOrder(ctx, "live_42")
	require.NoError(t, err)
	assert.True(t, ack.Success)

	positions, err := b.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Symbol)

	balance, err := b.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, balance.Cash)
}

func TestWSBrokerCorrelatesConcurrentRequests(t *testing.T) {
	// Replies arrive out of order; matching is by correlation id only.
	srv := startVenue(t, func(reply func(wsResponse), req wsRequest, raw json.RawMessage) {
		var order domain.OrderRequest
		rawParams(raw, &order)
		delay := time.Duration(0)
		if order.Symbol == "SLOW" {
			delay = 100 * time.Millisecond
		}
		go func() {
			time.Sleep(delay)
			reply(wsResponse{ID: req.ID, Result: mustResult(domain.OrderResult{
				ID: "live_" + order.Symbol, Symbol: order.Symbol,
				Status: domain.OrderStatusSubmitted,
			})})
		}()
	})

	b := connectedBroker(t, srv)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, symbol := range []string{"SLOW", "FAST"} {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			order, err := b.PlaceOrder(ctx, &domain.OrderRequest{
				Symbol: symbol, Side: domain.SideBuy, Qty: 1,
				Type: domain.OrderTypeMarket, TimeInForce: domain.TimeInForceDay,
			})
			if err != nil {
				t.Error(err)
				return
			}
			if order.Symbol != symbol {
				t.Errorf("response for %q delivered to caller of %q", order.Symbol, symbol)
			}
		}(symbol)
	}
	wg.Wait()
}

func TestWSBrokerRemoteRejected(t *testing.T) {
	srv := startVenue(t, func(reply func(wsResponse), req wsRequest, raw json.RawMessage) {
		reply(wsResponse{ID: req.ID, Error: "insufficient buying power"})
	})

	b := connectedBroker(t, srv)

	_, err := b.PlaceOrder(context.Background(), &domain.OrderRequest{
		Symbol: "AAPL", Side: domain.SideBuy, Qty: 1,
		Type: domain.OrderTypeMarket, TimeInForce: domain.TimeInForceDay,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRemoteRejected))
	assert.Contains(t, err.Error(), "insufficient buying power")
}

func TestWSBrokerRequestTimeout(t *testing.T) {
	srv := startVenue(t, func(reply func(wsResponse), req wsRequest, raw json.RawMessage) {
		// Never reply.
	})

	b := connectedBroker(t, srv)
	b.requestTimeout = 50 * time.Millisecond

	_, err := b.GetBalance(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRequestTimeout))

	// The correlation entry must not leak after the deadline fires.
	b.mu.Lock()
	assert.Empty(t, b.pending)
	b.mu.Unlock()
}

func TestWSBrokerFailsFastWhenDisconnected(t *testing.T) {
	b := NewWSBroker("ws://127.0.0.1:1/mcp", zap.NewNop())

	_, err := b.GetPositions(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransportUnavailable))
}

func TestWSBrokerFailsInflightOnDisconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Read one request, then drop the connection without replying.
		_, _, _ = conn.ReadMessage()
		conn.Close()
	}))
	t.Cleanup(srv.Close)

	b := NewWSBroker(wsURL(srv), zap.NewNop())
	// Keep the reconnect loop from racing the assertion.
	b.maxReconnects = 0
	require.NoError(t, b.Connect())
	t.Cleanup(func() { b.Close() })

	_, err := b.GetBalance(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransportUnavailable))
}

func TestWSBrokerReconnectsWithBackoff(t *testing.T) {
	var connCount atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if connCount.Add(1) == 1 {
			// First connection dies immediately; the client must come back.
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			_ = conn.WriteJSON(wsResponse{ID: req.ID, Result: mustResult(domain.Balance{Cash: 1, Currency: "USD"})})
		}
	}))
	t.Cleanup(srv.Close)

	b := NewWSBroker(wsURL(srv), zap.NewNop())
	b.reconnectBase = 10 * time.Millisecond
	require.NoError(t, b.Connect())
	t.Cleanup(func() { b.Close() })

	require.Eventually(t, func() bool {
		return connCount.Load() >= 2 && b.Connected()
	}, 2*time.Second, 10*time.Millisecond, "client did not reconnect")

	balance, err := b.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, balance.Cash)
}
