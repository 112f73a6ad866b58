package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/broker_gateway/internal/domain"
)

type previewRequest struct {
	domain.OrderRequest
	OwnerID string `json:"ownerId"`
}

type confirmRequest struct {
	ConfirmationToken string           `json:"confirmationToken"`
	UserAccepts       bool             `json:"userAccepts"`
	Mode              domain.TradeMode `json:"mode,omitempty"`
}

type statusResponse struct {
	Mode            domain.TradeMode `json:"mode"`
	Transport       string           `json:"transport"`
	PendingPreviews int              `json:"pendingPreviews"`
	UptimeSeconds   int64            `json:"uptimeSeconds"`
}

func (s *Server) handleCreatePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	preview, err := s.confirm.CreatePreview(req.OrderRequest, req.OwnerID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, preview)
}

func (s *Server) handleConfirmTrade(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConfirmationToken == "" {
		s.writeError(w, http.StatusBadRequest, "confirmationToken is required")
		return
	}

	result, err := s.confirm.ResolvePreview(r.Context(), req.ConfirmationToken, req.UserAccepts, req.Mode)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.gateway.PlaceOrder(r.Context(), &req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	mode := domain.TradeMode(r.URL.Query().Get("mode"))

	ack, err := s.gateway.CancelOrder(r.Context(), orderID, mode)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ack)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	orders, err := s.orderRepo.ListOrders(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []*domain.OrderResult{}
	}
	s.writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	mode := domain.TradeMode(r.URL.Query().Get("mode"))
	positions, err := s.gateway.GetPositions(r.Context(), mode)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if positions == nil {
		positions = []*domain.Position{}
	}
	s.writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	mode := domain.TradeMode(r.URL.Query().Get("mode"))
	balance, err := s.gateway.GetBalance(r.Context(), mode)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balance)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	transport := "paper"
	if s.connected != nil {
		if s.connected() {
			transport = "connected"
		} else {
			transport = "disconnected"
		}
	}
	s.writeJSON(w, http.StatusOK, statusResponse{
		Mode:            s.gateway.DefaultMode(),
		Transport:       transport,
		PendingPreviews: s.confirm.PendingCount(),
		UptimeSeconds:   int64(time.Since(s.startedAt).Seconds()),
	})
}

// writeDomainError maps the typed failures onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidOrder):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownOrExpiredToken):
		status = http.StatusGone
	case errors.Is(err, domain.ErrTransportUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrRequestTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrRemoteRejected):
		status = http.StatusBadGateway
	default:
		s.logger.Error("Unexpected handler error", zap.Error(err))
	}
	s.writeError(w, status, err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
