package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mlopes/matchbook/internal/domain"
	"github.com/mlopes/matchbook/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	market *service.MarketService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(market *service.MarketService) *OrderHandler {
	return &OrderHandler{market: market}
}

// submitQuoteRequest is the JSON request body for POST /orders.
// Price is required for limit orders and absent for market orders.
type submitQuoteRequest struct {
	Kind     string           `json:"kind"`
	Side     string           `json:"side"`
	Price    *decimal.Decimal `json:"price"`
	Quantity decimal.Decimal  `json:"quantity"`
	TraderID string           `json:"trader_id"`
}

// modifyOrderRequest is the JSON request body for PATCH /orders/{order_id}.
type modifyOrderRequest struct {
	Side     string          `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// submitResponse is the JSON response for submissions and modifications.
// resting is null when nothing remains on the book.
type submitResponse struct {
	Trades  []tradeResponse `json:"trades"`
	Resting *orderResponse  `json:"resting"`
}

// orderResponse is a resting order in API responses.
type orderResponse struct {
	OrderID  int64           `json:"order_id"`
	TraderID string          `json:"trader_id"`
	Side     string          `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Sequence int64           `json:"sequence"`
}

// tradeResponse is a single execution in API responses.
// resting_remaining is null when the resting order was fully consumed.
type tradeResponse struct {
	Time             int64            `json:"time"`
	Price            decimal.Decimal  `json:"price"`
	Quantity         decimal.Decimal  `json:"quantity"`
	RestingTrader    string           `json:"resting_trader"`
	RestingOrderID   int64            `json:"resting_order_id"`
	RestingRemaining *decimal.Decimal `json:"resting_remaining"`
	IncomingTrader   string           `json:"incoming_trader"`
	IncomingSide     string           `json:"incoming_side"`
}

// SubmitQuote handles POST /orders.
func (h *OrderHandler) SubmitQuote(w http.ResponseWriter, r *http.Request) {
	var req submitQuoteRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.market.SubmitQuote(service.SubmitQuoteRequest{
		Kind:     req.Kind,
		Side:     req.Side,
		Price:    req.Price,
		Quantity: req.Quantity,
		TraderID: req.TraderID,
	})
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildSubmitResponse(res))
}

// CancelOrder handles DELETE /orders/{side}/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	side := chi.URLParam(r, "side")
	orderID := chi.URLParam(r, "order_id")

	if err := h.market.Cancel(side, orderID); err != nil {
		mapMarketError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ModifyOrder handles PATCH /orders/{order_id}.
func (h *OrderHandler) ModifyOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	var req modifyOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.market.Modify(orderID, domain.OrderUpdate{
		Side:     domain.Side(req.Side),
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildSubmitResponse(res))
}

func buildSubmitResponse(res service.SubmitResult) submitResponse {
	return submitResponse{
		Trades:  buildTradeResponses(res.Trades),
		Resting: buildOrderResponse(res.Resting),
	}
}

func buildOrderResponse(o *domain.Order) *orderResponse {
	if o == nil {
		return nil
	}
	return &orderResponse{
		OrderID:  o.ID,
		TraderID: o.TraderID,
		Side:     string(o.Side),
		Price:    o.Price,
		Quantity: o.Quantity,
		Sequence: o.Sequence,
	}
}

func buildTradeResponse(t domain.Trade) tradeResponse {
	return tradeResponse{
		Time:             t.Time,
		Price:            t.Price,
		Quantity:         t.Quantity,
		RestingTrader:    t.RestingTrader,
		RestingOrderID:   t.RestingOrderID,
		RestingRemaining: t.RestingRemaining,
		IncomingTrader:   t.IncomingTrader,
		IncomingSide:     string(t.IncomingSide),
	}
}

func buildTradeResponses(trades []domain.Trade) []tradeResponse {
	result := make([]tradeResponse, len(trades))
	for i, t := range trades {
		result[i] = buildTradeResponse(t)
	}
	return result
}

// mapMarketError maps domain errors to HTTP responses.
func mapMarketError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidSide),
		errors.Is(err, domain.ErrInvalidOrderKind):
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
