package handler

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mlopes/matchbook/internal/book"
	"github.com/mlopes/matchbook/internal/service"
)

// BookHandler handles read-only book and tape endpoints.
type BookHandler struct {
	market *service.MarketService
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(market *service.MarketService) *BookHandler {
	return &BookHandler{market: market}
}

// levelResponse is one aggregated price level in the depth response.
type levelResponse struct {
	Price      decimal.Decimal `json:"price"`
	Volume     decimal.Decimal `json:"volume"`
	OrderCount int             `json:"order_count"`
}

// bookResponse is the JSON response for GET /book.
type bookResponse struct {
	Time     int64           `json:"time"`
	Bids     []levelResponse `json:"bids"`
	Asks     []levelResponse `json:"asks"`
	BidCount int             `json:"bid_count"`
	AskCount int             `json:"ask_count"`
}

// quotesResponse is the JSON response for GET /book/quotes.
// Absent prices are null.
type quotesResponse struct {
	BestBid  *decimal.Decimal `json:"best_bid"`
	BestAsk  *decimal.Decimal `json:"best_ask"`
	WorstBid *decimal.Decimal `json:"worst_bid"`
	WorstAsk *decimal.Decimal `json:"worst_ask"`
}

// volumeResponse is the JSON response for GET /book/volume.
type volumeResponse struct {
	Side   string          `json:"side"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

// GetBook handles GET /book. The optional depth query parameter limits
// the number of levels per side.
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	depth := 0
	if raw := r.URL.Query().Get("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, "validation_error", "depth must be a positive integer")
			return
		}
		depth = n
	}

	snap := h.market.Snapshot(depth)
	WriteJSON(w, http.StatusOK, bookResponse{
		Time:     snap.Time,
		Bids:     buildLevelResponses(snap.Bids),
		Asks:     buildLevelResponses(snap.Asks),
		BidCount: snap.BidCount,
		AskCount: snap.AskCount,
	})
}

// GetQuotes handles GET /book/quotes.
func (h *BookHandler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	q := h.market.Quotes()
	WriteJSON(w, http.StatusOK, quotesResponse{
		BestBid:  q.BestBid,
		BestAsk:  q.BestAsk,
		WorstBid: q.WorstBid,
		WorstAsk: q.WorstAsk,
	})
}

// GetVolume handles GET /book/volume?side=bid&price=100.5.
func (h *BookHandler) GetVolume(w http.ResponseWriter, r *http.Request) {
	side := r.URL.Query().Get("side")
	rawPrice := r.URL.Query().Get("price")

	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "price must be a decimal number")
		return
	}

	volume, err := h.market.VolumeAt(side, price)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, volumeResponse{
		Side:   side,
		Price:  price,
		Volume: volume,
	})
}

// GetTape handles GET /tape. The optional limit query parameter returns
// only the most recent trades; the full session tape is chronological.
func (h *BookHandler) GetTape(w http.ResponseWriter, r *http.Request) {
	tape := h.market.Tape()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a positive integer")
			return
		}
		if n < len(tape) {
			tape = tape[len(tape)-n:]
		}
	}

	WriteJSON(w, http.StatusOK, buildTradeResponses(tape))
}

func buildLevelResponses(levels []book.PriceLevel) []levelResponse {
	result := make([]levelResponse, len(levels))
	for i, lvl := range levels {
		result[i] = levelResponse{
			Price:      lvl.Price,
			Volume:     lvl.Volume,
			OrderCount: lvl.OrderCount,
		}
	}
	return result
}
