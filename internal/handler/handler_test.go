package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mlopes/matchbook/internal/book"
	"github.com/mlopes/matchbook/internal/feed"
	"github.com/mlopes/matchbook/internal/service"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	market := service.NewMarketService(book.New(), nil, feed.NewHub(), logger)
	return NewRouter(market, logger, 16)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func doJSON(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestSubmitOrder_RestingLimit(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/orders",
		`{"kind":"limit","side":"bid","price":"100.5","quantity":"5","trader_id":"alice"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body)
	}

	var resp submitResponse
	decodeBody(t, w, &resp)
	if resp.Resting == nil {
		t.Fatal("expected a resting order")
	}
	if resp.Resting.OrderID != 1 || resp.Resting.TraderID != "alice" {
		t.Fatalf("resting = %+v", resp.Resting)
	}
	if len(resp.Trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(resp.Trades))
	}
}

func TestSubmitOrder_CrossExecutesAtRestingPrice(t *testing.T) {
	r := newTestRouter(t)

	doJSON(t, r, http.MethodPost, "/orders",
		`{"kind":"limit","side":"ask","price":"100","quantity":"5","trader_id":"seller"}`)
	w := doJSON(t, r, http.MethodPost, "/orders",
		`{"kind":"limit","side":"bid","price":"102","quantity":"3","trader_id":"buyer"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body)
	}

	var resp submitResponse
	decodeBody(t, w, &resp)
	if len(resp.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(resp.Trades))
	}
	if resp.Trades[0].Price.String() != "100" {
		t.Fatalf("execution price = %s, want resting price 100", resp.Trades[0].Price)
	}
	if resp.Resting != nil {
		t.Fatal("fully filled incoming order must not rest")
	}
}

func TestSubmitOrder_Validation(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"zero quantity", `{"kind":"limit","side":"bid","price":"100","quantity":"0","trader_id":"a"}`},
		{"bad side", `{"kind":"limit","side":"buy","price":"100","quantity":"1","trader_id":"a"}`},
		{"bad kind", `{"kind":"stop","side":"bid","price":"100","quantity":"1","trader_id":"a"}`},
		{"limit without price", `{"kind":"limit","side":"bid","quantity":"1","trader_id":"a"}`},
		{"unknown field", `{"kind":"limit","side":"bid","price":"100","quantity":"1","oops":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/orders", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", w.Code, w.Body)
			}
		})
	}
}

func TestSubmitOrder_RequiresJSONContentType(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/orders",
		strings.NewReader(`{"kind":"limit","side":"bid","price":"100","quantity":"1"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCancelOrder(t *testing.T) {
	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/orders",
		`{"kind":"limit","side":"bid","price":"100","quantity":"5","trader_id":"alice"}`)

	w := doJSON(t, r, http.MethodDelete, "/orders/bid/1", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", w.Code, w.Body)
	}

	w = doJSON(t, r, http.MethodDelete, "/orders/bid/1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", w.Code, w.Body)
	}

	w = doJSON(t, r, http.MethodDelete, "/orders/bid/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body)
	}
}

func TestModifyOrder(t *testing.T) {
	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/orders",
		`{"kind":"limit","side":"bid","price":"100","quantity":"5","trader_id":"alice"}`)

	w := doJSON(t, r, http.MethodPatch, "/orders/1",
		`{"side":"bid","price":"100","quantity":"8"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}

	var resp submitResponse
	decodeBody(t, w, &resp)
	if resp.Resting == nil || resp.Resting.Quantity.String() != "8" {
		t.Fatalf("resting = %+v, want quantity 8", resp.Resting)
	}

	w = doJSON(t, r, http.MethodPatch, "/orders/99",
		`{"side":"bid","price":"100","quantity":"1"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", w.Code, w.Body)
	}
}

func TestGetBook(t *testing.T) {
	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/orders",
		`{"kind":"limit","side":"bid","price":"99","quantity":"5","trader_id":"a"}`)
	doJSON(t, r, http.MethodPost, "/orders",
		`{"kind":"limit","side":"bid","price":"98","quantity":"2","trader_id":"a"}`)
	doJSON(t, r, http.MethodPost, "/orders",
		`{"kind":"limit","side":"ask","price":"101","quantity":"4","trader_id":"b"}`)

	w := doJSON(t, r, http.MethodGet, "/book", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp bookResponse
	decodeBody(t, w, &resp)
	if len(resp.Bids) != 2 || len(resp.Asks) != 1 {
		t.Fatalf("bids/asks = %d/%d, want 2/1", len(resp.Bids), len(resp.Asks))
	}
	if resp.Bids[0].Price.String() != "99" {
		t.Fatalf("best bid level = %s, want 99", resp.Bids[0].Price)
	}
	if resp.Time != 3 {
		t.Fatalf("time = %d, want 3", resp.Time)
	}

	w = doJSON(t, r, http.MethodGet, "/book?depth=1", "")
	decodeBody(t, w, &resp)
	if len(resp.Bids) != 1 {
		t.Fatalf("depth=1 returned %d bid levels", len(resp.Bids))
	}

	w = doJSON(t, r, http.MethodGet, "/book?depth=zero", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetQuotes_EmptyBookIsAllNull(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/book/quotes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var raw map[string]any
	decodeBody(t, w, &raw)
	for _, k := range []string{"best_bid", "best_ask", "worst_bid", "worst_ask"} {
		if raw[k] != nil {
			t.Errorf("%s = %v, want null", k, raw[k])
		}
	}
}

func TestGetVolume(t *testing.T) {
	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/orders",
		`{"kind":"limit","side":"bid","price":"100","quantity":"5","trader_id":"a"}`)

	w := doJSON(t, r, http.MethodGet, "/book/volume?side=bid&price=100", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}
	var resp volumeResponse
	decodeBody(t, w, &resp)
	if resp.Volume.String() != "5" {
		t.Fatalf("volume = %s, want 5", resp.Volume)
	}

	w = doJSON(t, r, http.MethodGet, "/book/volume?side=bid&price=abc", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/book/volume?side=buy&price=100", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetTape(t *testing.T) {
	r := newTestRouter(t)
	for i := 0; i < 3; i++ {
		doJSON(t, r, http.MethodPost, "/orders",
			`{"kind":"limit","side":"ask","price":"100","quantity":"1","trader_id":"s"}`)
		doJSON(t, r, http.MethodPost, "/orders",
			`{"kind":"limit","side":"bid","price":"100","quantity":"1","trader_id":"b"}`)
	}

	w := doJSON(t, r, http.MethodGet, "/tape", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var trades []tradeResponse
	decodeBody(t, w, &trades)
	if len(trades) != 3 {
		t.Fatalf("tape length = %d, want 3", len(trades))
	}
	if trades[0].Time >= trades[2].Time {
		t.Fatal("tape must be chronological")
	}

	w = doJSON(t, r, http.MethodGet, "/tape?limit=2", "")
	decodeBody(t, w, &trades)
	if len(trades) != 2 {
		t.Fatalf("limited tape length = %d, want 2", len(trades))
	}
}

func TestStreamTape(t *testing.T) {
	r := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/tape/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the subscription a moment to attach before trading.
	time.Sleep(50 * time.Millisecond)

	doJSON(t, r, http.MethodPost, "/orders",
		`{"kind":"limit","side":"ask","price":"100","quantity":"2","trader_id":"seller"}`)
	doJSON(t, r, http.MethodPost, "/orders",
		`{"kind":"limit","side":"bid","price":"100","quantity":"2","trader_id":"buyer"}`)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var tr tradeResponse
	if err := conn.ReadJSON(&tr); err != nil {
		t.Fatalf("read trade from stream: %v", err)
	}
	if tr.Price.String() != "100" || tr.Quantity.String() != "2" {
		t.Fatalf("streamed trade = %+v", tr)
	}
}
