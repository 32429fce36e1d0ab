package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mlopes/matchbook/internal/service"
)

const (
	feedWriteWait = 10 * time.Second
	feedPongWait  = 60 * time.Second
	feedPingEvery = 45 * time.Second
)

// FeedHandler streams executed trades over a websocket.
type FeedHandler struct {
	market *service.MarketService
	log    *slog.Logger
	buffer int

	upgrader websocket.Upgrader
}

// NewFeedHandler creates a FeedHandler whose subscribers get channel
// buffers of the given size.
func NewFeedHandler(market *service.MarketService, log *slog.Logger, buffer int) *FeedHandler {
	return &FeedHandler{
		market: market,
		log:    log,
		buffer: buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// StreamTape handles GET /tape/stream. Each executed trade is written
// as one JSON message in execution order.
func (h *FeedHandler) StreamTape(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("feed upgrade failed", "error", err)
		return
	}

	sub := h.market.Subscribe(h.buffer)
	defer h.market.Unsubscribe(sub)
	defer conn.Close()

	// Reader goroutine: the client sends nothing meaningful, but reads
	// must be drained for close and pong frames to be processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(feedPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(feedPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(feedPingEvery)
	defer ping.Stop()

	for {
		select {
		case trade, ok := <-sub.C():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteJSON(buildTradeResponse(trade)); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
