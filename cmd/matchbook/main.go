package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mlopes/matchbook/internal/book"
	"github.com/mlopes/matchbook/internal/config"
	"github.com/mlopes/matchbook/internal/feed"
	"github.com/mlopes/matchbook/internal/handler"
	"github.com/mlopes/matchbook/internal/replay"
	"github.com/mlopes/matchbook/internal/report"
	"github.com/mlopes/matchbook/internal/service"
	"github.com/mlopes/matchbook/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	replayFile := flag.String("replay", "", "Rebuild the book from a recorded quote stream before serving")
	dump := flag.Bool("dump", false, "With -replay: print the rebuilt book and exit instead of serving")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// The book and its collaborators.
	b := book.New(book.WithLogger(logger))

	if *replayFile != "" {
		res, err := replay.FromFile(b, *replayFile)
		if err != nil {
			logger.Error("replay failed", slog.String("file", *replayFile), slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("replay complete",
			slog.String("file", *replayFile),
			slog.Int("quotes", res.Submitted),
			slog.Int("trades", res.Trades),
		)
		if *dump {
			fmt.Print(report.Book(b, cfg.TapeDisplayLength))
			return
		}
	}

	tape, err := store.NewTapeStore(cfg.TapeDBPath)
	if err != nil {
		logger.Error("failed to open tape store", slog.String("path", cfg.TapeDBPath), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer tape.Close()

	hub := feed.NewHub()
	market := service.NewMarketService(b, tape, hub, logger)

	// Router.
	router := handler.NewRouter(market, logger, cfg.FeedBuffer)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
