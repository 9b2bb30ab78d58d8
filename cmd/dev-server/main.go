package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mem "scorekit/adapters/memory"
	"scorekit/analytics"
	"scorekit/api/httpapi"
	"scorekit/core"
	"scorekit/engine"
	"scorekit/realtime"
	"scorekit/scoreboard"
)

const addr = ":3001"

func main() {
	// Use readable text logging for local development
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub()
	stats := analytics.NewBoardStats()
	svc := scoreboard.New(
		scoreboard.WithStore(mem.New(mem.WithLogger(logger))),
		scoreboard.WithRealtime(hub),
		scoreboard.WithSubscriber(engine.AllEvents, analytics.NewBridge(stats).Handler()),
		scoreboard.WithSubscriber(core.EventNewRecord, func(_ context.Context, e core.Event) {
			logger.Info("new record", "board", e.Board.String(), "player", e.Entry.PlayerName, "score", e.Entry.Score)
		}),
	)
	defer svc.Close()

	srv := &http.Server{
		Addr: addr,
		Handler: httpapi.NewMux(svc, hub, httpapi.Options{
			PathPrefix:      "/api",
			AllowCORSOrigin: "*",
			Logger:          logger,
			Stats:           stats,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("dev server running", "url", "http://localhost"+addr)
	logger.Info("endpoints",
		"submit", "POST http://localhost"+addr+"/api/leaderboard/submit",
		"get", "GET http://localhost"+addr+"/api/leaderboard/get",
		"events", "WS ws://localhost"+addr+"/api/ws")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("dev server crashed", "error", err)
		os.Exit(1)
	}
}
