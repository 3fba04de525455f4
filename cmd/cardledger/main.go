package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/torkelsen/cardledger/internal/bootstrap"
	"github.com/torkelsen/cardledger/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to assemble ledger", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	log.Info("ledger ready", "backend", cfg.Store.Backend)

	// Log completed transactions until a front-end claims the channel.
	// With a Redis publisher configured there is no channel to drain.
	if app.Events != nil {
		go func() {
			for tx := range app.Events.Events() {
				log.Info("transaction completed",
					"card_number", tx.CardNumber, "type", tx.Type, "amount", tx.Amount.String())
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
