package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fenrir/internal/cli"
	"fenrir/internal/clock"
	"fenrir/internal/exchange"
	"fenrir/internal/refdata"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	log.Logger = logger

	clk := clock.NewSystem()
	ref := refdata.Default()

	cfg := exchange.Config{
		AccountsPath:   envOr("FENRIR_ACCOUNTS_FILE", "accounts.json"),
		BookPath:       envOr("FENRIR_BOOK_FILE", "unmatched_orders.json"),
		TradesPath:     envOr("FENRIR_TRADES_FILE", "trades.json"),
		DefaultBalance: decimal.NewFromInt(10000),
		StrictAccounts: os.Getenv("FENRIR_STRICT_ACCOUNTS") == "1",
	}

	ex, err := exchange.New(cfg, ref, clk, logger)
	if err != nil {
		log.Error().Err(err).Msg("unable to initialize exchange")
		os.Exit(1)
	}

	root := cli.New(ex, clk)
	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
