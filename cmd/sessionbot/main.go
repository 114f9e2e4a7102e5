package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/sessionbot/internal/audit"
	"github.com/udisondev/sessionbot/internal/bot"
	"github.com/udisondev/sessionbot/internal/config"
	"github.com/udisondev/sessionbot/internal/mtproto"
	"github.com/udisondev/sessionbot/internal/notify"
	"github.com/udisondev/sessionbot/internal/state"
	"github.com/udisondev/sessionbot/internal/tgbot"
)

const ConfigPath = "config/sessionbot.yaml"

const reaperInterval = time.Minute

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, newDialer); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// newDialer builds the concrete MTProto driver. The rest of the program only
// sees the mtproto.Dialer boundary.
func newDialer(cfg config.Bot) (mtproto.Dialer, error) {
	return mtproto.NewDialer(cfg.APIID, cfg.APIHash)
}

func run(ctx context.Context, dial func(config.Bot) (mtproto.Dialer, error)) error {
	// Configure slog
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("sessionbot starting")

	// Load config
	cfgPath := ConfigPath
	if p := os.Getenv("SESSIONBOT_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadBot(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	slog.Info("config loaded", "state", cfg.StatePath, "audit", cfg.DatabaseDSN != "")

	// Durable counters/flags
	store, err := state.Open(cfg.StatePath)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer func() {
		if err := store.Save(); err != nil {
			slog.Error("saving state at shutdown failed", "err", err)
		}
	}()
	slog.Info("state loaded", "generations", store.GenerationCount())

	// Optional audit trail
	if err := audit.RunMigrations(ctx, cfg.DatabaseDSN); err != nil {
		return fmt.Errorf("running audit migrations: %w", err)
	}
	auditLog, err := audit.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer auditLog.Close()

	// Chat transport
	transport, err := tgbot.New(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("creating transport: %w", err)
	}
	slog.Info("transport authorized", "bot", transport.Username())

	logKey, err := cfg.LogKey()
	if err != nil {
		return fmt.Errorf("loading fallback log key: %w", err)
	}
	notifier := notify.New(transport, cfg.OwnerID, cfg.FallbackLog, logKey)

	dialer, err := dial(cfg)
	if err != nil {
		return fmt.Errorf("creating protocol dialer: %w", err)
	}

	b := bot.New(cfg, transport, dialer, store, notifier, auditLog)

	notifier.Notify("sessionbot started")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := transport.Run(gctx, b); err != nil {
			return fmt.Errorf("update loop: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := b.RunReaper(gctx, reaperInterval); err != nil {
			return fmt.Errorf("reaper: %w", err)
		}
		return nil
	})

	return g.Wait()
}
