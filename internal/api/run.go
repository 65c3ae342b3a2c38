package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/frol/connect-volunteers-bot/internal/ledger"
	"github.com/frol/connect-volunteers-bot/internal/session"
	"github.com/frol/connect-volunteers-bot/internal/store"
	"github.com/frol/connect-volunteers-bot/internal/telegram"
)

// shutdownTimeout bounds the HTTP server drain on exit.
const shutdownTimeout = 10 * time.Second

// Run wires the configured modules together and blocks until the process
// receives an interrupt or a module fails fatally: it builds the store, the
// ledger sink, and the Telegram client, starts the session driver loop and
// the operator HTTP server, and shuts everything down gracefully.
func Run(telegramOpts []telegram.Option, storeOpts []store.Option, destinationsPath string, ledgerOpts []ledger.Option, apiOpts []Option) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	destinations, err := ledger.LoadDestinations(destinationsPath)
	if err != nil {
		return fmt.Errorf("failed to load ledger destinations: %w", err)
	}
	sink, err := ledger.NewSheetsSink(ctx, destinations, ledgerOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize ledger sink: %w", err)
	}

	bot, err := telegram.NewClient(telegramOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram client: %w", err)
	}

	driver := session.NewDriver(st, bot, sink)

	if err := bot.Start(ctx); err != nil {
		return fmt.Errorf("failed to start telegram client: %w", err)
	}

	server := NewServer(st, apiOpts...)
	httpServer := &http.Server{Addr: server.Addr(), Handler: server.Router()}
	httpErr := make(chan error, 1)
	go func() {
		slog.Info("Operator API listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	// Each message is handled in its own goroutine; the store serializes
	// events per session key, so concurrency across participants is safe.
	var handlers sync.WaitGroup
	messageLoopDone := make(chan struct{})
	go func() {
		defer close(messageLoopDone)
		for msg := range bot.Messages() {
			msg := msg
			handlers.Add(1)
			go func() {
				defer handlers.Done()
				if err := driver.HandleMessage(ctx, msg); err != nil {
					slog.Error("Failed to process inbound message", "error", err, "sessionKey", msg.SessionKey)
				}
			}()
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-httpErr:
		slog.Error("Operator API server failed", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Operator API shutdown failed", "error", err)
	}

	bot.Stop()
	<-messageLoopDone
	handlers.Wait()
	slog.Info("Bot stopped")
	return nil
}
