package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/veloralabs/liqlock/internal/domain"
	"github.com/veloralabs/liqlock/internal/ledger"
	"github.com/veloralabs/liqlock/internal/notify"
	"github.com/veloralabs/liqlock/internal/server"
	"github.com/veloralabs/liqlock/internal/server/handler"
	"github.com/veloralabs/liqlock/internal/server/ws"
	"github.com/veloralabs/liqlock/internal/service"
	"github.com/veloralabs/liqlock/internal/token"
)

// archiveLockKey is the distributed lock held while an archive run is in
// flight, so overlapping cron invocations do not double-archive.
const archiveLockKey = "archive:events"

// ServeMode hydrates the ledger from the durable mirror and runs the HTTP +
// WebSocket API until the context is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	led := ledger.New(ledger.NewCounterSequence())
	registry := token.NewRegistry()

	if err := a.hydrate(ctx, deps, led, registry); err != nil {
		return err
	}

	clock := domain.SystemClock
	holding := common.HexToAddress(a.cfg.Custodian.HoldingAddress)

	intakeSvc := service.NewIntakeService(
		led, registry, deps.Custodian, deps.LockStore, deps.ClaimCache,
		deps.EventStore, deps.SignalBus, clock, a.logger,
	)
	withdrawSvc := service.NewWithdrawService(
		led, registry, deps.Custodian, deps.Bank, deps.LockStore,
		deps.EventStore, deps.SignalBus, clock, holding, a.logger,
	)
	releaseSvc := service.NewReleaseService(
		led, registry, deps.Custodian, deps.LockStore, deps.ClaimCache,
		deps.EventStore, deps.SignalBus, clock, a.logger,
	)
	lookupSvc := service.NewLookupService(led, registry, deps.ClaimCache, a.logger)

	hub := ws.NewHub(deps.SignalBus, service.EventChannel, service.EventStream, a.logger)

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": deps.Postgres,
			"redis":    deps.Redis,
		}, a.logger),
		Locks: handler.NewLockHandler(
			intakeSvc, withdrawSvc, releaseSvc, lookupSvc,
			clock, a.cfg.Server.VerifySignatures, a.logger,
		),
		Lookup: handler.NewLookupHandler(lookupSvc, a.logger),
		Events: handler.NewEventsHandler(deps.EventStore, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := hub.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	alerter := notify.NewAlerter(deps.SignalBus, deps.Notifier, service.EventChannel, a.logger)
	g.Go(func() error {
		err := alerter.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// hydrate rebuilds the in-memory ledger and claim registry from the durable
// mirror. The sequence is seeded above the highest persisted claim ID so
// identifiers are never recycled across restarts.
func (a *App) hydrate(ctx context.Context, deps *Dependencies, led *ledger.Ledger, registry *token.Registry) error {
	records, err := deps.LockStore.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("app: load locks: %w", err)
	}
	if err := led.Hydrate(records); err != nil {
		return fmt.Errorf("app: hydrate ledger: %w", err)
	}
	for _, rec := range records {
		if err := registry.Mint(rec.ClaimID, rec.Depositor); err != nil {
			return fmt.Errorf("app: hydrate registry: %w", err)
		}
	}

	a.logger.InfoContext(ctx, "ledger hydrated",
		slog.Int("records", len(records)),
	)
	return nil
}

// ArchiveMode flushes events older than the retention window to S3 and
// exits. A distributed lock keeps concurrent runs from double-archiving.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
	)

	unlock, err := deps.LockManager.Acquire(ctx, archiveLockKey, a.cfg.Archive.LockTTL.Duration)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			a.logger.WarnContext(ctx, "archive already running elsewhere, skipping")
			return nil
		}
		return fmt.Errorf("app: archive lock: %w", err)
	}
	defer unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
	count, err := deps.Archiver.ArchiveEvents(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("app: archive events: %w", err)
	}

	a.logger.InfoContext(ctx, "archive complete",
		slog.Int64("events", count),
		slog.Time("cutoff", cutoff),
	)
	return nil
}
