package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/veloralabs/liqlock/internal/blob/s3"
	"github.com/veloralabs/liqlock/internal/cache/redis"
	"github.com/veloralabs/liqlock/internal/config"
	"github.com/veloralabs/liqlock/internal/crypto"
	"github.com/veloralabs/liqlock/internal/custodian/rpc"
	"github.com/veloralabs/liqlock/internal/domain"
	"github.com/veloralabs/liqlock/internal/notify"
	"github.com/veloralabs/liqlock/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	LockStore  domain.LockStore
	EventStore domain.EventStore

	// Redis
	ClaimCache  domain.ClaimCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage (archive mode)
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// External collaborators (serve mode)
	Custodian domain.PositionCustodian
	Bank      domain.AssetTransfer

	// Notifications
	Notifier *notify.Notifier

	// Raw clients kept for health checks.
	Postgres *postgres.Client
	Redis    *redis.Client
}

// needsS3 returns true for modes that require object storage.
func needsS3(mode string) bool {
	return mode == "archive"
}

// needsCustodian returns true for modes that issue custodian RPCs.
func needsCustodian(mode string) bool {
	return mode == "serve"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Postgres = pgClient
	deps.LockStore = postgres.NewLockStore(pool)
	deps.EventStore = postgres.NewEventStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Redis = redisClient
	deps.ClaimCache = redis.NewClaimCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.BlobReader, postgres.NewEventStore(pool))
	}

	// --- Custodian RPC ---
	if needsCustodian(cfg.Mode) {
		var auth *crypto.HMACAuth
		if cfg.Custodian.APIKey != "" {
			secret, err := crypto.LoadSecret(crypto.SecretConfig{
				RawSecret:           cfg.Custodian.APISecret,
				EncryptedSecretPath: cfg.Custodian.EncryptedSecretPath,
				SecretPassword:      cfg.Custodian.SecretPassword,
			})
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: custodian secret: %w", err)
			}
			auth = &crypto.HMACAuth{Key: cfg.Custodian.APIKey, Secret: secret}
		}

		client := rpc.NewClient(cfg.Custodian.BaseURL, auth)
		deps.Custodian = rpc.NewCustodian(client)
		deps.Bank = rpc.NewBank(client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	events := make([]domain.EventType, 0, len(cfg.Notify.Events))
	for _, e := range cfg.Notify.Events {
		events = append(events, domain.EventType(e))
	}
	deps.Notifier = notify.NewNotifier(senders, events, logger)

	return deps, cleanup, nil
}
