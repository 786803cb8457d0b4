// Package app wires the services shared by the server and worker binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/domainwatch/internal/config"
	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/lookup"
	"github.com/ignite/domainwatch/internal/metrics"
	"github.com/ignite/domainwatch/internal/pkg/cache"
	"github.com/ignite/domainwatch/internal/pkg/distlock"
	"github.com/ignite/domainwatch/internal/pkg/dohresolver"
	"github.com/ignite/domainwatch/internal/pkg/httpretry"
	"github.com/ignite/domainwatch/internal/pkg/logger"
	"github.com/ignite/domainwatch/internal/pkg/safefetch"
	"github.com/ignite/domainwatch/internal/repository/postgres"
	"github.com/ignite/domainwatch/internal/service/domains"
	"github.com/ignite/domainwatch/internal/service/monitor"
	"github.com/ignite/domainwatch/internal/service/notification"
	"github.com/ignite/domainwatch/internal/service/revalidate"
	"github.com/ignite/domainwatch/internal/service/verification"
	"github.com/ignite/domainwatch/internal/storage"
	"github.com/ignite/domainwatch/internal/worker"
)

// App holds every long-lived dependency. Optional parts (Redis, Archive)
// are nil when not configured.
type App struct {
	Config  *config.Config
	Log     *logger.Logger
	Metrics *metrics.Metrics

	DB      *sql.DB
	Redis   *redis.Client
	Archive *storage.SnapshotArchive

	TrackedDomains *postgres.TrackedDomainRepo
	Runs           *postgres.RunRepo
	Notifications  *postgres.NotificationRepo

	Verifier    *verification.Engine
	Lookups     *lookup.Client
	Notifier    *notification.Dispatcher
	Monitor     *monitor.Service
	Domains     *domains.Service
	Revalidator *revalidate.Dispatcher

	AutoVerify     *worker.AutoVerifyScheduler
	ReverifySweep  *worker.ReverificationSweep
	PendingSweep   *worker.PendingSweep
	RecoveryWorker *worker.RunRecoveryWorker
	CleanupWorker  *worker.DataCleanupWorker
}

// New connects to Postgres (and Redis, S3, SES when configured) and builds
// the service graph.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{Config: cfg, Log: log, Metrics: metrics.New(reg)}

	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db

	if cfg.Redis.Enabled && cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.Redis = redis.NewClient(opts)
	}

	var archiver monitor.Archiver
	if cfg.Archive.S3Bucket != "" {
		a.Archive, err = storage.NewSnapshotArchive(ctx, cfg.Archive.S3Bucket, cfg.Archive.AWSRegion)
		if err != nil {
			a.Close()
			return nil, err
		}
		archiver = a.Archive
	}

	var email notification.EmailSender
	if cfg.Notifications.Enabled {
		sender, err := notification.NewSESSender(ctx, cfg.Notifications.AWSRegion, cfg.Notifications.FromEmail,
			cfg.Notifications.AccessKey, cfg.Notifications.SecretKey)
		if err != nil {
			a.Close()
			return nil, err
		}
		email = sender
	}

	a.TrackedDomains = postgres.NewTrackedDomainRepo(db)
	a.Runs = postgres.NewRunRepo(db)
	a.Notifications = postgres.NewNotificationRepo(db)

	vc := cfg.Verification
	httpClient := httpretry.NewRetryClient(&http.Client{Timeout: vc.Timeout()}, 2, httpretry.WithLogger(log))
	resolver := dohresolver.New(vc.DoHProviders, httpClient)
	fetcher := safefetch.New()

	a.Verifier = verification.NewEngine(resolver, fetcher, verification.Config{
		Timeout:      vc.Timeout(),
		MaxBytes:     vc.MaxBytes,
		MetaMaxBytes: vc.MetaMaxBytes,
		UserAgent:    vc.UserAgent,
	}, log, a.Metrics)
	a.Lookups = lookup.New(resolver, fetcher,
		lookup.WithTimeout(vc.Timeout()),
		lookup.WithUserAgent(vc.UserAgent),
		lookup.WithLogger(log))

	a.Notifier = notification.NewDispatcher(a.Notifications, email, log, a.Metrics)
	a.Monitor = monitor.NewService(postgres.NewMonitorRepo(db), a.Lookups, a.Notifier, archiver, log)
	a.Revalidator = revalidate.NewDispatcher(a.Lookups, cache.New(a.Redis, cfg.Redis.CacheTTL(), log), log, a.Metrics)

	av := cfg.AutoVerify
	a.AutoVerify = worker.NewAutoVerifyScheduler(a.Runs, a.TrackedDomains, a.Verifier, worker.AutoVerifyConfig{
		PollInterval: av.PollInterval(),
		ClaimLimit:   av.ClaimLimit,
	}, log, a.Metrics).WithRefresher(a.Monitor)
	a.Domains = domains.NewService(a.TrackedDomains, a.Verifier, a.AutoVerify, log).WithRefresher(a.Monitor)

	rc := cfg.Reverification
	sweepCfg := worker.SweepConfig{BatchSize: rc.BatchSize, UnitsPerSecond: rc.UnitsPerSecond}
	reverifier := worker.NewReverifier(a.TrackedDomains, a.Verifier, a.Monitor, a.Notifier, rc.GracePeriod(), log)
	a.ReverifySweep = worker.NewReverificationSweep(a.TrackedDomains,
		worker.NewUnitStarter(a.Runs, domain.RunKindReverify, reverifier.Reverify, log),
		sweepCfg, log, a.Metrics)
	pending := worker.NewPendingVerifier(a.TrackedDomains, a.Verifier, log).WithRefresher(a.Monitor)
	a.PendingSweep = worker.NewPendingSweep(a.TrackedDomains,
		worker.NewUnitStarter(a.Runs, domain.RunKindVerifyPending, pending.VerifyPending, log),
		sweepCfg, log, a.Metrics)

	a.RecoveryWorker = worker.NewRunRecoveryWorker(a.Runs, 0, av.StaleClaim(), log, a.Metrics)
	a.CleanupWorker = worker.NewDataCleanupWorker(a.Runs, a.Notifications, 0, log).
		WithLock(distlock.New(a.Redis, db, "data-cleanup", 30*time.Minute))

	return a, nil
}

// Close releases the connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
