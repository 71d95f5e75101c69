// veritaild is the versioning and audit-ledger service: it tracks per-entity
// versions with optimistic concurrency, detects and merges concurrent edits,
// and keeps a tamper-evident hash-chained ledger of every mutation.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/veritail/veritail/internal/api"
	"github.com/veritail/veritail/internal/config"
	"github.com/veritail/veritail/internal/db"
	"github.com/veritail/veritail/internal/db/migrations"
	"github.com/veritail/veritail/internal/dbpool"
	"github.com/veritail/veritail/internal/feed"
	"github.com/veritail/veritail/internal/service"
	"github.com/veritail/veritail/internal/store"
)

// version is set via ldflags at build time.
var version = "0.3.0-dev"

const shutdownTimeout = 10 * time.Second

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := run(log); err != nil {
		log.WithError(err).Fatal("veritaild exited")
	}
}

func run(log *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		return err
	}

	base := store.Base{Pool: pool, Log: log}
	versionStore := store.NewVersionStore(base)
	ledgerStore := store.NewLedgerStore(base)

	hub := feed.NewHub(log)
	versions := service.NewVersionService(versionStore, hub, log)
	conflicts := service.NewConflictEngine(versionStore, versionStore.GetCurrentData, log)
	verifier := service.NewIntegrityVerifier(ledgerStore, log)
	events := service.NewEventWorker(ledgerStore, log, cfg.EventQueueSize)
	scheduler := service.NewVerifyScheduler(verifier, events, log, cfg.VerifyInterval)

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:         log,
		Pool:        pool,
		Hub:         hub,
		Versions:    versions,
		Conflicts:   conflicts,
		Ledger:      ledgerStore,
		Verifier:    verifier,
		Events:      events,
		CORSOrigins: cfg.CORSOrigins,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		events.Run(gctx)
		return nil
	})

	g.Go(func() error {
		scheduler.Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.WithFields(logrus.Fields{"addr": cfg.Addr(), "version": version}).Info("veritaild listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		// Wait for the feed hub to finish closing client connections.
		select {
		case <-hub.Done():
		case <-shutdownCtx.Done():
		}

		return nil
	})

	return g.Wait()
}
