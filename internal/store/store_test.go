package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/veritail/veritail/internal/db"
	"github.com/veritail/veritail/internal/db/migrations"
	"github.com/veritail/veritail/internal/dbpool"
	"github.com/veritail/veritail/internal/store"
)

// testEnv holds shared test infrastructure (single pool across all tests).
type testEnv struct {
	pool *dbpool.Pool
	log  *logrus.Logger
}

var sharedEnv *testEnv

func getTestEnv(t *testing.T) *testEnv {
	t.Helper()

	if sharedEnv != nil {
		return sharedEnv
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	pool, err := dbpool.NewPool(ctx, dbURL)
	if err != nil {
		t.Fatalf("connecting to test DB: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		t.Fatalf("migrating test DB: %v", err)
	}

	sharedEnv = &testEnv{
		pool: pool,
		log:  log,
	}

	return sharedEnv
}

// setupTestBase empties both tables and returns a fresh Base. The ledger is
// global state, so tests start from a clean chain; the append-only trigger
// has to be dropped for the wipe.
func setupTestBase(t *testing.T) store.Base {
	t.Helper()

	env := getTestEnv(t)
	ctx := context.Background()

	for _, stmt := range []string{
		"ALTER TABLE ledger_entries DISABLE TRIGGER trg_ledger_entries_immutable",
		"DELETE FROM ledger_entries",
		"ALTER TABLE ledger_entries ENABLE TRIGGER trg_ledger_entries_immutable",
		"DELETE FROM entity_versions",
	} {
		if _, err := env.pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("resetting tables (%s): %v", stmt, err)
		}
	}

	return store.Base{Pool: env.pool, Log: env.log}
}

// tamperLedger runs one raw statement against ledger_entries with the
// append-only trigger out of the way, simulating out-of-band modification.
func tamperLedger(t *testing.T, env *testEnv, stmt string, args ...any) {
	t.Helper()

	ctx := context.Background()

	if _, err := env.pool.Exec(ctx, "ALTER TABLE ledger_entries DISABLE TRIGGER trg_ledger_entries_immutable"); err != nil {
		t.Fatalf("disabling trigger: %v", err)
	}
	defer func() {
		if _, err := env.pool.Exec(ctx, "ALTER TABLE ledger_entries ENABLE TRIGGER trg_ledger_entries_immutable"); err != nil {
			t.Fatalf("re-enabling trigger: %v", err)
		}
	}()

	if _, err := env.pool.Exec(ctx, stmt, args...); err != nil {
		t.Fatalf("tampering ledger: %v", err)
	}
}
