// Package store provides focused, single-concern data access stores for the
// versioning core.
//
// Each store owns one table (entity_versions, ledger_entries) and embeds
// shared helpers (Pool, logger) via the Base struct. Stores never import each
// other — the one piece of cross-store logic, appending a ledger entry inside
// a version-update transaction, lives in the package-level appendEntryTx.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/veritail/veritail/internal/dbpool"
)

const defaultQueryTimeout = 30 * time.Second

// maxListLimit caps page sizes on list reads.
const maxListLimit = 1000

// ledgerLockKey is the advisory lock key serializing all ledger appends.
// The chain is a single global sequence, so writers touching different
// entities still serialize here.
const ledgerLockKey = int64(0x7665726c6564) // "verled"

// Base contains shared dependencies for all stores.
// Embed this in each store struct.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// beginReadTx starts a read-only transaction so list reads observe a
// consistent snapshot without blocking writers.
func (b *Base) beginReadTx(ctx context.Context) (pgx.Tx, error) {
	return b.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
}
