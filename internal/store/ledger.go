package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/veritail/veritail/internal/canonical"
	"github.com/veritail/veritail/internal/models"
)

// LedgerStore provides data access for the append-only ledger_entries table.
type LedgerStore struct {
	Base
}

// NewLedgerStore creates a LedgerStore.
func NewLedgerStore(base Base) *LedgerStore {
	return &LedgerStore{Base: base}
}

// Append writes a standalone ledger entry (one not tied to a version update,
// e.g. a security event). The entry's ID, PrevHash, Hash, and Timestamp are
// assigned here; any values the caller set for them are ignored.
func (s *LedgerStore) Append(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning ledger append: %w: %w", models.ErrPersistence, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	if err := appendEntryTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing ledger append: %w: %w", models.ErrPersistence, err)
	}

	return entry, nil
}

// appendEntryTx appends a ledger entry within an existing transaction.
// Package-level so VersionStore can chain the entry into the same atomic
// write as the version row.
//
// It takes the ledger advisory lock for the transaction's duration, so id
// assignment and prev_hash linkage never race between concurrent writers,
// in-process or across processes.
func appendEntryTx(ctx context.Context, tx pgx.Tx, entry *models.LedgerEntry) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", ledgerLockKey); err != nil {
		return fmt.Errorf("acquiring ledger lock: %w: %w", models.ErrPersistence, err)
	}

	var lastID int64
	var lastHash string

	err := tx.QueryRow(ctx,
		"SELECT id, hash FROM ledger_entries ORDER BY id DESC LIMIT 1",
	).Scan(&lastID, &lastHash)

	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		lastID, lastHash = 0, models.GenesisHash
	default:
		return fmt.Errorf("reading ledger head: %w: %w", models.ErrPersistence, err)
	}

	entry.ID = lastID + 1
	entry.PrevHash = lastHash

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	// Normalize to what the timestamptz column round-trips, so the stored
	// row re-hashes to the same value during verification.
	entry.Timestamp = entry.Timestamp.UTC().Truncate(time.Microsecond)

	hash, err := canonical.EntryHash(entry.PrevHash, entry)
	if err != nil {
		return err
	}
	entry.Hash = hash

	var detailText *string
	if entry.Detail != nil {
		// Store the exact canonical text that went into the hash (detail is
		// nested content there, so nothing is excluded); the json column
		// type preserves it byte-for-byte.
		b, err := canonical.EncodeContent(entry.Detail)
		if err != nil {
			return err
		}
		s := string(b)
		detailText = &s
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, ts, actor, action, entity_type, entity_id, detail, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.Timestamp, entry.Actor, entry.Action,
		entry.EntityType, entry.EntityID, detailText, entry.PrevHash, entry.Hash,
	)
	if err != nil {
		return fmt.Errorf("inserting ledger entry: %w: %w", models.ErrPersistence, err)
	}

	return nil
}

// GetLatestID returns the highest assigned entry id, or 0 for an empty ledger.
func (s *LedgerStore) GetLatestID(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var id int64
	if err := s.Pool.QueryRow(ctx, "SELECT COALESCE(MAX(id), 0) FROM ledger_entries").Scan(&id); err != nil {
		return 0, fmt.Errorf("reading latest ledger id: %w", err)
	}

	return id, nil
}

// GetRange returns entries with id in [startID, endID], ordered ascending.
// Used by the integrity verifier to read the chain in bounded chunks.
func (s *LedgerStore) GetRange(ctx context.Context, startID, endID int64) ([]models.LedgerEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `
		SELECT id, ts, actor, action, entity_type, entity_id, detail, prev_hash, hash
		FROM ledger_entries WHERE id >= $1 AND id <= $2 ORDER BY id ASC`,
		startID, endID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying ledger range: %w", err)
	}
	defer rows.Close()

	return scanLedgerRows(rows)
}

// GetEntry returns a single entry by id, or models.ErrEntryNotFound.
func (s *LedgerStore) GetEntry(ctx context.Context, id int64) (*models.LedgerEntry, error) {
	entries, err := s.GetRange(ctx, id, id)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("entry %d: %w", id, models.ErrEntryNotFound)
	}

	return &entries[0], nil
}

// buildLedgerFilter builds WHERE clause and args from LedgerQueryOpts.
func buildLedgerFilter(opts models.LedgerQueryOpts) (where string, args []any, nextArg int) {
	var conditions []string
	argIdx := 1

	if opts.EntityType != "" {
		conditions = append(conditions, "entity_type = $"+strconv.Itoa(argIdx))
		args = append(args, opts.EntityType)
		argIdx++
	}
	if opts.EntityID != "" {
		conditions = append(conditions, "entity_id = $"+strconv.Itoa(argIdx))
		args = append(args, opts.EntityID)
		argIdx++
	}
	if opts.Action != "" {
		conditions = append(conditions, "action = $"+strconv.Itoa(argIdx))
		args = append(args, opts.Action)
		argIdx++
	}
	if opts.Since != nil {
		conditions = append(conditions, "ts >= $"+strconv.Itoa(argIdx))
		args = append(args, *opts.Since)
		argIdx++
	}

	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	return where, args, argIdx
}

// Query returns ledger entries matching the given filters, newest first.
// Returns entries, hasMore flag, and any error.
func (s *LedgerStore) Query(ctx context.Context, opts models.LedgerQueryOpts) ([]models.LedgerEntry, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	where, args, argIdx := buildLedgerFilter(opts)

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := fmt.Sprintf(`
		SELECT id, ts, actor, action, entity_type, entity_id, detail, prev_hash, hash
		FROM ledger_entries %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1,
	)
	args = append(args, limit+1, opts.Offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	entries, err := scanLedgerRows(rows)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	return entries, hasMore, nil
}

// scanLedgerRows scans ledger entries from a result set. Detail text is
// decoded with UseNumber so numeric literals keep their stored form and the
// entry re-hashes identically during verification.
func scanLedgerRows(rows pgx.Rows) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry

	for rows.Next() {
		var e models.LedgerEntry
		var detailText *string

		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.Actor, &e.Action,
			&e.EntityType, &e.EntityID, &detailText, &e.PrevHash, &e.Hash,
		); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}

		if detailText != nil {
			dec := json.NewDecoder(bytes.NewReader([]byte(*detailText)))
			dec.UseNumber()

			if err := dec.Decode(&e.Detail); err != nil {
				return nil, fmt.Errorf("decoding ledger detail for entry %d: %w", e.ID, err)
			}
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger rows: %w", err)
	}

	return entries, nil
}
