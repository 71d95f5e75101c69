package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/veritail/veritail/internal/canonical"
	"github.com/veritail/veritail/internal/models"
)

// VersionStore provides data access for the entity_versions table. Every
// version update appends a ledger entry in the same transaction: either both
// rows are durably written or neither is.
type VersionStore struct {
	Base
}

// NewVersionStore creates a VersionStore.
func NewVersionStore(base Base) *VersionStore {
	return &VersionStore{Base: base}
}

// GetEntityVersion returns the version record for an entity, or nil (with no
// error) if the entity has never been version-tracked.
func (s *VersionStore) GetEntityVersion(ctx context.Context, entityType, entityID string) (*models.EntityVersion, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var v models.EntityVersion

	err := s.Pool.QueryRow(ctx, `
		SELECT entity_type, entity_id, version, checksum, updated_at, updated_by
		FROM entity_versions WHERE entity_type = $1 AND entity_id = $2`,
		entityType, entityID,
	).Scan(&v.EntityType, &v.EntityID, &v.Version, &v.Checksum, &v.UpdatedAt, &v.UpdatedBy)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading entity version: %w", err)
	}

	return &v, nil
}

// UpdateEntityVersion records a committed mutation: it bumps the entity's
// version (1 on first write), stores the content checksum, and appends the
// matching ledger entry, all in one transaction guarded by the ledger
// advisory lock.
//
// Version increments on every call, including writes of identical content;
// the checksum alone tells unchanged data apart. Returns the new version
// record and the appended entry.
func (s *VersionStore) UpdateEntityVersion(
	ctx context.Context,
	entityType, entityID string,
	data map[string]any,
	actorID *string,
) (*models.EntityVersion, *models.LedgerEntry, error) {
	// Encoding failures surface before anything touches the database.
	checksum, err := canonical.Checksum(data)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning version update: %w: %w", models.ErrPersistence, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	// The advisory lock serializes the whole version+ledger append across
	// writers. Taking it before reading the current version keeps lock
	// ordering identical in every writer, standalone appends included.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", ledgerLockKey); err != nil {
		return nil, nil, fmt.Errorf("acquiring ledger lock: %w: %w", models.ErrPersistence, err)
	}

	var prevVersion int64

	err = tx.QueryRow(ctx,
		"SELECT version FROM entity_versions WHERE entity_type = $1 AND entity_id = $2 FOR UPDATE",
		entityType, entityID,
	).Scan(&prevVersion)

	action := models.ActionUpdate

	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		prevVersion = 0
		action = models.ActionCreate
	default:
		return nil, nil, fmt.Errorf("reading current version: %w: %w", models.ErrPersistence, err)
	}

	// Soft deletion is itself a mutation: nil data clears the snapshot and
	// bumps the version, it never removes the row.
	if data == nil {
		action = models.ActionDelete
	}

	now := time.Now().UTC().Truncate(time.Microsecond)

	version := models.EntityVersion{
		EntityType: entityType,
		EntityID:   entityID,
		Version:    prevVersion + 1,
		Checksum:   checksum,
		UpdatedAt:  now,
		UpdatedBy:  actorID,
	}

	// The canonical snapshot backs three-way diffs on later conflict checks,
	// so it keeps every key the client sent; only the checksum computation
	// excludes top-level hash fields.
	var dataText *string
	if data != nil {
		b, err := canonical.EncodeContent(data)
		if err != nil {
			return nil, nil, err
		}
		s := string(b)
		dataText = &s
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO entity_versions (entity_type, entity_id, version, checksum, data, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entity_type, entity_id) DO UPDATE
		SET version = EXCLUDED.version, checksum = EXCLUDED.checksum, data = EXCLUDED.data,
		    updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by`,
		version.EntityType, version.EntityID, version.Version,
		version.Checksum, dataText, version.UpdatedAt, version.UpdatedBy,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("upserting entity version: %w: %w", models.ErrPersistence, err)
	}

	entry := &models.LedgerEntry{
		Timestamp:  now,
		Actor:      actorID,
		Action:     action,
		EntityType: &version.EntityType,
		EntityID:   &version.EntityID,
		Detail: map[string]any{
			"version":  version.Version,
			"checksum": checksum,
		},
	}

	if err := appendEntryTx(ctx, tx, entry); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("committing version update: %w: %w", models.ErrPersistence, err)
	}

	return &version, entry, nil
}

// GetCurrentData returns the latest canonical data snapshot for an entity.
// The second return is false when the entity is untracked or its last
// recorded mutation was a deletion (nil data).
func (s *VersionStore) GetCurrentData(ctx context.Context, entityType, entityID string) (map[string]any, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var dataText *string

	err := s.Pool.QueryRow(ctx,
		"SELECT data FROM entity_versions WHERE entity_type = $1 AND entity_id = $2",
		entityType, entityID,
	).Scan(&dataText)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading entity data: %w", err)
	}

	if dataText == nil {
		return nil, false, nil
	}

	dec := json.NewDecoder(strings.NewReader(*dataText))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, false, fmt.Errorf("decoding entity data: %w", err)
	}

	return data, true, nil
}

// GetRecentChanges returns version records updated at or after opts.Since
// (epoch when unset), optionally filtered by entity type, ordered by
// updated_at ascending. Pure read against a consistent snapshot.
func (s *VersionStore) GetRecentChanges(ctx context.Context, opts models.ChangeQueryOpts) ([]models.EntityVersion, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	limit := opts.Limit
	if limit <= 0 {
		limit = models.DefaultChangeLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	since := time.Time{}
	if opts.Since != nil {
		since = *opts.Since
	}

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning changes read: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx, rollback after scan.

	query := `
		SELECT entity_type, entity_id, version, checksum, updated_at, updated_by
		FROM entity_versions WHERE updated_at >= $1`
	args := []any{since}

	if opts.EntityType != "" {
		query += " AND entity_type = $2"
		args = append(args, opts.EntityType)
	}

	query += fmt.Sprintf(" ORDER BY updated_at ASC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying recent changes: %w", err)
	}
	defer rows.Close()

	changes := make([]models.EntityVersion, 0, limit)

	for rows.Next() {
		var v models.EntityVersion
		if err := rows.Scan(&v.EntityType, &v.EntityID, &v.Version, &v.Checksum, &v.UpdatedAt, &v.UpdatedBy); err != nil {
			return nil, fmt.Errorf("scanning change row: %w", err)
		}
		changes = append(changes, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating change rows: %w", err)
	}

	return changes, nil
}
