// Package service holds the domain logic above the stores: conflict
// detection and merging, ledger integrity verification, version-change
// orchestration, and the async event writer.
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veritail/veritail/internal/canonical"
	"github.com/veritail/veritail/internal/metrics"
	"github.com/veritail/veritail/internal/models"
)

// VersionReader is the version lookup the conflict engine depends on.
type VersionReader interface {
	GetEntityVersion(ctx context.Context, entityType, entityID string) (*models.EntityVersion, error)
}

// CurrentDataFunc fetches the authoritative current data for an entity from
// its owning business store. The second return is false when the entity has
// been deleted server-side.
type CurrentDataFunc func(ctx context.Context, entityType, entityID string) (map[string]any, bool, error)

// ConflictEngine detects concurrent-edit conflicts with a three-way per-field
// diff and resolves them with a chosen merge strategy. All operations are
// pure computations over a consistent snapshot; nothing here persists.
type ConflictEngine struct {
	versions VersionReader
	current  CurrentDataFunc
	log      *logrus.Logger
}

// NewConflictEngine creates a ConflictEngine.
func NewConflictEngine(versions VersionReader, current CurrentDataFunc, log *logrus.Logger) *ConflictEngine {
	return &ConflictEngine{versions: versions, current: current, log: log}
}

// CheckConflictInput carries the client's proposed write and its base.
type CheckConflictInput struct {
	EntityType    string
	EntityID      string
	ClientVersion int64
	ClientData    map[string]any
	OriginalData  map[string]any

	// Entity-level metadata of the client's write, used by keep_newer.
	ClientUpdatedAt time.Time
	ClientUpdatedBy *string
}

// CheckConflict returns nil when the client's base is current and a populated
// ConflictRecord otherwise. Field equality is byte equality of canonical
// encodings, so key order and numeric formatting never cause false conflicts.
func (e *ConflictEngine) CheckConflict(ctx context.Context, in CheckConflictInput) (*models.ConflictRecord, error) {
	server, err := e.versions.GetEntityVersion(ctx, in.EntityType, in.EntityID)
	if err != nil {
		return nil, err
	}

	if server == nil {
		// Never tracked: the client's write is the first one.
		return nil, nil
	}

	clientChecksum, err := canonical.Checksum(in.ClientData)
	if err != nil {
		return nil, err
	}

	// Fast path: identical content is never a conflict, regardless of the
	// version the client claims to have started from.
	if clientChecksum == server.Checksum {
		return nil, nil
	}

	serverData, exists, err := e.current(ctx, in.EntityType, in.EntityID)
	if err != nil {
		return nil, fmt.Errorf("fetching current entity data: %w", err)
	}

	record := &models.ConflictRecord{
		EntityType:      in.EntityType,
		EntityID:        in.EntityID,
		LocalVersion:    in.ClientVersion,
		ServerVersion:   server.Version,
		LocalUpdatedAt:  in.ClientUpdatedAt,
		ServerUpdatedAt: server.UpdatedAt,
		LocalUpdatedBy:  in.ClientUpdatedBy,
		ServerUpdatedBy: server.UpdatedBy,
		ServerDeleted:   !exists,
	}

	if !exists {
		// Deleted server-side: every field the client touched conflicts
		// against the deleted original.
		record.FieldConflicts = deletedConflicts(in.ClientData, in.OriginalData)
	} else {
		record.FieldConflicts = threeWayDiff(in.OriginalData, in.ClientData, serverData)
	}

	if len(record.FieldConflicts) == 0 && in.ClientVersion == server.Version {
		return nil, nil
	}

	metrics.ConflictsDetected.WithLabelValues(in.EntityType).Inc()
	e.log.WithFields(logrus.Fields{
		"entity_type":    in.EntityType,
		"entity_id":      in.EntityID,
		"local_version":  in.ClientVersion,
		"server_version": server.Version,
		"fields":         len(record.FieldConflicts),
	}).Info("conflict detected")

	return record, nil
}

// threeWayDiff compares original (shared base), client, and server data per
// field. A field conflicts only when both sides diverged from the base and
// disagree with each other. Fields are visited in sorted order so the
// resulting list is deterministic.
func threeWayDiff(original, client, server map[string]any) []models.FieldConflict {
	var conflicts []models.FieldConflict

	for _, field := range unionKeys(original, client, server) {
		origVal := original[field]
		clientVal := client[field]
		serverVal := server[field]

		serverChanged := !canonical.Equal(serverVal, origVal)
		clientChanged := !canonical.Equal(clientVal, origVal)

		if !serverChanged {
			continue // server untouched, client's value applies
		}
		if !clientChanged {
			continue // client untouched, server's value wins silently
		}
		if canonical.Equal(clientVal, serverVal) {
			continue // both changed to the identical value
		}

		conflicts = append(conflicts, models.FieldConflict{
			Field:         field,
			LocalValue:    clientVal,
			ServerValue:   serverVal,
			OriginalValue: origVal,
		})
	}

	return conflicts
}

// deletedConflicts lists every field the client changed relative to the base,
// each conflicting with a nil server value.
func deletedConflicts(client, original map[string]any) []models.FieldConflict {
	var conflicts []models.FieldConflict

	for _, field := range unionKeys(original, client) {
		clientVal := client[field]
		origVal := original[field]

		if canonical.Equal(clientVal, origVal) {
			continue
		}

		conflicts = append(conflicts, models.FieldConflict{
			Field:         field,
			LocalValue:    clientVal,
			ServerValue:   nil,
			OriginalValue: origVal,
		})
	}

	return conflicts
}

func unionKeys(maps ...map[string]any) []string {
	seen := make(map[string]bool)
	for _, m := range maps {
		for k := range m {
			seen[k] = true
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// MergeConflict resolves a ConflictRecord against the client's data with the
// given strategy. Pure: the caller commits the merged result through the
// version store afterwards. Resolving the same record twice with the same
// inputs yields the same result.
func (e *ConflictEngine) MergeConflict(
	conflict *models.ConflictRecord,
	clientData map[string]any,
	strategy models.MergeStrategy,
	manualResolutions map[string]any,
) (*models.MergeResult, error) {
	merged := make(map[string]any, len(clientData))
	for k, v := range clientData {
		merged[k] = v
	}

	switch strategy {
	case models.StrategyKeepLocal:
		// Client data verbatim.

	case models.StrategyKeepServer:
		applyServerValues(merged, conflict.FieldConflicts)

	case models.StrategyKeepNewer:
		// Entity-level timestamps; field-level write times are not tracked.
		// Ties favor the server, deterministically.
		if !conflict.LocalUpdatedAt.After(conflict.ServerUpdatedAt) {
			applyServerValues(merged, conflict.FieldConflicts)
		}

	case models.StrategyManual:
		for _, fc := range conflict.FieldConflicts {
			value, ok := manualResolutions[fc.Field]
			if !ok {
				return nil, fmt.Errorf("field %q: %w", fc.Field, models.ErrIncompleteResolution)
			}
			merged[fc.Field] = value
		}

	default:
		return nil, fmt.Errorf("%w: %d", models.ErrUnknownStrategy, int(strategy))
	}

	metrics.ConflictsResolved.WithLabelValues(strategy.String()).Inc()

	return &models.MergeResult{
		MergedData:        merged,
		ConflictsResolved: len(conflict.FieldConflicts),
		StrategyUsed:      strategy,
	}, nil
}

// applyServerValues writes the server side of each field conflict into merged.
// A nil server value means the field, or the whole entity, no longer exists
// server-side, so the key is removed rather than set to an explicit null.
func applyServerValues(merged map[string]any, conflicts []models.FieldConflict) {
	for _, fc := range conflicts {
		if fc.ServerValue == nil {
			delete(merged, fc.Field)
			continue
		}
		merged[fc.Field] = fc.ServerValue
	}
}
