package client

import "time"

// EntityVersion is the tracked version record for one entity.
type EntityVersion struct {
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Version    int64     `json:"version"`
	Checksum   string    `json:"checksum"`
	UpdatedAt  time.Time `json:"updated_at"`
	UpdatedBy  *string   `json:"updated_by,omitempty"`
}

// LedgerEntry is one immutable row of the hash-chained audit ledger.
type LedgerEntry struct {
	ID         int64          `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Actor      *string        `json:"actor,omitempty"`
	Action     string         `json:"action"`
	EntityType *string        `json:"entity_type,omitempty"`
	EntityID   *string        `json:"entity_id,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	PrevHash   string         `json:"prev_hash"`
	Hash       string         `json:"hash"`
}

// FieldConflict describes one field where the client and the server both
// diverged from the shared base and disagree on the result.
type FieldConflict struct {
	Field         string `json:"field"`
	LocalValue    any    `json:"local_value"`
	ServerValue   any    `json:"server_value"`
	OriginalValue any    `json:"original_value"`
}

// ConflictRecord is the server's per-field diff for a rejected write.
type ConflictRecord struct {
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	LocalVersion    int64           `json:"local_version"`
	ServerVersion   int64           `json:"server_version"`
	LocalUpdatedAt  time.Time       `json:"local_updated_at"`
	ServerUpdatedAt time.Time       `json:"server_updated_at"`
	LocalUpdatedBy  *string         `json:"local_updated_by,omitempty"`
	ServerUpdatedBy *string         `json:"server_updated_by,omitempty"`
	ServerDeleted   bool            `json:"server_deleted,omitempty"`
	FieldConflicts  []FieldConflict `json:"field_conflicts"`
}

// MergeResult is the outcome of a merge call. Nothing is persisted; commit
// MergedData to make it durable.
type MergeResult struct {
	MergedData        map[string]any `json:"merged_data"`
	ConflictsResolved int            `json:"conflicts_resolved"`
	StrategyUsed      string         `json:"strategy_used"`
}

// Merge strategies accepted by Merge.
const (
	StrategyKeepLocal  = "keep_local"
	StrategyKeepServer = "keep_server"
	StrategyKeepNewer  = "keep_newer"
	StrategyManual     = "manual"
)

// CommitRequest is the payload for committing a mutation. Set BaseVersion
// (and optionally OriginalData) to have the server run a conflict check
// before writing.
type CommitRequest struct {
	Data            map[string]any `json:"data"`
	ActorID         *string        `json:"actor_id,omitempty"`
	BaseVersion     *int64         `json:"base_version,omitempty"`
	OriginalData    map[string]any `json:"original_data,omitempty"`
	ClientUpdatedAt *time.Time     `json:"client_updated_at,omitempty"`
}

// CheckRequest is the payload for a standalone conflict check.
type CheckRequest struct {
	ClientVersion   int64          `json:"client_version"`
	ClientData      map[string]any `json:"client_data"`
	OriginalData    map[string]any `json:"original_data,omitempty"`
	ActorID         *string        `json:"actor_id,omitempty"`
	ClientUpdatedAt *time.Time     `json:"client_updated_at,omitempty"`
}

// MergeRequest is the payload for resolving a conflict.
type MergeRequest struct {
	Conflict          *ConflictRecord `json:"conflict"`
	ClientData        map[string]any  `json:"client_data"`
	Strategy          string          `json:"strategy"`
	ManualResolutions map[string]any  `json:"manual_resolutions,omitempty"`
}

// DeleteOptions carries the optional payload for a tracked deletion.
type DeleteOptions struct {
	ActorID     *string `json:"actor_id,omitempty"`
	BaseVersion *int64  `json:"base_version,omitempty"`
}

// ChangeListOptions filters the catch-up change feed.
type ChangeListOptions struct {
	EntityType string
	Since      *time.Time
	Limit      int
}

// LedgerQueryOptions filters ledger reads.
type LedgerQueryOptions struct {
	EntityType string
	EntityID   string
	Action     string
	Since      *time.Time
	Limit      int
	Offset     int
}

// ChainError reports one broken link found during verification.
type ChainError struct {
	EntryID int64  `json:"entry_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// VerificationResult is the outcome of one verification run.
type VerificationResult struct {
	Valid        bool         `json:"valid"`
	Errors       []ChainError `json:"errors"`
	CheckedCount int64        `json:"checked_count"`
}

// LastCheck is a snapshot of the most recent completed verification run.
type LastCheck struct {
	At           time.Time    `json:"at"`
	Outcome      string       `json:"outcome"`
	Valid        bool         `json:"valid"`
	Errors       []ChainError `json:"errors"`
	CheckedCount int64        `json:"checked_count"`
	StartID      int64        `json:"start_id"`
	EndID        int64        `json:"end_id"`
}

// VerifyStatus is the verifier's polled state.
type VerifyStatus struct {
	IsChecking bool       `json:"is_checking"`
	LastCheck  *LastCheck `json:"last_check"`
}

// HealthResponse is the liveness check payload.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	LedgerValid   *bool   `json:"ledger_valid,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}
