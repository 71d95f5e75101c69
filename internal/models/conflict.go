package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// FieldConflict describes one field where the client and the server both
// diverged from the shared base and disagree on the result.
type FieldConflict struct {
	Field         string `json:"field"`
	LocalValue    any    `json:"local_value"`
	ServerValue   any    `json:"server_value"`
	OriginalValue any    `json:"original_value"`
}

// ConflictRecord is the ephemeral result of a conflict check. It is built per
// check, handed to a merge call, and discarded; nothing persists it.
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

// MergeStrategy is a closed set of conflict resolution policies. New
// strategies require extending the switch in every consumer, which the
// compiler flags via mergeStrategyNames.
type MergeStrategy int

const (
	// StrategyKeepLocal keeps the client's data verbatim.
	StrategyKeepLocal MergeStrategy = iota
	// StrategyKeepServer keeps the server's value for every conflicted field.
	StrategyKeepServer
	// StrategyKeepNewer takes each conflicted field from whichever side wrote
	// more recently; ties favor the server.
	StrategyKeepNewer
	// StrategyManual requires an explicit per-field decision for every conflict.
	StrategyManual
)

var mergeStrategyNames = [...]string{
	StrategyKeepLocal:  "keep_local",
	StrategyKeepServer: "keep_server",
	StrategyKeepNewer:  "keep_newer",
	StrategyManual:     "manual",
}

// String returns the wire name of the strategy.
func (s MergeStrategy) String() string {
	if s < 0 || int(s) >= len(mergeStrategyNames) {
		return fmt.Sprintf("MergeStrategy(%d)", int(s))
	}
	return mergeStrategyNames[s]
}

// ParseMergeStrategy converts a wire name into a MergeStrategy.
func ParseMergeStrategy(name string) (MergeStrategy, error) {
	for i, n := range mergeStrategyNames {
		if n == name {
			return MergeStrategy(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// MarshalJSON encodes the strategy as its wire name.
func (s MergeStrategy) MarshalJSON() ([]byte, error) {
	if s < 0 || int(s) >= len(mergeStrategyNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a wire name into the strategy.
func (s *MergeStrategy) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	parsed, err := ParseMergeStrategy(name)
	if err != nil {
		return err
	}

	*s = parsed
	return nil
}

// MergeResult is the outcome of resolving a ConflictRecord. MergedData is
// never persisted here; the caller commits it through the version store.
type MergeResult struct {
	MergedData        map[string]any `json:"merged_data"`
	ConflictsResolved int            `json:"conflicts_resolved"`
	StrategyUsed      MergeStrategy  `json:"strategy_used"`
}
