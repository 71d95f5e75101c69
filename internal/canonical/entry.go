package canonical

import (
	"time"

	"github.com/veritail/veritail/internal/models"
)

// FormatTimestamp renders a timestamp in the form used inside chain hashes.
// Truncated to microseconds so values survive a timestamptz round trip.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
}

// EntryPayload returns the canonical encoding of a ledger entry's hashed
// fields. The hash and prev_hash columns are excluded: prev_hash enters the
// chain hash as a prefix, and hash is the output.
func EntryPayload(e *models.LedgerEntry) ([]byte, error) {
	return Encode(map[string]any{
		"id":          e.ID,
		"timestamp":   FormatTimestamp(e.Timestamp),
		"actor":       e.Actor,
		"action":      e.Action,
		"entity_type": e.EntityType,
		"entity_id":   e.EntityID,
		"detail":      e.Detail,
	})
}

// EntryHash computes the chain hash for a ledger entry given its
// predecessor's hash.
func EntryHash(prevHash string, e *models.LedgerEntry) (string, error) {
	payload, err := EntryPayload(e)
	if err != nil {
		return "", err
	}

	return ChainHash(prevHash, payload), nil
}
