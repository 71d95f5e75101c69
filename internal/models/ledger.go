package models

import "time"

// Well-known ledger actions. The action column is free-form text; these
// constants cover the entries the core itself writes.
const (
	ActionCreate         = "create"
	ActionUpdate         = "update"
	ActionDelete         = "delete"
	ActionVerifyComplete = "verify_complete"
	ActionWriteRejected  = "write_rejected"
)

// GenesisHash is the prev_hash sentinel carried by the first ledger entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// LedgerEntry is one immutable row of the hash-chained audit ledger.
// IDs are assigned at append time and are gapless; PrevHash links each entry
// to its predecessor so retroactive edits are detectable.
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

// LedgerQueryOpts holds filters for querying the ledger.
type LedgerQueryOpts struct {
	EntityType string
	EntityID   string
	Action     string
	Since      *time.Time
	Limit      int
	Offset     int
}
