package models

import "time"

// EntityVersion tracks the version bookkeeping for one business entity,
// keyed by (entity_type, entity_id).
type EntityVersion struct {
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Version    int64     `json:"version"`
	Checksum   string    `json:"checksum"`
	UpdatedAt  time.Time `json:"updated_at"`
	UpdatedBy  *string   `json:"updated_by,omitempty"`
}

// ChangeQueryOpts holds filters for the recent-changes feed.
type ChangeQueryOpts struct {
	EntityType string
	Since      *time.Time
	Limit      int
}

// DefaultChangeLimit caps getRecentChanges when the caller supplies none.
const DefaultChangeLimit = 100
