package client

import (
	"context"
	"encoding/json"
	"net/url"
)

// EntityService handles version, commit, and conflict operations for tracked
// entities.
type EntityService struct {
	c *Client
}

func entityPath(entityType, entityID string) string {
	return "/api/v1/entities/" + url.PathEscape(entityType) + "/" + url.PathEscape(entityID)
}

// GetVersion returns the tracked version for an entity. IsNotFound reports
// entities that have never been written.
func (s *EntityService) GetVersion(ctx context.Context, entityType, entityID string) (*EntityVersion, error) {
	var v EntityVersion
	if err := s.c.get(ctx, entityPath(entityType, entityID)+"/version", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Commit writes an entity mutation. When req.BaseVersion is set and the base
// is stale, the server rejects the write and Commit returns a *ConflictError
// carrying the conflict record; resolve it with Merge and commit again.
func (s *EntityService) Commit(ctx context.Context, entityType, entityID string, req *CommitRequest) (*EntityVersion, error) {
	var v EntityVersion
	err := s.c.post(ctx, entityPath(entityType, entityID), req, &v)
	if err != nil {
		if conflictErr := asConflictError(err); conflictErr != nil {
			return nil, conflictErr
		}
		return nil, err
	}
	return &v, nil
}

// Delete records a tracked deletion. The version row survives with its data
// cleared; a delete entry lands on the ledger.
func (s *EntityService) Delete(ctx context.Context, entityType, entityID string, opts *DeleteOptions) (*EntityVersion, error) {
	var v EntityVersion
	var body any
	if opts != nil {
		body = opts
	}
	err := s.c.del(ctx, entityPath(entityType, entityID), body, &v)
	if err != nil {
		if conflictErr := asConflictError(err); conflictErr != nil {
			return nil, conflictErr
		}
		return nil, err
	}
	return &v, nil
}

// Check runs a standalone conflict check without writing anything. A nil
// record means the client's base is current.
func (s *EntityService) Check(ctx context.Context, entityType, entityID string, req *CheckRequest) (*ConflictRecord, error) {
	var resp struct {
		Conflict *ConflictRecord `json:"conflict"`
	}
	if err := s.c.post(ctx, entityPath(entityType, entityID)+"/check", req, &resp); err != nil {
		return nil, err
	}
	return resp.Conflict, nil
}

// Merge resolves a conflict record with the given strategy. Nothing is
// persisted; commit the returned MergedData afterwards.
func (s *EntityService) Merge(ctx context.Context, entityType, entityID string, req *MergeRequest) (*MergeResult, error) {
	var result MergeResult
	if err := s.c.post(ctx, entityPath(entityType, entityID)+"/merge", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// asConflictError converts a 409 commit rejection into a *ConflictError. The
// server wraps the record as {"conflict": ...}; a 409 without one (e.g. a
// plain stale-version delete rejection) passes through unchanged.
func asConflictError(err error) *ConflictError {
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.StatusCode != 409 || len(apiErr.Body) == 0 {
		return nil
	}

	var resp struct {
		Conflict *ConflictRecord `json:"conflict"`
	}
	if jsonErr := json.Unmarshal(apiErr.Body, &resp); jsonErr != nil || resp.Conflict == nil {
		return nil
	}

	return &ConflictError{Conflict: resp.Conflict}
}
