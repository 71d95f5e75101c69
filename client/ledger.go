package client

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// LedgerService handles read-only audit ledger operations.
type LedgerService struct {
	c *Client
}

// ledgerQueryResponse wraps the paginated ledger query response.
type ledgerQueryResponse struct {
	Data    []LedgerEntry `json:"data"`
	HasMore bool          `json:"has_more"`
}

// Query returns ledger entries matching the given options, newest first.
func (s *LedgerService) Query(ctx context.Context, opts *LedgerQueryOptions) ([]LedgerEntry, bool, error) {
	params := url.Values{}
	if opts != nil {
		if opts.EntityType != "" {
			params.Set("entity_type", opts.EntityType)
		}
		if opts.EntityID != "" {
			params.Set("entity_id", opts.EntityID)
		}
		if opts.Action != "" {
			params.Set("action", opts.Action)
		}
		if opts.Since != nil {
			params.Set("since", opts.Since.Format(time.RFC3339))
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
	}

	var resp ledgerQueryResponse
	if err := s.c.get(ctx, "/api/v1/ledger", params, &resp); err != nil {
		return nil, false, err
	}
	return resp.Data, resp.HasMore, nil
}

// Latest returns the highest assigned entry id, 0 for an empty ledger.
func (s *LedgerService) Latest(ctx context.Context) (int64, error) {
	var resp struct {
		LatestID int64 `json:"latest_id"`
	}
	if err := s.c.get(ctx, "/api/v1/ledger/latest", nil, &resp); err != nil {
		return 0, err
	}
	return resp.LatestID, nil
}
