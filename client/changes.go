package client

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// ChangesService handles the catch-up change feed.
type ChangesService struct {
	c *Client
}

// List returns entities updated at or after opts.Since, oldest first.
func (s *ChangesService) List(ctx context.Context, opts *ChangeListOptions) ([]EntityVersion, error) {
	params := url.Values{}
	if opts != nil {
		if opts.EntityType != "" {
			params.Set("entity_type", opts.EntityType)
		}
		if opts.Since != nil {
			params.Set("since", opts.Since.Format(time.RFC3339))
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
	}

	var resp struct {
		Data []EntityVersion `json:"data"`
	}
	if err := s.c.get(ctx, "/api/v1/changes", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
