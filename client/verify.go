package client

import "context"

// VerifyService handles ledger integrity verification.
type VerifyService struct {
	c *Client
}

// verifyRequest bounds a run to [start_id, end_id]; both zero means full.
type verifyRequest struct {
	StartID int64 `json:"start_id,omitempty"`
	EndID   int64 `json:"end_id,omitempty"`
}

// Run performs a full-chain verification. Synchronous; cancel the context to
// abandon a long audit. IsVerificationRunning reports rejection because
// another run is already in flight.
func (s *VerifyService) Run(ctx context.Context) (*VerificationResult, error) {
	var result VerificationResult
	if err := s.c.post(ctx, "/api/v1/verify", verifyRequest{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunRange verifies entries [startID, endID] only.
func (s *VerifyService) RunRange(ctx context.Context, startID, endID int64) (*VerificationResult, error) {
	var result VerificationResult
	if err := s.c.post(ctx, "/api/v1/verify", verifyRequest{StartID: startID, EndID: endID}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Status polls the verifier state without triggering a run.
func (s *VerifyService) Status(ctx context.Context) (*VerifyStatus, error) {
	var status VerifyStatus
	if err := s.c.get(ctx, "/api/v1/verify/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
