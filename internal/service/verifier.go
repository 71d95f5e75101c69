package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veritail/veritail/internal/canonical"
	"github.com/veritail/veritail/internal/metrics"
	"github.com/veritail/veritail/internal/models"
)

// LedgerReader is the read-only ledger access the verifier depends on.
type LedgerReader interface {
	GetLatestID(ctx context.Context) (int64, error)
	GetRange(ctx context.Context, startID, endID int64) ([]models.LedgerEntry, error)
}

// ChainErrorKind classifies how the chain broke at an entry.
type ChainErrorKind string

const (
	// ChainErrorPrevHash means the entry's prev_hash does not match the
	// previous entry's hash.
	ChainErrorPrevHash ChainErrorKind = "prev_hash_link"
	// ChainErrorContent means the entry's stored hash does not match a
	// recomputation over its stored fields.
	ChainErrorContent ChainErrorKind = "content_hash"
	// ChainErrorMissing means an id in the range was never found, breaking
	// the gapless sequence.
	ChainErrorMissing ChainErrorKind = "missing_entry"
)

// ChainError reports one broken link found during verification.
type ChainError struct {
	EntryID int64          `json:"entry_id"`
	Kind    ChainErrorKind `json:"kind"`
	Message string         `json:"message"`
}

// VerificationResult is the outcome of one verification run.
type VerificationResult struct {
	Valid        bool         `json:"valid"`
	Errors       []ChainError `json:"errors"`
	CheckedCount int64        `json:"checked_count"`
}

// VerificationOutcome labels how the last run ended.
type VerificationOutcome string

const (
	OutcomeValid   VerificationOutcome = "valid"
	OutcomeInvalid VerificationOutcome = "invalid"
	// OutcomeFailed means the run aborted on an I/O error or cancellation,
	// which says nothing about the chain itself.
	OutcomeFailed VerificationOutcome = "failed"
)

// LastCheck is a snapshot of the most recent completed verification run,
// cheap to poll.
type LastCheck struct {
	At           time.Time           `json:"at"`
	Outcome      VerificationOutcome `json:"outcome"`
	Valid        bool                `json:"valid"`
	Errors       []ChainError        `json:"errors"`
	CheckedCount int64               `json:"checked_count"`
	StartID      int64               `json:"start_id"`
	EndID        int64               `json:"end_id"`
}

// verifyChunkSize bounds how many entries one read pulls, so a long
// verification of a large ledger never stalls writers.
const verifyChunkSize = 500

// IntegrityVerifier walks the ledger chain and validates every link. At most
// one verification runs at a time; overlapping calls are rejected with
// models.ErrVerificationRunning. Runs are cooperative: cancelling the context
// abandons the walk between chunks without corrupting any state.
type IntegrityVerifier struct {
	ledger LedgerReader
	log    *logrus.Logger

	mu       sync.Mutex
	checking bool
	last     *LastCheck
}

// NewIntegrityVerifier creates an IntegrityVerifier.
func NewIntegrityVerifier(ledger LedgerReader, log *logrus.Logger) *IntegrityVerifier {
	return &IntegrityVerifier{ledger: ledger, log: log}
}

// IsChecking reports whether a verification run is in flight.
func (v *IntegrityVerifier) IsChecking() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.checking
}

// LastStatus returns a copy of the most recent run's result, or nil if no
// run has completed yet.
func (v *IntegrityVerifier) LastStatus() *LastCheck {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.last == nil {
		return nil
	}

	out := *v.last
	out.Errors = append([]ChainError(nil), v.last.Errors...)

	return &out
}

// VerifyIntegrity walks the full ledger, equivalent to
// VerifyRange(1, GetLatestID()). An empty ledger is trivially valid.
func (v *IntegrityVerifier) VerifyIntegrity(ctx context.Context) (*VerificationResult, error) {
	latest, err := v.ledger.GetLatestID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading latest ledger id: %w", err)
	}

	return v.VerifyRange(ctx, 1, latest)
}

// VerifyRange validates entries [startID, endID]: each entry's prev_hash must
// equal the previous entry's hash, and each stored hash must match a
// recomputation over the entry's stored fields. The entry immediately before
// startID anchors the chain unless startID is 1.
func (v *IntegrityVerifier) VerifyRange(ctx context.Context, startID, endID int64) (*VerificationResult, error) {
	emptyLedger := startID == 1 && endID == 0

	if !emptyLedger && (startID < 1 || endID < startID) {
		return nil, fmt.Errorf("[%d, %d]: %w", startID, endID, models.ErrInvalidRange)
	}

	v.mu.Lock()
	if v.checking {
		v.mu.Unlock()

		return nil, models.ErrVerificationRunning
	}
	v.checking = true
	v.mu.Unlock()

	if emptyLedger {
		result := &VerificationResult{Valid: true}
		v.record(startID, endID, result, nil)

		return result, nil
	}

	started := time.Now()
	result, runErr := v.walk(ctx, startID, endID)

	v.record(startID, endID, result, runErr)

	if runErr != nil {
		metrics.VerificationRuns.WithLabelValues(string(OutcomeFailed)).Inc()
		v.log.WithError(runErr).Warn("ledger verification failed")

		return nil, runErr
	}

	outcome := OutcomeValid
	if !result.Valid {
		outcome = OutcomeInvalid
	}
	metrics.VerificationRuns.WithLabelValues(string(outcome)).Inc()

	v.log.WithFields(logrus.Fields{
		"start_id": startID,
		"end_id":   endID,
		"checked":  result.CheckedCount,
		"valid":    result.Valid,
		"errors":   len(result.Errors),
		"duration": time.Since(started).String(),
	}).Info("ledger verification complete")

	return result, nil
}

// record stores the run outcome and returns the verifier to idle.
func (v *IntegrityVerifier) record(startID, endID int64, result *VerificationResult, runErr error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.checking = false

	last := &LastCheck{
		At:      time.Now(),
		StartID: startID,
		EndID:   endID,
	}

	if runErr != nil {
		last.Outcome = OutcomeFailed
		last.Errors = []ChainError{}
	} else {
		last.Valid = result.Valid
		last.Errors = result.Errors
		last.CheckedCount = result.CheckedCount
		last.Outcome = OutcomeValid
		if !result.Valid {
			last.Outcome = OutcomeInvalid
		}
	}

	v.last = last
}

// walk reads the range in bounded chunks and validates the chain. It holds no
// lock between chunks; writers appending past endID are unaffected.
func (v *IntegrityVerifier) walk(ctx context.Context, startID, endID int64) (*VerificationResult, error) {
	result := &VerificationResult{Valid: true, Errors: []ChainError{}}

	prevHash := models.GenesisHash
	if startID > 1 {
		anchor, err := v.ledger.GetRange(ctx, startID-1, startID-1)
		if err != nil {
			return nil, fmt.Errorf("reading chain anchor %d: %w", startID-1, err)
		}
		if len(anchor) == 0 {
			return nil, fmt.Errorf("chain anchor %d: %w", startID-1, models.ErrEntryNotFound)
		}
		prevHash = anchor[0].Hash
	}

	expectedID := startID

	for chunkStart := startID; chunkStart <= endID; chunkStart += verifyChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("verification cancelled: %w", err)
		}

		chunkEnd := chunkStart + verifyChunkSize - 1
		if chunkEnd > endID {
			chunkEnd = endID
		}

		entries, err := v.ledger.GetRange(ctx, chunkStart, chunkEnd)
		if err != nil {
			return nil, fmt.Errorf("reading ledger chunk [%d, %d]: %w", chunkStart, chunkEnd, err)
		}

		for i := range entries {
			entry := &entries[i]

			for expectedID < entry.ID {
				result.addError(expectedID, ChainErrorMissing, "entry missing from gapless sequence")
				expectedID++
			}
			expectedID = entry.ID + 1

			if entry.PrevHash != prevHash {
				result.addError(entry.ID, ChainErrorPrevHash,
					fmt.Sprintf("prev_hash %.12s does not match previous entry hash %.12s", entry.PrevHash, prevHash))
			}

			computed, err := canonical.EntryHash(entry.PrevHash, entry)
			if err != nil {
				return nil, fmt.Errorf("rehashing entry %d: %w", entry.ID, err)
			}
			if computed != entry.Hash {
				result.addError(entry.ID, ChainErrorContent,
					fmt.Sprintf("stored hash %.12s does not match recomputed %.12s", entry.Hash, computed))
			}

			prevHash = entry.Hash
		}
	}

	for expectedID <= endID {
		result.addError(expectedID, ChainErrorMissing, "entry missing from gapless sequence")
		expectedID++
	}

	result.CheckedCount = endID - startID + 1

	return result, nil
}

func (r *VerificationResult) addError(id int64, kind ChainErrorKind, msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, ChainError{EntryID: id, Kind: kind, Message: msg})
}
