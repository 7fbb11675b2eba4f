/*
errors.go - Centralized error types for the claim ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch on the sentinel errors with errors.Is, or inspect the
  structured errors with errors.As for the offending row or claim.

ERROR CATEGORIES:
  1. Validation errors - Unrecognized status text, malformed snapshot rows
  2. Ordering errors   - Snapshot older than the latest ingested report
  3. Store errors      - Claim Store read/write failures

USAGE:
  if claims.IsValidation(err) {
      var verrs claims.ValidationErrors
      if errors.As(err, &verrs) { ... every offending row ... }
  }

SEE ALSO:
  - classifier.go: Produces ValidationError
  - engine.go: Produces OrderingError and StoreError
*/
package claims

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnrecognizedStatus is returned when status text matches none of the
	// classifier's patterns. The status is never guessed.
	ErrUnrecognizedStatus = errors.New("unrecognized claim status")

	// ErrInvalidSnapshot is returned when a snapshot is structurally unusable.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrOutOfOrderSnapshot is returned when a snapshot is dated before the
	// latest ingested report. Ingesting it could close claims incorrectly.
	ErrOutOfOrderSnapshot = errors.New("snapshot out of order")

	// ErrStore is returned when the Claim Store fails to read or write.
	ErrStore = errors.New("claim store failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports status text the classifier does not recognize.
// Key is zero when the classifier is called outside of an ingest.
type ValidationError struct {
	Key    ClaimKey
	Row    int // snapshot row index, -1 when unknown
	Status string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("unrecognized status %q", e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Key.Intervenor != "" {
		msg += fmt.Sprintf(" (claim %s, row %d)", e.Key, e.Row)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return ErrUnrecognizedStatus
}

// ValidationErrors collects every offending row of one snapshot.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	if len(es) == 1 {
		return es[0].Error()
	}
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d rows with unrecognized status: %s", len(es), strings.Join(parts, "; "))
}

func (es ValidationErrors) Unwrap() error {
	return ErrUnrecognizedStatus
}

// SnapshotError reports a structurally invalid snapshot or row.
type SnapshotError struct {
	SourceID string
	Row      int // -1 for snapshot-level problems
	Reason   string
}

func (e *SnapshotError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("invalid snapshot %s: %s", e.SourceID, e.Reason)
	}
	return fmt.Sprintf("invalid snapshot %s: row %d: %s", e.SourceID, e.Row, e.Reason)
}

func (e *SnapshotError) Unwrap() error {
	return ErrInvalidSnapshot
}

// OrderingError reports a snapshot dated before the latest ingested report.
type OrderingError struct {
	AsOf   Date
	Latest Date
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("snapshot dated %s precedes latest ingested report %s", e.AsOf, e.Latest)
}

func (e *OrderingError) Unwrap() error {
	return ErrOutOfOrderSnapshot
}

// StoreError wraps a Claim Store failure with the operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches ErrStore in addition to the wrapped cause.
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is due to snapshot content.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnrecognizedStatus) || errors.Is(err, ErrInvalidSnapshot)
}

// IsOrdering returns true if the snapshot was rejected for being out of order.
func IsOrdering(err error) bool {
	return errors.Is(err, ErrOutOfOrderSnapshot)
}

// IsStore returns true if the Claim Store failed. Re-ingesting the same
// snapshot after the store recovers completes the run.
func IsStore(err error) bool {
	return errors.Is(err, ErrStore)
}
