/*
store.go - Persistence contract for reports and claims

PURPOSE:
  Defines the interface between the reconciliation engine and the database.
  The engine treats the store as a keyed repository: it never builds queries
  itself, and every write it issues commits before the next step.

KEY INTERFACES:
  Store:     What the engine needs (lookup, insert, patch, open-claim scan)
  ReadStore: Read-only listing used by print, export and the HTTP API

ABSENT RECORDS:
  GetReport, LatestReport and GetClaim return (nil, nil) when nothing matches.
  An error always means the store itself failed.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - claims/store/memory.go: In-memory for testing

SEE ALSO:
  - engine.go: Only writer of the Store
  - types.go: ClaimPatch
*/
package claims

import (
	"context"
	"strings"
)

// =============================================================================
// STORE - Interface used by the reconciliation engine
// =============================================================================

type Store interface {
	// GetReport returns the report for an as-of date, or nil.
	GetReport(ctx context.Context, asOf Date) (*Report, error)

	// PutReport records an ingested snapshot. Re-putting the same date is a no-op.
	PutReport(ctx context.Context, r Report) error

	// LatestReport returns the report with the greatest as-of date, or nil.
	LatestReport(ctx context.Context) (*Report, error)

	// GetClaim returns the claim for a key, or nil.
	GetClaim(ctx context.Context, key ClaimKey) (*Claim, error)

	// PutClaim inserts or replaces a claim.
	PutClaim(ctx context.Context, c Claim) error

	// UpdateClaim applies a patch to an existing claim.
	UpdateClaim(ctx context.Context, key ClaimKey, patch ClaimPatch) error

	// ListOpenClaims returns every claim whose status is not Closed.
	ListOpenClaims(ctx context.Context) ([]Claim, error)
}

// =============================================================================
// READ STORE - Listing for reporting surfaces
// =============================================================================

// ClaimFilter narrows ListClaims. Zero values match everything.
type ClaimFilter struct {
	Status     *Status
	OpenOnly   bool
	Intervenor string // case-insensitive substring
}

// Matches reports whether c passes the filter.
func (f ClaimFilter) Matches(c Claim) bool {
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.OpenOnly && !c.IsOpen() {
		return false
	}
	if f.Intervenor != "" && !containsFold(c.Intervenor, f.Intervenor) {
		return false
	}
	return true
}

type ReadStore interface {
	// ListReports returns every report, oldest first.
	ListReports(ctx context.Context) ([]Report, error)

	// ListClaims returns matching claims ordered by claim date, then intervenor.
	ListClaims(ctx context.Context, filter ClaimFilter) ([]Claim, error)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
