/*
Package claims provides the intervenor compensation claim ledger.

PURPOSE:
  Periodic snapshots of the regulatory claim listing are merged into one
  longitudinal record per claim. A claim is tracked from the first snapshot
  that lists it until it is resolved, either by an agenda date appearing in
  its status text or by silently disappearing from a later snapshot.

KEY CONCEPTS IN THIS FILE (types.go):
  - ClaimRow:  One row of one snapshot (ephemeral)
  - Snapshot:  A dated listing of rows as supplied by a snapshot source
  - Report:    The persisted record that a snapshot date was ingested
  - Claim:     The persisted longitudinal record, keyed by ClaimKey
  - ClaimPatch: Typed partial update of a Claim

INVARIANTS:
  1. ClaimKey (intervenor, claim date) is immutable and unique
  2. FirstReportDate <= LastReportDate
  3. ResolutionDate and DurationDays are set together, and only when Closed
  4. Closed claims are never mutated by ordinary snapshot merges

USAGE:
  engine := claims.NewEngine(store, claims.WithLogger(log))
  result, err := engine.Ingest(ctx, snap)

SEE ALSO:
  - classifier.go: Raw status text to canonical Status
  - engine.go: Snapshot reconciliation (Phases A-C)
  - store.go: Persistence contract
*/
package claims

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS - Canonical lifecycle state
// =============================================================================

type Status string

const (
	StatusPending  Status = "Pending"
	StatusAssigned Status = "Assigned"
	StatusClosed   Status = "Closed"
)

func (s Status) IsClosed() bool { return s == StatusClosed }

// Valid reports whether s is one of the canonical states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusClosed:
		return true
	}
	return false
}

// ParseStatus converts stored text back to a Status.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, st.Valid()
}

// =============================================================================
// CLAIM KEY - Natural identity of a claim
// =============================================================================

type ClaimKey struct {
	Intervenor string
	ClaimDate  Date
}

func (k ClaimKey) String() string {
	return k.Intervenor + " @ " + k.ClaimDate.String()
}

// =============================================================================
// SNAPSHOT - Input supplied by a snapshot source
// =============================================================================

// ClaimRow is one row of a snapshot.
type ClaimRow struct {
	Proceeding string
	Intervenor string
	ClaimDate  Date
	Amount     decimal.Decimal
	RawStatus  string
}

func (r ClaimRow) Key() ClaimKey {
	return ClaimKey{Intervenor: r.Intervenor, ClaimDate: r.ClaimDate}
}

var lineBreaks = regexp.MustCompile(`\s*[\r\n]+\s*`)

// NormalizeIntervenor collapses embedded line breaks into single spaces.
func NormalizeIntervenor(name string) string {
	return strings.TrimSpace(lineBreaks.ReplaceAllString(name, " "))
}

// Snapshot is one dated listing of all currently known claims.
type Snapshot struct {
	AsOf     Date
	SourceID string
	Rows     []ClaimRow
}

// Validate checks the structural requirements the engine relies on.
// Status text is checked separately by the classifier.
func (s Snapshot) Validate() error {
	if s.AsOf.IsZero() {
		return &SnapshotError{SourceID: s.SourceID, Row: -1, Reason: "missing as-of date"}
	}
	for i, r := range s.Rows {
		if strings.TrimSpace(r.Intervenor) == "" {
			return &SnapshotError{SourceID: s.SourceID, Row: i, Reason: "missing intervenor"}
		}
		if r.ClaimDate.IsZero() {
			return &SnapshotError{SourceID: s.SourceID, Row: i, Reason: "missing claim date"}
		}
	}
	return nil
}

// =============================================================================
// PERSISTED RECORDS
// =============================================================================

// Report records that the snapshot for AsOf has been ingested.
type Report struct {
	AsOf     Date
	RowCount int
	SourceID string
}

// Claim is the longitudinal record of one claim across snapshots.
type Claim struct {
	Intervenor      string
	ClaimDate       Date
	FirstReportDate Date
	LastReportDate  Date
	Proceeding      string
	Amount          decimal.Decimal
	Status          Status
	ResolutionDate  *Date // set only when Closed
	DurationDays    *int  // ResolutionDate - ClaimDate, set with ResolutionDate
}

func (c Claim) Key() ClaimKey {
	return ClaimKey{Intervenor: c.Intervenor, ClaimDate: c.ClaimDate}
}

// IsOpen reports whether the claim can still be changed by a snapshot.
func (c Claim) IsOpen() bool { return !c.Status.IsClosed() }

// resolve closes the claim on the given date.
func (c *Claim) resolve(on Date) {
	res := on
	days := c.ClaimDate.DaysUntil(on)
	c.Status = StatusClosed
	c.ResolutionDate = &res
	c.DurationDays = &days
}

// =============================================================================
// CLAIM PATCH - Typed partial update
// =============================================================================

// ClaimPatch lists the fields to change on an existing claim. Nil fields are
// left untouched. Stores translate a patch into a parameterized update.
type ClaimPatch struct {
	FirstReportDate *Date
	LastReportDate  *Date
	Proceeding      *string
	Amount          *decimal.Decimal
	Status          *Status
	ResolutionDate  *Date
	DurationDays    *int
}

// IsEmpty reports whether the patch changes nothing.
func (p ClaimPatch) IsEmpty() bool {
	return p.FirstReportDate == nil && p.LastReportDate == nil &&
		p.Proceeding == nil && p.Amount == nil && p.Status == nil &&
		p.ResolutionDate == nil && p.DurationDays == nil
}

// Apply returns c with the patch applied. Used by in-memory stores and tests.
func (p ClaimPatch) Apply(c Claim) Claim {
	if p.FirstReportDate != nil {
		c.FirstReportDate = *p.FirstReportDate
	}
	if p.LastReportDate != nil {
		c.LastReportDate = *p.LastReportDate
	}
	if p.Proceeding != nil {
		c.Proceeding = *p.Proceeding
	}
	if p.Amount != nil {
		c.Amount = *p.Amount
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.ResolutionDate != nil {
		d := *p.ResolutionDate
		c.ResolutionDate = &d
	}
	if p.DurationDays != nil {
		n := *p.DurationDays
		c.DurationDays = &n
	}
	return c
}

// closePatch builds the patch that resolves a claim on the given date.
func closePatch(c Claim, on Date) ClaimPatch {
	status := StatusClosed
	res := on
	days := c.ClaimDate.DaysUntil(on)
	return ClaimPatch{Status: &status, ResolutionDate: &res, DurationDays: &days}
}
