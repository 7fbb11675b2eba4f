/*
engine.go - Snapshot reconciliation

PURPOSE:
  Merges one snapshot of the claim listing into the persistent claim set.
  Snapshots are authoritative listings as of their date, not diffs: a claim
  that stops appearing is itself a signal that it was resolved.

PHASES (per snapshot, in order):
  A. Report registration
     - A report already exists for the as-of date: the snapshot was ingested,
       skip it entirely.
     - The as-of date precedes the latest report: reject (OrderingError).
  B. Per-row merge
     - New key: insert with First = Last = as-of date.
     - Existing Closed claim: leave untouched.
     - Existing open claim: widen [First, Last] to include the as-of date,
       close it if the status resolves it, otherwise record a status change.
  C. Missing-claim closure
     - Every open claim whose Last report date is before the as-of date was
       not listed in this snapshot: close it on the as-of date.

  Phase C runs only after every row of Phase B, otherwise a claim listed in
  this snapshot would be closed before its row is merged.

FAILURE AND RETRY:
  Every row is classified before the first write. Unrecognized status text
  aborts the snapshot with ValidationErrors naming every offending row.

  Each store write commits on its own. The report row is written last, so a
  run interrupted by a store failure leaves no report behind and re-ingesting
  the same snapshot finishes the remaining rows. Every step is idempotent:
  widening a range to a date it already covers, re-recording the same status,
  and closing an already closed claim are all no-ops.

ORDERING:
  Snapshots must be ingested in non-decreasing as-of order. Phase C compares
  against the current snapshot's date and would close claims wrongly if a
  later snapshot had already been processed.

SEE ALSO:
  - classifier.go: Status rules
  - store.go: Store contract
*/
package claims

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/claim-ledger/logger"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine reconciles snapshots into a Store. It is not safe for concurrent
// use; the store is assumed to have a single writer.
type Engine struct {
	store    Store
	log      *zap.Logger
	newRunID func() string
}

type EngineOption func(*Engine)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRunIDs overrides how ingest run ids are generated.
func WithRunIDs(fn func() string) EngineOption {
	return func(e *Engine) { e.newRunID = fn }
}

func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		log:      zap.NewNop(),
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IngestResult summarizes one Ingest call.
type IngestResult struct {
	RunID    string
	AsOf     Date
	SourceID string
	Rows     int
	Skipped  bool // report already existed

	Inserted    int
	Updated     int
	Unchanged   int
	Protected   int // listed, but already Closed
	ForceClosed int // open, but missing from the snapshot
}

// Ingest merges a snapshot into the store.
func (e *Engine) Ingest(ctx context.Context, snap Snapshot) (IngestResult, error) {
	res := IngestResult{
		RunID:    e.newRunID(),
		AsOf:     snap.AsOf,
		SourceID: snap.SourceID,
		Rows:     len(snap.Rows),
	}
	log := e.log.With(
		zap.String(logger.FieldRunID, res.RunID),
		zap.Stringer(logger.FieldAsOf, snap.AsOf),
		zap.String(logger.FieldSource, snap.SourceID),
	)

	if err := snap.Validate(); err != nil {
		return res, err
	}
	verdicts, err := classifyRows(snap)
	if err != nil {
		log.Warn("snapshot has unrecognized status text", zap.Error(err))
		return res, err
	}

	// Phase A: report registration
	existing, err := e.store.GetReport(ctx, snap.AsOf)
	if err != nil {
		return res, storeErr("get report", err)
	}
	if existing != nil {
		res.Skipped = true
		log.Info("snapshot already ingested, skipping",
			zap.String("ingested_from", existing.SourceID))
		return res, nil
	}
	latest, err := e.store.LatestReport(ctx)
	if err != nil {
		return res, storeErr("latest report", err)
	}
	if latest != nil && snap.AsOf.Before(latest.AsOf) {
		return res, &OrderingError{AsOf: snap.AsOf, Latest: latest.AsOf}
	}

	// Phase B: per-row merge
	for i, row := range snap.Rows {
		outcome, err := e.mergeRow(ctx, log, snap.AsOf, row, verdicts[i])
		if err != nil {
			return res, err
		}
		res.record(outcome)
	}

	// Phase C: missing-claim closure
	closed, err := e.closeMissing(ctx, log, snap.AsOf)
	if err != nil {
		return res, err
	}
	res.ForceClosed = closed

	if err := e.store.PutReport(ctx, Report{AsOf: snap.AsOf, RowCount: len(snap.Rows), SourceID: snap.SourceID}); err != nil {
		return res, storeErr("put report", err)
	}

	log.Info("snapshot ingested",
		zap.Int(logger.FieldCount, res.Rows),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("protected", res.Protected),
		zap.Int("force_closed", res.ForceClosed),
	)
	return res, nil
}

// classifyRows classifies every row, collecting all failures.
func classifyRows(snap Snapshot) ([]Classification, error) {
	verdicts := make([]Classification, len(snap.Rows))
	var errs ValidationErrors
	for i, row := range snap.Rows {
		c, err := Classify(row.RawStatus, snap.AsOf.Year())
		if err != nil {
			verr := &ValidationError{Status: row.RawStatus}
			if ve, ok := err.(*ValidationError); ok {
				verr.Reason = ve.Reason
			}
			verr.Key = row.Key()
			verr.Row = i
			errs = append(errs, verr)
			continue
		}
		verdicts[i] = c
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return verdicts, nil
}

// =============================================================================
// PHASE B - Row merge
// =============================================================================

type mergeOutcome int

const (
	outcomeInserted mergeOutcome = iota
	outcomeUpdated
	outcomeUnchanged
	outcomeProtected
)

func (r *IngestResult) record(o mergeOutcome) {
	switch o {
	case outcomeInserted:
		r.Inserted++
	case outcomeUpdated:
		r.Updated++
	case outcomeUnchanged:
		r.Unchanged++
	case outcomeProtected:
		r.Protected++
	}
}

func (e *Engine) mergeRow(ctx context.Context, log *zap.Logger, asOf Date, row ClaimRow, verdict Classification) (mergeOutcome, error) {
	key := row.Key()
	existing, err := e.store.GetClaim(ctx, key)
	if err != nil {
		return 0, storeErr("get claim", err)
	}

	if existing == nil {
		c := newClaim(asOf, row, verdict)
		if err := e.store.PutClaim(ctx, c); err != nil {
			return 0, storeErr("put claim", err)
		}
		log.Debug("claim inserted", zap.Stringer(logger.FieldClaim, key), zap.String(logger.FieldStatus, string(c.Status)))
		return outcomeInserted, nil
	}

	if existing.Status.IsClosed() {
		if verdict.Status != StatusClosed {
			log.Debug("closed claim listed with open status, left unchanged",
				zap.Stringer(logger.FieldClaim, key), zap.String("raw_status", row.RawStatus))
		}
		return outcomeProtected, nil
	}

	patch := mergePatch(*existing, row, verdict, asOf)
	if patch.IsEmpty() {
		return outcomeUnchanged, nil
	}
	if err := e.store.UpdateClaim(ctx, key, patch); err != nil {
		return 0, storeErr("update claim", err)
	}
	if patch.Status != nil {
		log.Debug("claim status changed", zap.Stringer(logger.FieldClaim, key),
			zap.String("from", string(existing.Status)), zap.String("to", string(*patch.Status)))
	}
	return outcomeUpdated, nil
}

// newClaim builds the record for a key seen for the first time.
func newClaim(asOf Date, row ClaimRow, verdict Classification) Claim {
	c := Claim{
		Intervenor:      row.Intervenor,
		ClaimDate:       row.ClaimDate,
		FirstReportDate: asOf,
		LastReportDate:  asOf,
		Proceeding:      row.Proceeding,
		Amount:          row.Amount,
		Status:          verdict.Status,
	}
	if verdict.Status == StatusClosed && verdict.ResolutionDate != nil {
		c.resolve(*verdict.ResolutionDate)
	}
	return c
}

// mergePatch computes the changes a row makes to an open claim.
func mergePatch(existing Claim, row ClaimRow, verdict Classification, asOf Date) ClaimPatch {
	var p ClaimPatch

	if first := MinDate(existing.FirstReportDate, asOf); !first.Equal(existing.FirstReportDate) {
		p.FirstReportDate = &first
	}
	if last := MaxDate(existing.LastReportDate, asOf); !last.Equal(existing.LastReportDate) {
		p.LastReportDate = &last
	}

	switch {
	case verdict.Status == StatusClosed && verdict.ResolutionDate != nil:
		closing := closePatch(existing, *verdict.ResolutionDate)
		p.Status, p.ResolutionDate, p.DurationDays = closing.Status, closing.ResolutionDate, closing.DurationDays
	case verdict.Status != existing.Status:
		status := verdict.Status
		p.Status = &status
	}

	if row.Proceeding != "" && row.Proceeding != existing.Proceeding {
		proc := row.Proceeding
		p.Proceeding = &proc
	}
	if !row.Amount.Equal(existing.Amount) {
		amt := row.Amount
		p.Amount = &amt
	}
	return p
}

// =============================================================================
// PHASE C - Missing-claim closure
// =============================================================================

func (e *Engine) closeMissing(ctx context.Context, log *zap.Logger, asOf Date) (int, error) {
	open, err := e.store.ListOpenClaims(ctx)
	if err != nil {
		return 0, storeErr("list open claims", err)
	}

	closed := 0
	for _, c := range open {
		if !c.LastReportDate.Before(asOf) {
			continue
		}
		patch := closePatch(c, asOf)
		last := asOf
		patch.LastReportDate = &last
		if err := e.store.UpdateClaim(ctx, c.Key(), patch); err != nil {
			return closed, storeErr("close missing claim", err)
		}
		closed++
		log.Debug("claim missing from snapshot, closed",
			zap.Stringer(logger.FieldClaim, c.Key()),
			zap.Stringer("last_seen", c.LastReportDate),
			zap.Int("duration_days", *patch.DurationDays))
	}
	return closed, nil
}
