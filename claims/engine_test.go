package claims_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/claim-ledger/claims"
	"github.com/warp/claim-ledger/claims/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestEngine(t *testing.T) (*claims.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return claims.NewEngine(mem), mem
}

func date(s string) claims.Date {
	return claims.MustParseDate(s)
}

func row(intervenor, claimDate, status string) claims.ClaimRow {
	return claims.ClaimRow{
		Proceeding: "A.22-05-001",
		Intervenor: intervenor,
		ClaimDate:  date(claimDate),
		Amount:     decimal.RequireFromString("12500.00"),
		RawStatus:  status,
	}
}

func snapshot(asOf string, rows ...claims.ClaimRow) claims.Snapshot {
	return claims.Snapshot{AsOf: date(asOf), SourceID: "IC-Report-" + asOf + ".xlsx", Rows: rows}
}

func ingest(t *testing.T, e *claims.Engine, snap claims.Snapshot) claims.IngestResult {
	t.Helper()
	res, err := e.Ingest(context.Background(), snap)
	require.NoError(t, err)
	return res
}

func getClaim(t *testing.T, s claims.Store, intervenor, claimDate string) claims.Claim {
	t.Helper()
	c, err := s.GetClaim(context.Background(), claims.ClaimKey{Intervenor: intervenor, ClaimDate: date(claimDate)})
	require.NoError(t, err)
	require.NotNil(t, c, "claim %s @ %s not found", intervenor, claimDate)
	return *c
}

func allClaims(t *testing.T, s *store.Memory) []claims.Claim {
	t.Helper()
	cs, err := s.ListClaims(context.Background(), claims.ClaimFilter{})
	require.NoError(t, err)
	return cs
}

// =============================================================================
// PHASE B - INSERT / UPDATE / PROTECT
// =============================================================================

func TestIngest_NewClaimInserted(t *testing.T) {
	engine, mem := newTestEngine(t)

	res := ingest(t, engine, snapshot("2023-01-01", row("TURN", "2022-11-15", "Pending")))

	assert.Equal(t, 1, res.Inserted)
	c := getClaim(t, mem, "TURN", "2022-11-15")
	assert.Equal(t, claims.StatusPending, c.Status)
	assert.Equal(t, "2023-01-01", c.FirstReportDate.String())
	assert.Equal(t, "2023-01-01", c.LastReportDate.String())
	assert.Equal(t, "A.22-05-001", c.Proceeding)
	assert.True(t, c.Amount.Equal(decimal.RequireFromString("12500")))
	assert.Nil(t, c.ResolutionDate)
	assert.Nil(t, c.DurationDays)
}

func TestIngest_NewClaimAlreadyOnAgenda(t *testing.T) {
	// GIVEN: A claim seen for the first time with an agenda date
	// THEN: Inserted Closed with resolution and duration set together

	engine, mem := newTestEngine(t)

	ingest(t, engine, snapshot("2023-04-01", row("Sierra Club", "2023-01-10", "On March 14th Agenda")))

	c := getClaim(t, mem, "Sierra Club", "2023-01-10")
	assert.Equal(t, claims.StatusClosed, c.Status)
	require.NotNil(t, c.ResolutionDate)
	require.NotNil(t, c.DurationDays)
	assert.Equal(t, "2023-03-14", c.ResolutionDate.String())
	assert.Equal(t, 63, *c.DurationDays)
}

func TestIngest_NewThenUpdate(t *testing.T) {
	// GIVEN: Claim Y first appears Pending on 2023-01-01
	// WHEN: It reappears Assigned on 2023-04-01
	// THEN: Range covers both snapshots, status is Assigned

	engine, mem := newTestEngine(t)

	ingest(t, engine, snapshot("2023-01-01", row("Y", "2022-12-01", "Pending")))
	res := ingest(t, engine, snapshot("2023-04-01", row("Y", "2022-12-01", "Assigned ALJ Jones")))

	assert.Equal(t, 1, res.Updated)
	c := getClaim(t, mem, "Y", "2022-12-01")
	assert.Equal(t, "2023-01-01", c.FirstReportDate.String())
	assert.Equal(t, "2023-04-01", c.LastReportDate.String())
	assert.Equal(t, claims.StatusAssigned, c.Status)
	assert.Nil(t, c.ResolutionDate)
}

func TestIngest_ClosureArithmetic(t *testing.T) {
	// GIVEN: Claim dated 2023-01-10, open
	// WHEN: A later snapshot lists it on the March 14th agenda
	// THEN: durationDays = 63

	engine, mem := newTestEngine(t)

	ingest(t, engine, snapshot("2023-02-01", row("X", "2023-01-10", "Pending")))
	ingest(t, engine, snapshot("2023-04-01", row("X", "2023-01-10", "On 3/14th Agenda")))

	c := getClaim(t, mem, "X", "2023-01-10")
	assert.Equal(t, claims.StatusClosed, c.Status)
	require.NotNil(t, c.ResolutionDate)
	assert.Equal(t, "2023-03-14", c.ResolutionDate.String())
	require.NotNil(t, c.DurationDays)
	assert.Equal(t, 63, *c.DurationDays)
	assert.Equal(t, "2023-04-01", c.LastReportDate.String())
}

func TestIngest_ClosedClaimProtected(t *testing.T) {
	// GIVEN: A claim already Closed
	// WHEN: A later snapshot lists it with a different status
	// THEN: The record is not mutated at all (range included)

	engine, mem := newTestEngine(t)

	ingest(t, engine, snapshot("2023-04-01", row("Z", "2023-01-10", "On March 14th Agenda")))
	before := getClaim(t, mem, "Z", "2023-01-10")

	res := ingest(t, engine, snapshot("2023-07-01", row("Z", "2023-01-10", "Pending")))

	assert.Equal(t, 1, res.Protected)
	assert.Equal(t, before, getClaim(t, mem, "Z", "2023-01-10"))
}

func TestIngest_UnchangedRowIsNoop(t *testing.T) {
	engine, _ := newTestEngine(t)

	res := ingest(t, engine, snapshot("2023-01-01",
		row("A", "2022-12-01", "Pending"),
		row("A", "2022-12-01", "Pending"),
	))

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Unchanged)
	assert.Equal(t, 0, res.Updated)
}

func TestIngest_SameDateSkipped(t *testing.T) {
	engine, mem := newTestEngine(t)

	ingest(t, engine, snapshot("2023-01-01", row("A", "2022-12-01", "Pending")))
	res := ingest(t, engine, snapshot("2023-01-01", row("B", "2022-12-02", "Pending")))

	assert.True(t, res.Skipped)
	assert.Len(t, allClaims(t, mem), 1)
}

func TestIngest_AmountAndProceedingRefreshed(t *testing.T) {
	engine, mem := newTestEngine(t)

	ingest(t, engine, snapshot("2023-01-01", row("A", "2022-12-01", "Pending")))

	updated := row("A", "2022-12-01", "Pending")
	updated.Amount = decimal.RequireFromString("13000.50")
	updated.Proceeding = "A.22-05-002"
	res := ingest(t, engine, snapshot("2023-04-01", updated))

	assert.Equal(t, 1, res.Updated)
	c := getClaim(t, mem, "A", "2022-12-01")
	assert.True(t, c.Amount.Equal(decimal.RequireFromString("13000.5")))
	assert.Equal(t, "A.22-05-002", c.Proceeding)
	assert.Equal(t, claims.StatusPending, c.Status)
}

// =============================================================================
// PHASE C - MISSING-CLAIM CLOSURE
// =============================================================================

func TestIngest_MissingClaimClosed(t *testing.T) {
	// GIVEN: Claim X Pending in the 2023-01-01 snapshot
	// WHEN: The 2023-04-01 snapshot does not list X
	// THEN: X is Closed on 2023-04-01

	engine, mem := newTestEngine(t)

	ingest(t, engine, snapshot("2023-01-01",
		row("X", "2022-10-03", "Pending"),
		row("W", "2022-11-01", "Assigned"),
	))
	res := ingest(t, engine, snapshot("2023-04-01", row("W", "2022-11-01", "Assigned")))

	assert.Equal(t, 1, res.ForceClosed)

	x := getClaim(t, mem, "X", "2022-10-03")
	assert.Equal(t, claims.StatusClosed, x.Status)
	require.NotNil(t, x.ResolutionDate)
	assert.Equal(t, "2023-04-01", x.ResolutionDate.String())
	assert.Equal(t, "2023-04-01", x.LastReportDate.String())
	assert.Equal(t, "2023-01-01", x.FirstReportDate.String())
	require.NotNil(t, x.DurationDays)
	assert.Equal(t, date("2022-10-03").DaysUntil(date("2023-04-01")), *x.DurationDays)
	assert.Equal(t, 180, *x.DurationDays)

	// W was listed, so it stays open
	w := getClaim(t, mem, "W", "2022-11-01")
	assert.Equal(t, claims.StatusAssigned, w.Status)
	assert.Nil(t, w.ResolutionDate)
}

func TestIngest_ClosedClaimNotReclosed(t *testing.T) {
	engine, mem := newTestEngine(t)

	ingest(t, engine, snapshot("2023-01-01", row("X", "2022-10-03", "On December 20th Agenda")))
	before := getClaim(t, mem, "X", "2022-10-03")

	res := ingest(t, engine, snapshot("2023-04-01"))

	assert.Equal(t, 0, res.ForceClosed)
	assert.Equal(t, before, getClaim(t, mem, "X", "2022-10-03"))
}

// =============================================================================
// PROPERTIES - IDEMPOTENCE AND MONOTONICITY
// =============================================================================

func TestIngest_Idempotent(t *testing.T) {
	// GIVEN: A sequence of snapshots
	// WHEN: Each snapshot is ingested twice
	// THEN: The store matches ingesting each once

	snaps := []claims.Snapshot{
		snapshot("2023-01-01", row("A", "2022-12-01", "Pending"), row("B", "2022-12-05", "Unassigned")),
		snapshot("2023-04-01", row("A", "2022-12-01", "Assigned"), row("C", "2023-02-01", "Pending")),
		snapshot("2023-07-01", row("A", "2022-12-01", "On June 5th Agenda")),
	}

	once, onceStore := newTestEngine(t)
	twice, twiceStore := newTestEngine(t)
	for _, s := range snaps {
		ingest(t, once, s)
		ingest(t, twice, s)
		res := ingest(t, twice, s)
		assert.True(t, res.Skipped)
	}

	assert.Equal(t, allClaims(t, onceStore), allClaims(t, twiceStore))
}

func TestIngest_RangeMonotonic(t *testing.T) {
	engine, mem := newTestEngine(t)

	snaps := []claims.Snapshot{
		snapshot("2023-01-01", row("A", "2022-12-01", "Pending")),
		snapshot("2023-04-01", row("A", "2022-12-01", "Pending"), row("B", "2023-03-01", "Pending")),
		snapshot("2023-07-01", row("A", "2022-12-01", "Assigned"), row("B", "2023-03-01", "Pending")),
		snapshot("2023-10-01", row("B", "2023-03-01", "On 9/28th Agenda")),
	}

	prev := map[claims.ClaimKey]claims.Claim{}
	for _, s := range snaps {
		ingest(t, engine, s)
		for _, c := range allClaims(t, mem) {
			assert.False(t, c.LastReportDate.Before(c.FirstReportDate), "first <= last for %s", c.Key())
			if p, ok := prev[c.Key()]; ok {
				assert.False(t, c.FirstReportDate.After(p.FirstReportDate), "first never increases")
				assert.False(t, c.LastReportDate.Before(p.LastReportDate), "last never decreases")
			}
			assert.Equal(t, c.ResolutionDate == nil, c.DurationDays == nil)
			assert.Equal(t, c.Status == claims.StatusClosed, c.ResolutionDate != nil)
			prev[c.Key()] = c
		}
	}
}

// =============================================================================
// ERRORS
// =============================================================================

func TestIngest_OutOfOrderRejected(t *testing.T) {
	engine, mem := newTestEngine(t)

	ingest(t, engine, snapshot("2023-04-01", row("A", "2022-12-01", "Pending")))

	_, err := engine.Ingest(context.Background(), snapshot("2023-01-01", row("B", "2022-12-15", "Pending")))

	require.Error(t, err)
	assert.True(t, claims.IsOrdering(err))
	var oerr *claims.OrderingError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, "2023-04-01", oerr.Latest.String())

	// Nothing from the rejected snapshot was written
	assert.Len(t, allClaims(t, mem), 1)
	reports, _ := mem.ListReports(context.Background())
	assert.Len(t, reports, 1)
}

func TestIngest_ValidationCollectsAllRows(t *testing.T) {
	// GIVEN: A snapshot with two unrecognized statuses
	// WHEN: Ingesting
	// THEN: Both rows are reported and nothing is written

	engine, mem := newTestEngine(t)

	_, err := engine.Ingest(context.Background(), snapshot("2023-01-01",
		row("A", "2022-12-01", "Pending"),
		row("B", "2022-12-02", "Under Review"),
		row("C", "2022-12-03", "Withdrawn"),
	))

	require.Error(t, err)
	assert.True(t, claims.IsValidation(err))

	var verrs claims.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 2)
	assert.Equal(t, "B", verrs[0].Key.Intervenor)
	assert.Equal(t, 1, verrs[0].Row)
	assert.Equal(t, "Withdrawn", verrs[1].Status)
	assert.Equal(t, 2, verrs[1].Row)

	assert.Empty(t, allClaims(t, mem))
	r, err := mem.GetReport(context.Background(), date("2023-01-01"))
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestIngest_InvalidSnapshot(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Ingest(context.Background(), claims.Snapshot{SourceID: "empty.xlsx"})
	assert.ErrorIs(t, err, claims.ErrInvalidSnapshot)

	bad := snapshot("2023-01-01", claims.ClaimRow{Intervenor: "", ClaimDate: date("2022-01-01"), RawStatus: "Pending"})
	_, err = engine.Ingest(context.Background(), bad)
	var serr *claims.SnapshotError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 0, serr.Row)
}

// flakyStore fails the nth write and every write after it until healed.
type flakyStore struct {
	*store.Memory
	failAt int
	writes int
	healed bool
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) write() error {
	f.writes++
	if !f.healed && f.writes >= f.failAt {
		return errDiskFull
	}
	return nil
}

func (f *flakyStore) PutClaim(ctx context.Context, c claims.Claim) error {
	if err := f.write(); err != nil {
		return err
	}
	return f.Memory.PutClaim(ctx, c)
}

func (f *flakyStore) UpdateClaim(ctx context.Context, k claims.ClaimKey, p claims.ClaimPatch) error {
	if err := f.write(); err != nil {
		return err
	}
	return f.Memory.UpdateClaim(ctx, k, p)
}

func TestIngest_StoreFailureThenRetryCompletes(t *testing.T) {
	// GIVEN: A store that fails on the third claim write
	// WHEN: The snapshot is ingested, the store recovers, and it is ingested again
	// THEN: The first run reports a StoreError and the retry finishes every row

	rows := make([]claims.ClaimRow, 5)
	for i := range rows {
		rows[i] = row(fmt.Sprintf("Intervenor %d", i), "2022-12-01", "Pending")
	}
	snap := snapshot("2023-01-01", rows...)

	flaky := &flakyStore{Memory: store.NewMemory(), failAt: 3}
	engine := claims.NewEngine(flaky)

	_, err := engine.Ingest(context.Background(), snap)
	require.Error(t, err)
	assert.True(t, claims.IsStore(err))
	assert.ErrorIs(t, err, errDiskFull)
	var serr *claims.StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "put claim", serr.Op)

	// No report was registered, so the retry is not skipped
	r, err := flaky.GetReport(context.Background(), snap.AsOf)
	require.NoError(t, err)
	assert.Nil(t, r)

	flaky.healed = true
	res, err := engine.Ingest(context.Background(), snap)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, 2, res.Unchanged)
	assert.Len(t, allClaims(t, flaky.Memory), 5)
}

// =============================================================================
// LOGGING
// =============================================================================

func TestIngest_LogsRunSummary(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mem := store.NewMemory()
	engine := claims.NewEngine(mem,
		claims.WithLogger(zap.New(core)),
		claims.WithRunIDs(func() string { return "run-1" }),
	)

	ingest(t, engine, snapshot("2023-01-01", row("X", "2022-10-03", "Pending")))
	res := ingest(t, engine, snapshot("2023-04-01"))
	assert.Equal(t, "run-1", res.RunID)

	closedLogs := logs.FilterMessage("claim missing from snapshot, closed").All()
	require.Len(t, closedLogs, 1)
	assert.Equal(t, "run-1", closedLogs[0].ContextMap()["run_id"])

	summaries := logs.FilterMessage("snapshot ingested").All()
	require.Len(t, summaries, 2)
	assert.EqualValues(t, 1, summaries[1].ContextMap()["force_closed"])
}

func TestIngest_DuplicateRowsInOneSnapshot(t *testing.T) {
	engine, mem := newTestEngine(t)

	res := ingest(t, engine, snapshot("2023-01-01",
		row("A", "2022-12-01", "Pending"),
		row("A", "2022-12-01", "Assigned"),
	))

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, claims.StatusAssigned, getClaim(t, mem, "A", "2022-12-01").Status)
	assert.Equal(t, claims.NewDate(2023, time.January, 1), getClaim(t, mem, "A", "2022-12-01").FirstReportDate)
}
