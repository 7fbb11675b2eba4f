/*
Package sqlite provides a SQLite-backed implementation of the Claim Store.

PURPOSE:
  Implements claims.Store and claims.ReadStore using SQLite. The database
  file is opened or created on New and the schema is auto-migrated.

INTERFACES IMPLEMENTED:
  claims.Store:     Report/claim lookup, insert, patch, open-claim scan
  claims.ReadStore: Report and claim listings for print/export/API

KEY TABLES:
  report: One row per ingested snapshot date (as_of_date PRIMARY KEY)
  claim:  One row per (intervenor, claim_date)

ENCODING:
  Dates are TEXT in YYYY-MM-DD form, so lexical order is date order.
  Amounts are TEXT holding the decimal representation (no float rounding).
  resolution_date and duration_days are NULL until the claim is Closed.

COMMITS:
  Every method is a single statement and commits on its own. The engine
  relies on this: a failure mid-snapshot loses only the remaining rows.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, which also
  keeps ":memory:" databases alive for the life of the Store.

USAGE:
  store, err := sqlite.New("./icompdb.sqlite")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := claims.NewEngine(store)

SEE ALSO:
  - claims/store.go: Interface definitions
  - claims/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/claim-ledger/claims"
)

// Store implements the claim storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ claims.Store     = (*Store)(nil)
	_ claims.ReadStore = (*Store)(nil)
)

// New opens (or creates) the SQLite database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	db.SetMaxOpenConns(1)

	store, err := NewWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewWithDB wraps an already opened database and migrates it.
func NewWithDB(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- One row per ingested snapshot
	CREATE TABLE IF NOT EXISTS report (
		as_of_date TEXT PRIMARY KEY,
		row_count INTEGER NOT NULL,
		source_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Longitudinal claim records, keyed by (intervenor, claim_date)
	CREATE TABLE IF NOT EXISTS claim (
		intervenor TEXT NOT NULL,
		claim_date TEXT NOT NULL,
		first_report_date TEXT NOT NULL,
		last_report_date TEXT NOT NULL,
		proceeding TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		resolution_date TEXT,
		duration_days INTEGER,
		PRIMARY KEY (intervenor, claim_date),
		CHECK (first_report_date <= last_report_date),
		CHECK ((resolution_date IS NULL) = (duration_days IS NULL))
	);

	-- Open-claim scan (Phase C) and status filters
	CREATE INDEX IF NOT EXISTS idx_claim_status
		ON claim(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REPORTS
// =============================================================================

// GetReport returns the report for an as-of date, or nil.
func (s *Store) GetReport(ctx context.Context, asOf claims.Date) (*claims.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT as_of_date, row_count, source_id FROM report WHERE as_of_date = ?`
	return scanReport(s.db.QueryRowContext(ctx, query, asOf.String()))
}

// PutReport records an ingested snapshot. An existing row for the date is kept.
func (s *Store) PutReport(ctx context.Context, r claims.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO report (as_of_date, row_count, source_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(as_of_date) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		r.AsOf.String(), r.RowCount, r.SourceID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return errors.Wrap(err, "failed to insert report")
	}
	return nil
}

// LatestReport returns the report with the greatest as-of date, or nil.
func (s *Store) LatestReport(ctx context.Context) (*claims.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT as_of_date, row_count, source_id FROM report ORDER BY as_of_date DESC LIMIT 1`
	return scanReport(s.db.QueryRowContext(ctx, query))
}

// ListReports returns every report, oldest first.
func (s *Store) ListReports(ctx context.Context) ([]claims.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT as_of_date, row_count, source_id FROM report ORDER BY as_of_date ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list reports")
	}
	defer rows.Close()

	var reports []claims.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// =============================================================================
// CLAIMS
// =============================================================================

const claimColumns = `intervenor, claim_date, first_report_date, last_report_date,
	proceeding, amount, status, resolution_date, duration_days`

// GetClaim returns the claim for a key, or nil.
func (s *Store) GetClaim(ctx context.Context, key claims.ClaimKey) (*claims.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + claimColumns + ` FROM claim WHERE intervenor = ? AND claim_date = ?`
	c, err := scanClaim(s.db.QueryRowContext(ctx, query, key.Intervenor, key.ClaimDate.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// PutClaim inserts or replaces a claim.
func (s *Store) PutClaim(ctx context.Context, c claims.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO claim (` + claimColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(intervenor, claim_date) DO UPDATE SET
			first_report_date = excluded.first_report_date,
			last_report_date = excluded.last_report_date,
			proceeding = excluded.proceeding,
			amount = excluded.amount,
			status = excluded.status,
			resolution_date = excluded.resolution_date,
			duration_days = excluded.duration_days
	`

	var resolution sql.NullString
	var duration sql.NullInt64
	if c.ResolutionDate != nil {
		resolution = sql.NullString{String: c.ResolutionDate.String(), Valid: true}
	}
	if c.DurationDays != nil {
		duration = sql.NullInt64{Int64: int64(*c.DurationDays), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		c.Intervenor,
		c.ClaimDate.String(),
		c.FirstReportDate.String(),
		c.LastReportDate.String(),
		c.Proceeding,
		c.Amount.String(),
		string(c.Status),
		resolution,
		duration,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to put claim %s", c.Key())
	}
	return nil
}

// UpdateClaim translates a patch into a parameterized UPDATE of the named
// columns only. Column names come from this function, never from input.
func (s *Store) UpdateClaim(ctx context.Context, key claims.ClaimKey, patch claims.ClaimPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	var sets []string
	var args []any
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if patch.FirstReportDate != nil {
		set("first_report_date", patch.FirstReportDate.String())
	}
	if patch.LastReportDate != nil {
		set("last_report_date", patch.LastReportDate.String())
	}
	if patch.Proceeding != nil {
		set("proceeding", *patch.Proceeding)
	}
	if patch.Amount != nil {
		set("amount", patch.Amount.String())
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.ResolutionDate != nil {
		set("resolution_date", patch.ResolutionDate.String())
	}
	if patch.DurationDays != nil {
		set("duration_days", *patch.DurationDays)
	}
	args = append(args, key.Intervenor, key.ClaimDate.String())

	query := `UPDATE claim SET ` + strings.Join(sets, ", ") + ` WHERE intervenor = ? AND claim_date = ?`

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "failed to update claim %s", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return errors.Newf("claim %s not found", key)
	}
	return nil
}

// ListOpenClaims returns every claim whose status is not Closed.
func (s *Store) ListOpenClaims(ctx context.Context) ([]claims.Claim, error) {
	return s.ListClaims(ctx, claims.ClaimFilter{OpenOnly: true})
}

// ListClaims returns matching claims ordered by claim date, then intervenor.
func (s *Store) ListClaims(ctx context.Context, filter claims.ClaimFilter) ([]claims.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.OpenOnly {
		where = append(where, "status <> ?")
		args = append(args, string(claims.StatusClosed))
	}
	if filter.Intervenor != "" {
		where = append(where, "LOWER(intervenor) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.Intervenor)+"%")
	}

	query := `SELECT ` + claimColumns + ` FROM claim`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY claim_date ASC, intervenor ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list claims")
	}
	defer rows.Close()

	var result []claims.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*claims.Report, error) {
	var r claims.Report
	var asOf string
	err := row.Scan(&asOf, &r.RowCount, &r.SourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan report")
	}
	if r.AsOf, err = claims.ParseDate(asOf); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanClaim(row scanner) (claims.Claim, error) {
	var c claims.Claim
	var claimDate, first, last, amount, status string
	var resolution sql.NullString
	var duration sql.NullInt64

	err := row.Scan(&c.Intervenor, &claimDate, &first, &last,
		&c.Proceeding, &amount, &status, &resolution, &duration)
	if errors.Is(err, sql.ErrNoRows) {
		return c, err
	}
	if err != nil {
		return c, errors.Wrap(err, "failed to scan claim")
	}

	if c.ClaimDate, err = claims.ParseDate(claimDate); err != nil {
		return c, err
	}
	if c.FirstReportDate, err = claims.ParseDate(first); err != nil {
		return c, err
	}
	if c.LastReportDate, err = claims.ParseDate(last); err != nil {
		return c, err
	}
	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return c, errors.Wrapf(err, "invalid amount %q", amount)
	}
	st, ok := claims.ParseStatus(status)
	if !ok {
		return c, errors.Newf("invalid status %q", status)
	}
	c.Status = st
	if resolution.Valid {
		d, err := claims.ParseDate(resolution.String)
		if err != nil {
			return c, err
		}
		c.ResolutionDate = &d
	}
	if duration.Valid {
		n := int(duration.Int64)
		c.DurationDays = &n
	}
	return c, nil
}
