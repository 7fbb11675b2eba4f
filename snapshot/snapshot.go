/*
Package snapshot reads claim listing spreadsheets into claims.Snapshot values.

LAYOUT (fixed, first sheet):
  Row 2, column A: "<label>, <MonthName> <Day>, <Year>"  (the as-of date)
  Row 4 onward:    B proceeding | C intervenor | D claim date | E amount | F status

  Rows with columns B-F all blank are skipped. Intervenor names have embedded line breaks
  collapsed to spaces.

CELL FORMATS:
  Claim dates arrive as whatever the sheet's number format renders:
  ISO dates, US m/d/yy(yy), m-d-yy, or a bare Excel serial number.
  Amounts may carry "$" and thousands separators.

SEE ALSO:
  - claims/types.go: Snapshot, ClaimRow
*/
package snapshot

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/claim-ledger/claims"
)

// Fixed positions in the source layout (zero-based).
const (
	asOfRow      = 1
	asOfColumn   = 0
	firstDataRow = 3

	colProceeding = 1
	colIntervenor = 2
	colClaimDate  = 3
	colAmount     = 4
	colStatus     = 5
)

// ParseError points at the cell that could not be read.
type ParseError struct {
	Source string
	Row    int // 1-based, as shown in a spreadsheet
	Column string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: cell %s%d %q: %s", e.Source, e.Column, e.Row, e.Value, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return claims.ErrInvalidSnapshot
}

// ReadFile reads the first sheet of an .xlsx snapshot.
func ReadFile(path string) (claims.Snapshot, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return claims.Snapshot{}, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return claims.Snapshot{}, &ParseError{Source: path, Row: 1, Column: "A", Reason: "workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return claims.Snapshot{}, errors.Wrapf(err, "failed to read rows of %s", path)
	}
	return Parse(rows, filepath.Base(path))
}

// ReadFiles reads every snapshot and returns them ordered by as-of date,
// the order the engine requires.
func ReadFiles(paths []string) ([]claims.Snapshot, error) {
	snaps := make([]claims.Snapshot, 0, len(paths))
	for _, p := range paths {
		s, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].AsOf.Before(snaps[j].AsOf) })
	return snaps, nil
}

// ReadList reads a file listing one snapshot path per line. Blank lines and
// lines starting with # are ignored; relative paths resolve against the list.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open list %s", path)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(dir, line)
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read list %s", path)
	}
	return paths, nil
}

// Parse converts sheet rows (as returned by excelize GetRows) to a Snapshot.
func Parse(rows [][]string, source string) (claims.Snapshot, error) {
	asOfText := cell(rows, asOfRow, asOfColumn)
	asOf, err := ParseAsOf(asOfText)
	if err != nil {
		return claims.Snapshot{}, &ParseError{Source: source, Row: asOfRow + 1, Column: "A", Value: asOfText, Reason: err.Error()}
	}

	snap := claims.Snapshot{AsOf: asOf, SourceID: source}
	for i := firstDataRow; i < len(rows); i++ {
		if isBlank(rows[i], colProceeding, colStatus) {
			continue
		}
		r, err := parseRow(rows[i], i, source)
		if err != nil {
			return claims.Snapshot{}, err
		}
		snap.Rows = append(snap.Rows, r)
	}
	return snap, nil
}

func parseRow(row []string, idx int, source string) (claims.ClaimRow, error) {
	fail := func(col int, reason string) error {
		return &ParseError{Source: source, Row: idx + 1, Column: columnName(col), Value: at(row, col), Reason: reason}
	}

	r := claims.ClaimRow{
		Proceeding: strings.TrimSpace(at(row, colProceeding)),
		Intervenor: claims.NormalizeIntervenor(at(row, colIntervenor)),
		RawStatus:  strings.TrimSpace(at(row, colStatus)),
	}
	if r.Intervenor == "" {
		return r, fail(colIntervenor, "missing intervenor")
	}

	d, err := ParseClaimDate(at(row, colClaimDate))
	if err != nil {
		return r, fail(colClaimDate, err.Error())
	}
	r.ClaimDate = d

	amt, err := ParseAmount(at(row, colAmount))
	if err != nil {
		return r, fail(colAmount, err.Error())
	}
	r.Amount = amt
	return r, nil
}

// =============================================================================
// CELL PARSERS
// =============================================================================

var asOfPattern = regexp.MustCompile(`([A-Za-z]+)\.?\s+(\d{1,2}),?\s+(\d{4})`)

// ParseAsOf extracts the date from header text such as
// "Intervenor Compensation Claims Report, March 31, 2023".
func ParseAsOf(text string) (claims.Date, error) {
	m := asOfPattern.FindStringSubmatch(text)
	if m == nil {
		return claims.Date{}, errors.Newf("no \"<Month> <Day>, <Year>\" date in %q", text)
	}
	for _, layout := range []string{"January 2 2006", "Jan 2 2006"} {
		t, err := time.Parse(layout, m[1]+" "+m[2]+" "+m[3])
		if err == nil {
			return claims.DateOf(t), nil
		}
	}
	return claims.Date{}, errors.Newf("unknown month %q", m[1])
}

var claimDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"1/2/2006",
	"1/2/06",
	"01-02-06",
	"1-2-06",
	"1-2-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseClaimDate accepts the renderings a date cell takes in GetRows output.
func ParseClaimDate(text string) (claims.Date, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return claims.Date{}, errors.New("missing claim date")
	}
	for _, layout := range claimDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return claims.DateOf(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return claims.DateOf(t), nil
		}
	}
	return claims.Date{}, errors.Newf("unrecognized date %q", s)
}

// ParseAmount parses currency text such as "$12,500.00". Blank is zero.
func ParseAmount(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, nil
	}
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = strings.Trim(s, "()")
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Newf("unrecognized amount %q", text)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func cell(rows [][]string, r, c int) string {
	if r >= len(rows) {
		return ""
	}
	return at(rows[r], c)
}

func at(row []string, c int) string {
	if c >= len(row) {
		return ""
	}
	return row[c]
}

// isBlank reports whether columns [from, to] of row are all empty.
func isBlank(row []string, from, to int) bool {
	for c := from; c <= to; c++ {
		if strings.TrimSpace(at(row, c)) != "" {
			return false
		}
	}
	return true
}

func columnName(c int) string {
	name, err := excelize.ColumnNumberToName(c + 1)
	if err != nil {
		return "?"
	}
	return name
}
