package snapshot_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/claim-ledger/claims"
	"github.com/warp/claim-ledger/snapshot"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func sheetRows(asOf string, data ...[]string) [][]string {
	rows := [][]string{
		{"California Public Utilities Commission"},
		{asOf},
		{"#", "Proceeding", "Intervenor", "Claim Date", "Amount", "Status"},
	}
	return append(rows, data...)
}

func writeWorkbook(t *testing.T, dir, name, asOf string, data ...[]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, r := range sheetRows(asOf, data...) {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		values := make([]interface{}, len(r))
		for j, v := range r {
			values[j] = v
		}
		require.NoError(t, f.SetSheetRow("Sheet1", cellRef, &values))
	}

	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

// =============================================================================
// PARSE
// =============================================================================

func TestParse_Layout(t *testing.T) {
	rows := sheetRows("Intervenor Compensation Claims Status Report, March 31, 2023",
		[]string{"1", "A.22-05-001", "The Utility\nReform Network", "1/10/2023", "$12,500.00", "Pending"},
		[]string{"2", "R.21-06-017", "Sierra Club", "2023-02-14", "7500", "On March 14th Agenda"},
		[]string{},
		[]string{"", "", "", "", "", ""},
		[]string{"3", "A.21-11-003", "Center for Accessible Technology", "44936", "(100.00)", "Assigned"},
	)

	snap, err := snapshot.Parse(rows, "q1.xlsx")
	require.NoError(t, err)

	assert.Equal(t, "2023-03-31", snap.AsOf.String())
	assert.Equal(t, "q1.xlsx", snap.SourceID)
	require.Len(t, snap.Rows, 3)

	first := snap.Rows[0]
	assert.Equal(t, "A.22-05-001", first.Proceeding)
	assert.Equal(t, "The Utility Reform Network", first.Intervenor)
	assert.Equal(t, "2023-01-10", first.ClaimDate.String())
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("12500")))
	assert.Equal(t, "Pending", first.RawStatus)

	assert.Equal(t, "2023-02-14", snap.Rows[1].ClaimDate.String())
	assert.Equal(t, "2023-01-10", snap.Rows[2].ClaimDate.String(), "excel serial date")
	assert.True(t, snap.Rows[2].Amount.Equal(decimal.NewFromInt(-100)))
}

func TestParse_BadAsOf(t *testing.T) {
	_, err := snapshot.Parse(sheetRows("Quarterly report"), "bad.xlsx")

	require.Error(t, err)
	var perr *snapshot.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Row)
	assert.Equal(t, "A", perr.Column)
	assert.ErrorIs(t, err, claims.ErrInvalidSnapshot)
}

func TestParse_BadCells(t *testing.T) {
	tests := []struct {
		name   string
		row    []string
		column string
	}{
		{"missing intervenor", []string{"1", "A.1", "", "1/10/2023", "1", "Pending"}, "C"},
		{"bad date", []string{"1", "A.1", "TURN", "sometime", "1", "Pending"}, "D"},
		{"bad amount", []string{"1", "A.1", "TURN", "1/10/2023", "lots", "Pending"}, "E"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := snapshot.Parse(sheetRows("Report, March 31, 2023", tt.row), "q1.xlsx")

			var perr *snapshot.ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, 4, perr.Row)
			assert.Equal(t, tt.column, perr.Column)
		})
	}
}

func TestParseAsOf(t *testing.T) {
	d, err := snapshot.ParseAsOf("IComp Report, September 30, 2022")
	require.NoError(t, err)
	assert.Equal(t, "2022-09-30", d.String())

	d, err = snapshot.ParseAsOf("Report, Dec 31, 2022")
	require.NoError(t, err)
	assert.Equal(t, "2022-12-31", d.String())

	_, err = snapshot.ParseAsOf("Report, Smarch 31, 2022")
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	for in, want := range map[string]string{
		"":            "0",
		"$1,234.56":   "1234.56",
		"1234":        "1234",
		" $ 10.00 ":   "10",
		"($1,000.00)": "-1000",
	} {
		got, err := snapshot.ParseAmount(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "%q -> %s", in, got)
	}
}

// =============================================================================
// FILES
// =============================================================================

func TestReadFile_RoundTripsThroughExcel(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir, "IC-2023-Q1.xlsx", "Intervenor Compensation, March 31, 2023",
		[]string{"1", "A.22-05-001", "TURN", "2023-01-10", "12500", "Assigned ALJ Smith"},
	)

	snap, err := snapshot.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "IC-2023-Q1.xlsx", snap.SourceID)
	assert.Equal(t, "2023-03-31", snap.AsOf.String())
	require.Len(t, snap.Rows, 1)
	assert.Equal(t, "TURN", snap.Rows[0].Intervenor)
	assert.Equal(t, "Assigned ALJ Smith", snap.Rows[0].RawStatus)
}

func TestReadFiles_SortsByAsOf(t *testing.T) {
	dir := t.TempDir()
	q2 := writeWorkbook(t, dir, "q2.xlsx", "Report, June 30, 2023",
		[]string{"1", "A.1", "TURN", "2023-01-10", "1", "Pending"})
	q1 := writeWorkbook(t, dir, "q1.xlsx", "Report, March 31, 2023",
		[]string{"1", "A.1", "TURN", "2023-01-10", "1", "Pending"})

	snaps, err := snapshot.ReadFiles([]string{q2, q1})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "q1.xlsx", snaps[0].SourceID)
	assert.Equal(t, "q2.xlsx", snaps[1].SourceID)
}

func TestReadList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "reports.txt")
	content := "# quarterly reports\nq1.xlsx\n\n/abs/q2.xlsx\n"
	require.NoError(t, os.WriteFile(list, []byte(content), 0o644))

	paths, err := snapshot.ReadList(list)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "q1.xlsx"), "/abs/q2.xlsx"}, paths)
}
