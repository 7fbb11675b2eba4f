/*
export.go - Ledger export to a spreadsheet

PURPOSE:
  Writes the claim ledger and the report history to an .xlsx workbook so it
  can be handed to people who live in spreadsheets.

SHEETS:
  Claims:  one row per claim, ordered as given
  Reports: one row per ingested snapshot

  Open claims leave Resolution Date and Duration blank. Amounts are written
  as numbers so the sheet can total them.

SEE ALSO:
  - snapshot/snapshot.go: the reading side
*/
package export

import (
	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"

	"github.com/warp/claim-ledger/claims"
)

const (
	ClaimsSheet  = "Claims"
	ReportsSheet = "Reports"
)

var (
	claimsHeader = []interface{}{
		"Intervenor", "Claim Date", "Proceeding", "Amount", "Status",
		"First Report", "Last Report", "Resolution Date", "Duration (days)",
	}
	reportsHeader = []interface{}{"As Of", "Rows", "Source"}
)

// WriteWorkbook writes claims and reports to path, replacing any existing file.
func WriteWorkbook(path string, reports []claims.Report, ledger []claims.Claim) error {
	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with a single "Sheet1"
	if err := f.SetSheetName(f.GetSheetName(0), ClaimsSheet); err != nil {
		return errors.Wrap(err, "failed to name claims sheet")
	}
	if _, err := f.NewSheet(ReportsSheet); err != nil {
		return errors.Wrap(err, "failed to add reports sheet")
	}

	if err := writeRows(f, ClaimsSheet, claimsHeader, len(ledger), func(i int) []interface{} {
		return claimRow(ledger[i])
	}); err != nil {
		return err
	}
	if err := writeRows(f, ReportsSheet, reportsHeader, len(reports), func(i int) []interface{} {
		r := reports[i]
		return []interface{}{r.AsOf.String(), r.RowCount, r.SourceID}
	}); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "failed to save %s", path)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, header []interface{}, n int, row func(int) []interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrapf(err, "failed to write %s header", sheet)
	}
	for i := 0; i < n; i++ {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "cell reference")
		}
		values := row(i)
		if err := f.SetSheetRow(sheet, cellRef, &values); err != nil {
			return errors.Wrapf(err, "failed to write %s row %d", sheet, i+2)
		}
	}
	return nil
}

func claimRow(c claims.Claim) []interface{} {
	amount, _ := c.Amount.Float64()
	var resolution, duration interface{}
	if c.ResolutionDate != nil {
		resolution = c.ResolutionDate.String()
	}
	if c.DurationDays != nil {
		duration = *c.DurationDays
	}
	return []interface{}{
		c.Intervenor,
		c.ClaimDate.String(),
		c.Proceeding,
		amount,
		string(c.Status),
		c.FirstReportDate.String(),
		c.LastReportDate.String(),
		resolution,
		duration,
	}
}
