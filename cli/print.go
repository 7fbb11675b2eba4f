package cli

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/warp/claim-ledger/claims"
	"github.com/warp/claim-ledger/export"
)

func newPrintCmd(a *app) *cobra.Command {
	var (
		status     string
		openOnly   bool
		intervenor string
	)

	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the claim ledger as a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := claims.ClaimFilter{OpenOnly: openOnly, Intervenor: intervenor}
			if status != "" {
				st, ok := claims.ParseStatus(status)
				if !ok {
					return errors.Newf("unknown status %q (want Pending, Assigned or Closed)", status)
				}
				filter.Status = &st
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			list, err := s.ListClaims(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no claims")
				return nil
			}
			table, err := renderClaims(list)
			if err != nil {
				return errors.Wrap(err, "failed to render table")
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only claims with this status")
	cmd.Flags().BoolVar(&openOnly, "open", false, "only claims that are not Closed")
	cmd.Flags().StringVar(&intervenor, "intervenor", "", "only intervenors containing this text")
	return cmd
}

func renderClaims(list []claims.Claim) (string, error) {
	data := pterm.TableData{{"Intervenor", "Claim Date", "Proceeding", "Amount", "Status", "First Seen", "Last Seen", "Resolved", "Days"}}
	for _, c := range list {
		resolved, days := "", ""
		if c.ResolutionDate != nil {
			resolved = c.ResolutionDate.String()
		}
		if c.DurationDays != nil {
			days = strconv.Itoa(*c.DurationDays)
		}
		data = append(data, []string{
			c.Intervenor,
			c.ClaimDate.String(),
			c.Proceeding,
			c.Amount.StringFixed(2),
			string(c.Status),
			c.FirstReportDate.String(),
			c.LastReportDate.String(),
			resolved,
			days,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE.xlsx",
		Short: "Export the ledger and report history to a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			reports, err := s.ListReports(cmd.Context())
			if err != nil {
				return err
			}
			list, err := s.ListClaims(cmd.Context(), claims.ClaimFilter{})
			if err != nil {
				return err
			}
			if err := export.WriteWorkbook(args[0], reports, list); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d claims and %d reports to %s\n", len(list), len(reports), args[0])
			return nil
		},
	}
}
