package cli

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/warp/claim-ledger/claims"
	"github.com/warp/claim-ledger/snapshot"
)

func newIngestCmd(a *app) *cobra.Command {
	var listFile string

	cmd := &cobra.Command{
		Use:   "ingest [FILE.xlsx...]",
		Short: "Ingest claim listing snapshots into the ledger",
		Long: `Reads every snapshot, orders them by their as-of date and reconciles each
into the ledger. Snapshots already ingested are skipped, so re-running after
an interruption finishes the work.

Unrecognized status text aborts the snapshot before anything is written;
every offending row is listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := append([]string(nil), args...)
			if listFile != "" {
				listed, err := snapshot.ReadList(listFile)
				if err != nil {
					return err
				}
				paths = append(paths, listed...)
			}
			if len(paths) == 0 {
				return errors.New("no snapshot files given (pass files or --list)")
			}
			return a.runIngest(cmd, paths)
		},
	}
	cmd.Flags().StringVarP(&listFile, "list", "l", "", "file listing snapshot paths, one per line")
	return cmd
}

func (a *app) runIngest(cmd *cobra.Command, paths []string) error {
	snaps, err := snapshot.ReadFiles(paths)
	if err != nil {
		return err
	}

	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	engine := claims.NewEngine(s, claims.WithLogger(a.log))
	for _, snap := range snaps {
		res, err := engine.Ingest(cmd.Context(), snap)
		if err != nil {
			printIngestError(out, snap, err)
			return errors.Wrapf(err, "ingest %s", snap.SourceID)
		}
		printIngestResult(out, res)
	}
	return nil
}

func printIngestResult(out io.Writer, res claims.IngestResult) {
	if res.Skipped {
		fmt.Fprintf(out, "%s  %s  already ingested, skipped\n", res.AsOf, res.SourceID)
		return
	}
	fmt.Fprintf(out, "%s  %s  %d rows: %d new, %d updated, %d unchanged, %d closed claims kept, %d closed as missing\n",
		res.AsOf, res.SourceID, res.Rows, res.Inserted, res.Updated, res.Unchanged, res.Protected, res.ForceClosed)
}

func printIngestError(out io.Writer, snap claims.Snapshot, err error) {
	var verrs claims.ValidationErrors
	if !errors.As(err, &verrs) {
		return
	}
	fmt.Fprintf(out, "%s  %s  %d rows with unrecognized status:\n", snap.AsOf, snap.SourceID, len(verrs))
	for _, v := range verrs {
		fmt.Fprintf(out, "  row %d  %s  %q\n", v.Row+1, v.Key, v.Status)
	}
}
