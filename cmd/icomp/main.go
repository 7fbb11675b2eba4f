/*
main.go - icomp entry point

PURPOSE:
  Runs the icomp command tree. All configuration, logging and storage
  wiring lives in package cli.

EXAMPLES:
  # Ingest two quarters into the default database (./icompdb.sqlite)
  icomp ingest IC-2023-Q1.xlsx IC-2023-Q2.xlsx

  # Use another database and JSON logs
  ICOMP_DB=./data/ledger.sqlite icomp --json-logs ingest --list reports.txt

  # Serve the ledger read-only
  icomp serve --addr :9090

SEE ALSO:
  - cli/root.go: Command tree and configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/warp/claim-ledger/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
