package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect icomp configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if used := a.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(out, "# config file: %s\n", used)
			} else {
				fmt.Fprintln(out, "# no config file, using defaults, flags and ICOMP_* environment")
			}
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return errors.Wrap(err, "failed to marshal config")
			}
			_, err = out.Write(data)
			return err
		},
	})
	return cmd
}
