package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/warp/claim-ledger/api"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger read-only over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			router := api.NewRouter(api.NewHandler(s, a.log), api.RouterOptions{AllowedOrigins: a.cfg.CORSOrigins})
			return api.ListenAndServe(ctx, a.cfg.Addr, router, a.log)
		},
	}
	cmd.Flags().String("addr", DefaultAddr, "listen address")
	_ = a.v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	return cmd
}
