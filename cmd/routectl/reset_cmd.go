package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/routeimport/internal/admin"
	"github.com/JonMunkholm/routeimport/internal/application"
)

func newResetCmd(c *cli) *cobra.Command {
	var (
		yes        bool
		routesOnly bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every route, shared entity and import operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset is destructive; pass --yes to confirm")
			}

			app, err := application.Open(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			resetter, ok := app.Store.(admin.Resetter)
			if !ok {
				return fmt.Errorf("store %T cannot be reset", app.Store)
			}
			r := &admin.Reset{Store: resetter}
			if routesOnly {
				err = r.Routes(cmd.Context())
			} else {
				err = r.All(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "store reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	cmd.Flags().BoolVar(&routesOnly, "routes-only", false, "Keep the import ledger")
	return cmd
}
