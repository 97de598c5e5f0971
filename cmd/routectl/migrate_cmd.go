package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/routeimport/internal/application"
	"github.com/JonMunkholm/routeimport/internal/config"
	"github.com/JonMunkholm/routeimport/internal/database"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Database.Driver != config.DriverPostgres {
				fmt.Fprintln(cmd.OutOrStdout(), "store driver is not postgres; nothing to migrate")
				return nil
			}
			pool, err := application.OpenPool(cmd.Context(), c.cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}
