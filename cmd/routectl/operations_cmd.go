package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/routeimport/internal/application"
	"github.com/JonMunkholm/routeimport/internal/core"
)

func newOperationsCmd(c *cli) *cobra.Command {
	var (
		username string
		page     int
		size     int
	)

	cmd := &cobra.Command{
		Use:   "operations",
		Short: "List import operations of a user, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := application.Open(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			out, err := app.Service.ListOperations(cmd.Context(), username, page, size)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&username, "username", core.DefaultUsername, "Owner of the operations")
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&size, "size", 20, "Page size")
	return cmd
}

func newOperationCmd(c *cli) *cobra.Command {
	var download string

	cmd := &cobra.Command{
		Use:   "operation ID",
		Short: "Show one import operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid operation id %q", args[0])
			}

			app, err := application.Open(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			op, err := app.Service.GetOperation(cmd.Context(), id)
			if err != nil {
				return err
			}
			if download != "" {
				f, err := app.Service.DownloadImportFile(cmd.Context(), id)
				if err != nil {
					return err
				}
				if err := os.WriteFile(download, f.Data, 0o644); err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), op)
		},
	}
	cmd.Flags().StringVar(&download, "download", "", "Write the archived import file to this path")
	return cmd
}
