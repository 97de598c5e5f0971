package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/routeimport/internal/application"
	"github.com/JonMunkholm/routeimport/internal/core"
)

func newImportCmd(c *cli) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import routes from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			if info.Size() > c.cfg.Import.MaxFileSize {
				return fmt.Errorf("%s is %d bytes; IMPORT_MAX_FILE_SIZE is %d", args[0], info.Size(), c.cfg.Import.MaxFileSize)
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), c.cfg.Import.Timeout)
			defer cancel()

			app, err := application.Open(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Service.ImportBatch(ctx, username, filepath.Base(args[0]), content)
			if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil {
				return werr
			}
			if err != nil {
				return err
			}
			if result.Status != core.StatusSuccess {
				return fmt.Errorf("import %d: %s", result.OperationID, result.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", core.DefaultUsername, "Username recorded on the import operation")
	return cmd
}
