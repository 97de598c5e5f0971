package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/routeimport/internal/config"
	"github.com/JonMunkholm/routeimport/internal/core"
	"github.com/JonMunkholm/routeimport/internal/logging"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfg    *config.Config
	logs   io.Closer
	noEnv  bool
	stderr io.Writer
}

func newRootCmd() *cobra.Command {
	c := &cli{stderr: os.Stderr}
	cmd := &cobra.Command{
		Use:           "routectl",
		Short:         "Route service maintenance and CSV imports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !c.noEnv {
				_ = godotenv.Load()
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logs = logging.Setup(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: c.stderr,
			})
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.logs != nil {
				return c.logs.Close()
			}
			return nil
		},
	}
	cmd.PersistentFlags().BoolVar(&c.noEnv, "no-env-file", false, "Do not read .env from the working directory")

	cmd.AddCommand(
		newMigrateCmd(c),
		newImportCmd(c),
		newOperationsCmd(c),
		newOperationCmd(c),
		newResetCmd(c),
	)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportError prints err for an operator. Errors with a catalog entry get
// the user message and code, followed by the technical cause.
func reportError(w io.Writer, err error) {
	if !core.IsUserFacing(err) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Error: %s\n  cause: %v\n", core.FormatUserError(err), err)
}
