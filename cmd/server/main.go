package main

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/taskkeeper/internal/server"
	"github.com/dmitrijs2005/taskkeeper/internal/server/config"
	"github.com/spf13/cobra"
)

// set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Config flags are parsed by config.LoadConfig from os.Args, so cobra flag
// parsing is off for the commands that load it.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:                "taskkeeper",
		Short:              "Per-user task tracker API",
		SilenceUsage:       true,
		DisableFlagParsing: true,
		RunE:               runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:                "serve",
			Short:              "Apply migrations and serve the HTTP API and gRPC health endpoint",
			DisableFlagParsing: true,
			RunE:               runServe,
		},
		&cobra.Command{
			Use:                "migrate",
			Short:              "Apply database migrations and exit",
			DisableFlagParsing: true,
			RunE:               runMigrate,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "taskkeeper %s\n", version)
			},
		},
	)
	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	app, err := server.NewApp(config.LoadConfig(), version)
	if err != nil {
		return err
	}
	return app.Run(cmd.Context())
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	app, err := server.NewApp(config.LoadConfig(), version)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Migrate(cmd.Context())
}
