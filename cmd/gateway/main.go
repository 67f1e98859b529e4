// Command gateway serves the playground API over HTTP and, optionally, MCP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type serveFlags struct {
	config string
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gateway",
		Short:         "Code execution gateway for the Rust playground.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	sf := new(serveFlags)
	serveCmd := &cobra.Command{
		Use:   "serve [-c config_file]",
		Short: "Start the HTTP gateway.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), sf)
		},
		DisableFlagsInUseLine: true,
	}
	serveCmd.Flags().StringVarP(&sf.config, "config", "c", "", "config file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the gateway version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	rootCmd.AddCommand(serveCmd, versionCmd)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway exited with error: %v\n", err)
		os.Exit(1)
	}
}
