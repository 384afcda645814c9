package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	server string
	token  string
	json   bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "devwatch",
		Short:         "Classify and inspect attached USB devices",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.server, "server", envOr("DEVWATCH_SERVER", "http://localhost:8080"), "devwatch server base URL")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", envOr("DEVWATCH_API_TOKEN", ""), "bearer token for write operations")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Emit JSON instead of a table")

	rootCmd.AddCommand(newClassifyCommand(opts))
	rootCmd.AddCommand(newSubmitCommand(opts))
	rootCmd.AddCommand(newDevicesCommand(opts))
	rootCmd.AddCommand(newDeviceCommand(opts))
	rootCmd.AddCommand(newEvictCommand(opts))

	return rootCmd
}
