package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "vidstaged",
		Short:         "Content acquisition pipeline daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to config file")

	root.AddCommand(
		newServeCommand(&configPath),
		newProcessCommand(&configPath),
		newSeedCommand(&configPath),
		newStatusCommand(&configPath),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vidstaged %s\n", version)
		},
	}
}
