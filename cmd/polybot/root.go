package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "polybot",
		Short: "Telegram image bot with object detection",
		Long: "polybot receives Telegram webhook calls, transforms images on request " +
			"and runs object-detection predictions through an inference service.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts.configPath)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file (default ./config.yaml)")

	cmd.AddCommand(newServeCmd(opts), newMigrateCmd(opts))
	return cmd
}
