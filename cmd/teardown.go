package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/app"
)

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Destroy everything recorded in the state document, in reverse creation order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.BuildApplicationFromViper(cmd.Context(), viper.GetViper())
		if err != nil {
			return err
		}
		return application.Teardown(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(teardownCmd)
}
