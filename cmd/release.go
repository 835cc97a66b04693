package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/app"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Build and push the application image, then roll it out as a service on the provisioned infrastructure.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.BuildApplicationFromViper(cmd.Context(), viper.GetViper())
		if err != nil {
			return err
		}
		return application.Release(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(releaseCmd)
}
