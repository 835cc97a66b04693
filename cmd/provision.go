package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/app"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the backend's infrastructure: network, security groups, database, registry, cluster and load balancer.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.BuildApplicationFromViper(cmd.Context(), viper.GetViper())
		if err != nil {
			return err
		}
		return application.Provision(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(provisionCmd)
}
