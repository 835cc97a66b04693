package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/app"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/reporting/text"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the state document records without touching the cloud.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, store, err := app.BuildStateOnlyFromViper(cmd.Context(), viper.GetViper())
		if err != nil {
			return err
		}

		doc, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}

		reporter, err := text.NewReporter(text.Config{NoColor: viper.GetBool("settings.no_color")}, logger)
		if err != nil {
			return err
		}
		return reporter.Report(cmd.Context(), doc)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
