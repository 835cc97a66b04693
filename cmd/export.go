package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/app"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/state"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the state document as KEY=VALUE lines for shell scripts.",
	Long: `Print the recorded identifiers in the flat KEY=VALUE format older
deployment scripts source. Only recorded values are emitted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := app.BuildStateOnlyFromViper(cmd.Context(), viper.GetViper())
		if err != nil {
			return err
		}

		doc, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}
		return state.WriteEnv(os.Stdout, doc)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
