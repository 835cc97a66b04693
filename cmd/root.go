package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apperrors "github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	statePath string
	dryRun    bool
	noColor   bool
)

var rootCmd = &cobra.Command{
	Use:   "geopctl",
	Short: "Provisions and releases the geopolitical data platform backend on AWS.",
	Long: `geopctl drives the backend's cloud footprint end to end: it provisions
the network, security groups, database, image repository, cluster and load
balancer, then builds and releases the application container behind them.
Every created identifier is recorded in a typed state document so releases,
re-runs and teardown always know what exists.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func reportError(err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.IsUserFacing {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", appErr.Message)
		if appErr.SuggestedAction != "" {
			fmt.Fprintf(os.Stderr, "Suggestion: %s\n", appErr.SuggestedAction)
		}
		return
	}
	userMsg, suggestion, _ := apperrors.GetUserFacingMessage(err)
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", userMsg)
	if suggestion != "" {
		fmt.Fprintf(os.Stderr, "Suggestion: %s\n", suggestion)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default is config.yaml or .geopctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "State document path (default deployment-state.json)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Describe each step without creating anything")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	viper.BindPFlag("settings.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("settings.log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("settings.no_color", rootCmd.PersistentFlags().Lookup("no-color"))
	viper.BindPFlag("state", rootCmd.PersistentFlags().Lookup("state"))
	viper.BindPFlag("dry_run", rootCmd.PersistentFlags().Lookup("dry-run"))

	viper.SetEnvPrefix("GEOPCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func initializeConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigName(".geopctl")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return apperrors.Wrap(err, apperrors.CodeConfigReadError, "failed to read config file")
		}
	}

	return nil
}
