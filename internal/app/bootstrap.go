package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/limiter"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/config"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/log"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/reporting/text"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/state"
)

// DefaultStatePath is where the handoff document lives unless --state
// points elsewhere.
const DefaultStatePath = "deployment-state.json"

// BuildApplicationFromViper assembles the full application: configuration,
// logger, state store, reporter and cloud clients.
func BuildApplicationFromViper(ctx context.Context, v *viper.Viper) (*Application, error) {
	cfg := config.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigParseError, "failed to unmarshal configuration")
	}

	logCfg := log.Config{Level: cfg.Settings.LogLevel, Format: cfg.Settings.LogFormat}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", err)
		return nil, errors.Wrap(err, errors.CodeInternal, "logger initialization failed")
	}
	logger.Infof(ctx, "Logger initialized (Level: %s, Format: %s)", cfg.Settings.LogLevel, cfg.Settings.LogFormat)
	if v.ConfigFileUsed() != "" {
		logger.Debugf(ctx, "Using configuration file: %s", v.ConfigFileUsed())
	} else {
		logger.Debugf(ctx, "No configuration file found, using defaults/env/flags.")
	}

	if err := config.Validate(ctx, cfg); err != nil {
		logger.Errorf(ctx, err, "Configuration validation failed")
		return nil, err
	}
	logger.Debugf(ctx, "Configuration validated successfully")

	limiter.Initialize(cfg.Settings.APIRequestsPerSecond, logger)

	store, err := newStore(v)
	if err != nil {
		return nil, err
	}
	logger.Debugf(ctx, "State document: %s", store.Path())

	reporter, err := text.NewReporter(text.Config{NoColor: cfg.Settings.NoColor}, logger)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to initialize reporter")
	}

	clients, err := aws.NewClients(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}
	logger.Infof(ctx, "AWS clients ready for region %s", cfg.Region)

	return &Application{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Reporter: reporter,
		Clients:  clients,
		DryRun:   v.GetBool("dry_run"),
	}, nil
}

// BuildStateOnlyFromViper builds the minimal application the read-only
// commands (status, export) need: logger and state store, no cloud
// clients and no configuration validation.
func BuildStateOnlyFromViper(ctx context.Context, v *viper.Viper) (ports.Logger, *state.FileStore, error) {
	logCfg := log.DefaultConfig()
	if lvl := v.GetString("settings.log_level"); lvl != "" {
		logCfg.Level = log.Level(lvl)
	}
	if format := v.GetString("settings.log_format"); format != "" {
		logCfg.Format = log.Format(format)
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeInternal, "logger initialization failed")
	}

	store, err := newStore(v)
	if err != nil {
		return nil, nil, err
	}
	return logger, store, nil
}

func newStore(v *viper.Viper) (*state.FileStore, error) {
	path := v.GetString("state")
	if path == "" {
		path = DefaultStatePath
	}
	return state.NewFileStore(path)
}
