package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/log"
)

// Config is the full typed configuration surface of the tool. It replaces
// the constants the original deployment scripts hardcoded at the top of
// each file. Secrets carry no defaults and must come from the config file
// or the GEOPCTL_* environment (e.g. GEOPCTL_DATABASE_PASSWORD).
type Config struct {
	Project   string          `mapstructure:"project" validate:"required"`
	Region    string          `mapstructure:"region" validate:"required"`
	Network   NetworkConfig   `mapstructure:"network"`
	Database  DatabaseConfig  `mapstructure:"database"`
	App       AppConfig       `mapstructure:"app"`
	Readiness ReadinessConfig `mapstructure:"readiness"`
	Settings  SettingsConfig  `mapstructure:"settings"`
}

type SubnetConfig struct {
	CIDR     string `mapstructure:"cidr" validate:"required,cidrv4"`
	AZSuffix string `mapstructure:"az_suffix" validate:"required,len=1"`
}

type NetworkConfig struct {
	VpcCIDR        string         `mapstructure:"vpc_cidr" validate:"required,cidrv4"`
	PublicSubnets  []SubnetConfig `mapstructure:"public_subnets" validate:"required,len=2,dive"`
	PrivateSubnets []SubnetConfig `mapstructure:"private_subnets" validate:"required,len=2,dive"`
}

type DatabaseConfig struct {
	Engine           string `mapstructure:"engine" validate:"required"`
	EngineVersion    string `mapstructure:"engine_version"`
	Name             string `mapstructure:"name" validate:"required"`
	User             string `mapstructure:"user" validate:"required"`
	Password         string `mapstructure:"password" validate:"required"`
	Port             int32  `mapstructure:"port" validate:"required,gt=0"`
	InstanceClass    string `mapstructure:"instance_class" validate:"required"`
	AllocatedStorage int32  `mapstructure:"allocated_storage" validate:"gte=20"`
}

type AppConfig struct {
	ContainerName   string            `mapstructure:"container_name" validate:"required"`
	ContainerPort   int32             `mapstructure:"container_port" validate:"required,gt=0"`
	HealthCheckPath string            `mapstructure:"health_check_path" validate:"required,startswith=/"`
	CPU             string            `mapstructure:"cpu" validate:"required"`
	Memory          string            `mapstructure:"memory" validate:"required"`
	ImageTag        string            `mapstructure:"image_tag" validate:"required"`
	BuildContext    string            `mapstructure:"build_context" validate:"required"`
	Dockerfile      string            `mapstructure:"dockerfile" validate:"required"`
	DesiredCount    int32             `mapstructure:"desired_count" validate:"gte=1"`
	Environment     map[string]string `mapstructure:"environment"`
}

// ReadinessConfig bounds the database readiness wait. The original
// workflow polled without any timeout; these parameters make the wait
// explicit and finite.
type ReadinessConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay" validate:"gt=0"`
	MaxDelay     time.Duration `mapstructure:"max_delay" validate:"gt=0"`
	Multiplier   float64       `mapstructure:"multiplier" validate:"gte=1"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type SettingsConfig struct {
	LogLevel             log.Level  `mapstructure:"log_level"`
	LogFormat            log.Format `mapstructure:"log_format"`
	APIRequestsPerSecond int        `mapstructure:"api_requests_per_second"`
	NoColor              bool       `mapstructure:"no_color"`
}

func DefaultConfig() *Config {
	return &Config{
		Project: "geopolitical-data-platform",
		Region:  "us-east-1",
		Network: NetworkConfig{
			VpcCIDR: "10.0.0.0/16",
			PublicSubnets: []SubnetConfig{
				{CIDR: "10.0.1.0/24", AZSuffix: "a"},
				{CIDR: "10.0.2.0/24", AZSuffix: "b"},
			},
			PrivateSubnets: []SubnetConfig{
				{CIDR: "10.0.3.0/24", AZSuffix: "a"},
				{CIDR: "10.0.4.0/24", AZSuffix: "b"},
			},
		},
		Database: DatabaseConfig{
			Engine:           "postgres",
			Name:             "geopolitical_data",
			User:             "dbadmin",
			Port:             5432,
			InstanceClass:    "db.t3.micro",
			AllocatedStorage: 20,
		},
		App: AppConfig{
			ContainerName:   "backend",
			ContainerPort:   5000,
			HealthCheckPath: "/api/health",
			CPU:             "256",
			Memory:          "512",
			ImageTag:        "latest",
			BuildContext:    ".",
			Dockerfile:      "Dockerfile",
			DesiredCount:    1,
			Environment: map[string]string{
				"FLASK_ENV": "production",
				"PORT":      "5000",
			},
		},
		Readiness: ReadinessConfig{
			InitialDelay: 10 * time.Second,
			MaxDelay:     60 * time.Second,
			Multiplier:   2.0,
			Timeout:      20 * time.Minute,
		},
		Settings: SettingsConfig{
			LogLevel:  log.LevelInfo,
			LogFormat: log.FormatText,
		},
	}
}

// Validate runs struct validation and folds the field errors into one
// user-facing configuration error.
func Validate(ctx context.Context, cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.StructCtx(ctx, cfg)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, errors.CodeConfigValidation, "configuration validation failed")
	}

	var details strings.Builder
	details.WriteString("Configuration validation failed:")
	for _, fe := range validationErrors {
		details.WriteString(fmt.Sprintf("\n - Field '%s': failed on '%s' validation (value: '%v')", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.NewUserFacing(errors.CodeConfigValidation, details.String(),
		"Check the configuration file, flags and GEOPCTL_* environment variables.")
}

// AvailabilityZone composes a zone name from the configured region and a
// subnet's zone suffix (us-east-1 + a = us-east-1a).
func (c *Config) AvailabilityZone(suffix string) string {
	return c.Region + suffix
}

// DatabaseURL renders the connection string stored for the application:
// postgresql://<user>:<password>@<endpoint>:<port>/<dbname>.
func (c *Config) DatabaseURL(endpoint string) string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s",
		c.Database.User, c.Database.Password, endpoint, c.Database.Port, c.Database.Name)
}
