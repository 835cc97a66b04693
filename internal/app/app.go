// Package app wires configuration, cloud clients, the state store and
// the step sequencer into runnable workflow phases.
package app

import (
	"context"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/build"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/cluster"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/database"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/firewall"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/iamroles"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/loadbalancer"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/network"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/registry"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/secrets"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/taskservice"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/config"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/service"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/state"
)

type Application struct {
	Config   *config.Config
	Logger   ports.Logger
	Store    *state.FileStore
	Reporter ports.Reporter
	Clients  *aws.Clients
	DryRun   bool
}

// ProvisionSteps returns the infrastructure steps in dependency order.
func ProvisionSteps(clients *aws.Clients, cfg *config.Config, logger ports.Logger) []ports.Step {
	return []ports.Step{
		network.NewStep(clients.EC2, cfg, logger),
		firewall.NewStep(clients.EC2, cfg, logger),
		database.NewStep(clients.RDS, cfg, logger),
		registry.NewStep(clients.ECR, cfg, logger),
		cluster.NewStep(clients.ECS, cfg, logger),
		loadbalancer.NewStep(clients.ELB, cfg, logger),
	}
}

// ReleaseSteps returns the application rollout steps in dependency order.
// The docker client may be nil for dry runs; only the image step uses it.
func ReleaseSteps(docker build.DockerAPI, clients *aws.Clients, cfg *config.Config, logger ports.Logger) []ports.Step {
	return []ports.Step{
		build.NewStep(docker, clients.ECR, cfg, logger),
		database.NewWaitStep(clients.RDS, cfg, logger),
		secrets.NewStep(clients.Secrets, cfg, logger),
		iamroles.NewStep(clients.IAM, cfg, logger),
		taskservice.NewTaskDefinitionStep(clients.ECS, clients.Logs, cfg, logger),
		taskservice.NewServiceStep(clients.ECS, cfg, logger),
	}
}

// phaseSeed collects every field a step list produces, for seeding the
// order validation of the next phase.
func phaseSeed(steps []ports.Step) []domain.Field {
	var seed []domain.Field
	for _, s := range steps {
		seed = append(seed, s.Produces()...)
	}
	return seed
}

func (a *Application) Provision(ctx context.Context) error {
	steps := ProvisionSteps(a.Clients, a.Config, a.Logger)
	seq, err := service.NewSequencer(domain.PhaseProvision, steps, nil,
		a.Store, a.Reporter, a.Logger, a.Config.Project, a.Config.Region, a.DryRun)
	if err != nil {
		return err
	}
	return seq.Run(ctx)
}

func (a *Application) Release(ctx context.Context) error {
	var docker build.DockerAPI
	if !a.DryRun {
		var err error
		docker, err = build.NewDockerClient()
		if err != nil {
			return err
		}
	}

	steps := ReleaseSteps(docker, a.Clients, a.Config, a.Logger)
	seed := phaseSeed(ProvisionSteps(a.Clients, a.Config, a.Logger))
	seq, err := service.NewSequencer(domain.PhaseRelease, steps, seed,
		a.Store, a.Reporter, a.Logger, a.Config.Project, a.Config.Region, a.DryRun)
	if err != nil {
		return err
	}
	return seq.Run(ctx)
}

// Teardown destroys everything both phases recorded, release resources
// first. The image step needs no docker client to clean up.
func (a *Application) Teardown(ctx context.Context) error {
	steps := ProvisionSteps(a.Clients, a.Config, a.Logger)
	steps = append(steps, ReleaseSteps(nil, a.Clients, a.Config, a.Logger)...)
	seq, err := service.NewSequencer(domain.PhaseTeardown, steps, nil,
		a.Store, nil, a.Logger, a.Config.Project, a.Config.Region, a.DryRun)
	if err != nil {
		return err
	}
	return seq.Teardown(ctx)
}
