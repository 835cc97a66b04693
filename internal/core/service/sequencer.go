package service

import (
	"context"
	"fmt"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
)

// Sequencer executes an ordered list of provisioning steps strictly
// sequentially and fail-fast: the first failing step aborts the run and
// nothing it produced is persisted. The ordering constraint is
// infrastructure dependency (a listener cannot reference a load balancer
// that does not exist yet), so there is deliberately no concurrency here.
type Sequencer struct {
	phase    domain.Phase
	steps    []ports.Step
	store    ports.StateStore
	reporter ports.Reporter
	logger   ports.Logger
	project  string
	region   string
	dryRun   bool
}

func NewSequencer(
	phase domain.Phase,
	steps []ports.Step,
	seed []domain.Field,
	store ports.StateStore,
	reporter ports.Reporter,
	logger ports.Logger,
	project string,
	region string,
	dryRun bool,
) (*Sequencer, error) {
	if store == nil {
		return nil, errors.New(errors.CodeInternal, "state store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New(errors.CodeInternal, "logger cannot be nil")
	}
	if len(steps) == 0 {
		return nil, errors.New(errors.CodeInternal, "sequencer requires at least one step")
	}
	if err := ValidateOrder(steps, seed); err != nil {
		return nil, err
	}

	return &Sequencer{
		phase:    phase,
		steps:    steps,
		store:    store,
		reporter: reporter,
		logger:   logger,
		project:  project,
		region:   region,
		dryRun:   dryRun,
	}, nil
}

// ValidateOrder checks the dependency-order invariant: every field a step
// requires must be produced by an earlier step in the list or be part of
// the seed (fields produced by a previous phase).
func ValidateOrder(steps []ports.Step, seed []domain.Field) error {
	produced := make(map[domain.Field]domain.StepID, len(seed))
	for _, f := range seed {
		produced[f] = "(seed)"
	}
	for _, step := range steps {
		for _, f := range step.Requires() {
			if _, ok := produced[f]; !ok {
				return errors.New(errors.CodeInternal,
					fmt.Sprintf("step %q requires field %q which no earlier step produces", step.ID(), f))
			}
		}
		for _, f := range step.Produces() {
			produced[f] = step.ID()
		}
	}
	return nil
}

func (s *Sequencer) Run(ctx context.Context) error {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if doc.Project == "" {
		doc.Project = s.project
		doc.Region = s.region
	} else if doc.Project != s.project {
		return errors.NewUserFacing(errors.CodeConfigValidation,
			fmt.Sprintf("state document at %s belongs to project %q, not %q", s.store.Path(), doc.Project, s.project),
			"Point --state at the right document or remove the stale one.")
	}

	s.logger.Infof(ctx, "Starting %s phase (%d steps, state: %s)", s.phase, len(s.steps), s.store.Path())

	for _, step := range s.steps {
		stepLog := s.logger.WithFields(map[string]any{"step": step.ID().String()})

		if s.dryRun {
			stepLog.Infof(ctx, "[dry-run] %s", step.Describe())
			continue
		}

		if recorded := alreadyRecorded(doc, step); len(recorded) > 0 {
			return errors.NewUserFacing(errors.CodeResourceAlreadyExists,
				fmt.Sprintf("step %q already recorded %v in the state document; refusing to provision duplicates", step.ID(), recorded),
				"Run teardown first, or remove the state document if the resources are gone.")
		}

		if missing := doc.Missing(step.Requires()); len(missing) > 0 {
			return errors.New(errors.CodeMissingDependency,
				fmt.Sprintf("step %q needs %v but an earlier step never recorded them", step.ID(), missing))
		}

		stepLog.Infof(ctx, "%s", step.Describe())
		if err := step.Provision(ctx, doc); err != nil {
			wrapped := errors.Wrap(err, errors.CodeProvisioningFailed,
				fmt.Sprintf("step %q failed", step.ID()))
			stepLog.Errorf(ctx, wrapped, "Aborting %s phase, remaining steps skipped", s.phase)
			return wrapped
		}

		if err := s.store.Save(ctx, doc); err != nil {
			return errors.Wrap(err, errors.CodeStateWriteError,
				fmt.Sprintf("step %q succeeded but its identifiers could not be persisted", step.ID()))
		}
		stepLog.Infof(ctx, "Step complete, state persisted")
	}

	if s.dryRun {
		s.logger.Infof(ctx, "Dry run complete, no resources created")
		return nil
	}

	s.logger.Infof(ctx, "%s phase complete", s.phase)
	if s.reporter != nil {
		return s.reporter.Report(ctx, doc)
	}
	return nil
}

// Teardown destroys recorded resources in reverse step order. Steps with
// nothing recorded are skipped; resources that are already gone are
// tolerated so a partially provisioned stack can still be cleaned up.
func (s *Sequencer) Teardown(ctx context.Context) error {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	s.logger.Infof(ctx, "Starting teardown (%d steps, reverse order)", len(s.steps))

	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		stepLog := s.logger.WithFields(map[string]any{"step": step.ID().String()})

		if len(alreadyRecorded(doc, step)) == 0 {
			stepLog.Debugf(ctx, "Nothing recorded, skipping")
			continue
		}

		if s.dryRun {
			stepLog.Infof(ctx, "[dry-run] would destroy resources of step %q", step.ID())
			continue
		}

		stepLog.Infof(ctx, "Destroying resources of step %q", step.ID())
		if err := step.Destroy(ctx, doc); err != nil {
			if errors.Is(err, errors.CodeResourceNotFound) {
				stepLog.Warnf(ctx, "Resource already gone, continuing: %v", err)
			} else {
				return errors.Wrap(err, errors.CodeTeardownFailed,
					fmt.Sprintf("teardown of step %q failed", step.ID()))
			}
		}

		if err := s.store.Save(ctx, doc); err != nil {
			return errors.Wrap(err, errors.CodeStateWriteError, "failed to persist state after teardown step")
		}
	}

	s.logger.Infof(ctx, "Teardown complete")
	return nil
}

func alreadyRecorded(doc *domain.Document, step ports.Step) []domain.Field {
	var recorded []domain.Field
	for _, f := range step.Produces() {
		if doc.Has(f) {
			recorded = append(recorded, f)
		}
	}
	return recorded
}
