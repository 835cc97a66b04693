package database

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/awserrors"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/limiter"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/config"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
	apperrors "github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
)

const statusAvailable = "available"

// WaitStep blocks the release phase until the database instance reports
// itself available, then records its endpoint. The poll uses bounded
// exponential backoff; the original workflow polled forever, which is the
// one behavior this tool refuses to reproduce.
type WaitStep struct {
	client RDSAPI
	cfg    *config.Config
	logger ports.Logger

	// sleep is swapped out in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewWaitStep(client RDSAPI, cfg *config.Config, logger ports.Logger) *WaitStep {
	return &WaitStep{
		client: client,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
		now:    time.Now,
	}
}

func (s *WaitStep) ID() domain.StepID {
	return domain.StepDatabaseWait
}

func (s *WaitStep) Describe() string {
	return fmt.Sprintf("wait up to %s for the database instance to become available", s.cfg.Readiness.Timeout)
}

func (s *WaitStep) Requires() []domain.Field {
	return []domain.Field{domain.FieldDatabaseInstanceID}
}

func (s *WaitStep) Produces() []domain.Field {
	return []domain.Field{domain.FieldDatabaseEndpoint}
}

func (s *WaitStep) Provision(ctx context.Context, doc *domain.Document) error {
	instanceID := doc.Database.InstanceID
	deadline := s.now().Add(s.cfg.Readiness.Timeout)
	delay := s.cfg.Readiness.InitialDelay
	lastStatus := "unknown"

	for attempt := 1; ; attempt++ {
		status, endpoint, err := s.describe(ctx, instanceID)
		if err != nil {
			return err
		}
		lastStatus = status

		if status == statusAvailable {
			if endpoint == "" {
				return apperrors.New(apperrors.CodePlatformAPIError,
					fmt.Sprintf("DB instance %s is available but reported no endpoint", instanceID))
			}
			doc.Database.Endpoint = endpoint
			s.logger.Infof(ctx, "DB instance %s is available at %s (after %d polls)", instanceID, endpoint, attempt)
			return nil
		}

		if !s.now().Add(delay).Before(deadline) {
			return apperrors.NewUserFacing(apperrors.CodeReadinessTimeout,
				fmt.Sprintf("DB instance %s did not become available within %s (last status: %s)",
					instanceID, s.cfg.Readiness.Timeout, lastStatus),
				"The instance may still be creating. Re-run the release once it is available, or raise readiness.timeout.")
		}

		s.logger.Infof(ctx, "DB instance %s status is %q, next poll in %s", instanceID, status, delay)
		if err := s.sleep(ctx, delay); err != nil {
			return apperrors.Wrap(err, apperrors.CodePlatformAPIError, "readiness wait interrupted")
		}

		delay = time.Duration(float64(delay) * s.cfg.Readiness.Multiplier)
		if delay > s.cfg.Readiness.MaxDelay {
			delay = s.cfg.Readiness.MaxDelay
		}
	}
}

func (s *WaitStep) describe(ctx context.Context, instanceID string) (status, endpoint string, err error) {
	if err := limiter.Wait(ctx, s.logger); err != nil {
		return "", "", err
	}
	out, err := s.client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: aws.String(instanceID),
	})
	if err != nil {
		return "", "", awserrors.Classify(ctx, err, fmt.Sprintf("DB instance %s", instanceID))
	}
	if len(out.DBInstances) == 0 {
		return "", "", apperrors.New(apperrors.CodeResourceNotFound,
			fmt.Sprintf("DB instance %s not present in describe response", instanceID))
	}

	instance := out.DBInstances[0]
	status = aws.ToString(instance.DBInstanceStatus)
	if instance.Endpoint != nil {
		endpoint = aws.ToString(instance.Endpoint.Address)
	}
	return status, endpoint, nil
}

// Destroy clears the recorded endpoint; the database step owns deleting
// the instance itself.
func (s *WaitStep) Destroy(ctx context.Context, doc *domain.Document) error {
	doc.Database.Endpoint = ""
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
