package taskservice

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/awserrors"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/limiter"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/config"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
)

// Grace period before the scheduler starts counting load balancer health
// checks against fresh tasks.
const healthCheckGraceSeconds = 60

// ServiceStep creates the long-running service that keeps the desired
// number of tasks registered behind the target group.
type ServiceStep struct {
	client ECSAPI
	cfg    *config.Config
	logger ports.Logger
}

func NewServiceStep(client ECSAPI, cfg *config.Config, logger ports.Logger) *ServiceStep {
	return &ServiceStep{client: client, cfg: cfg, logger: logger}
}

func (s *ServiceStep) ID() domain.StepID {
	return domain.StepService
}

func (s *ServiceStep) Describe() string {
	return fmt.Sprintf("launch service %s-service with %d task(s)", s.cfg.Project, s.cfg.App.DesiredCount)
}

func (s *ServiceStep) Requires() []domain.Field {
	return []domain.Field{
		domain.FieldClusterName,
		domain.FieldTaskDefinitionARN,
		domain.FieldTargetGroupARN,
		domain.FieldPublicSubnetIDs,
		domain.FieldComputeGroupID,
	}
}

func (s *ServiceStep) Produces() []domain.Field {
	return []domain.Field{domain.FieldServiceARN}
}

func (s *ServiceStep) serviceName() string { return s.cfg.Project + "-service" }

func (s *ServiceStep) Provision(ctx context.Context, doc *domain.Document) error {
	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	out, err := s.client.CreateService(ctx, &ecs.CreateServiceInput{
		Cluster:        aws.String(doc.Cluster.Name),
		ServiceName:    aws.String(s.serviceName()),
		TaskDefinition: aws.String(doc.Release.TaskDefinitionARN),
		DesiredCount:   aws.Int32(s.cfg.App.DesiredCount),
		LaunchType:     ecstypes.LaunchTypeFargate,
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        doc.Network.PublicSubnetIDs,
				SecurityGroups: []string{doc.Firewall.ComputeGroupID},
				AssignPublicIp: ecstypes.AssignPublicIpEnabled,
			},
		},
		LoadBalancers: []ecstypes.LoadBalancer{{
			TargetGroupArn: aws.String(doc.LoadBalancer.TargetGroupARN),
			ContainerName:  aws.String(s.cfg.App.ContainerName),
			ContainerPort:  aws.Int32(s.cfg.App.ContainerPort),
		}},
		HealthCheckGracePeriodSeconds: aws.Int32(healthCheckGraceSeconds),
		Tags: []ecstypes.Tag{
			{Key: aws.String("Project"), Value: aws.String(s.cfg.Project)},
		},
	})
	if err != nil {
		return awserrors.Classify(ctx, err, fmt.Sprintf("service %s", s.serviceName()))
	}

	doc.Release.ServiceARN = aws.ToString(out.Service.ServiceArn)
	s.logger.Infof(ctx, "Created service %s", doc.Release.ServiceARN)
	return nil
}

func (s *ServiceStep) Destroy(ctx context.Context, doc *domain.Document) error {
	if doc.Release.ServiceARN == "" {
		return nil
	}

	// Drain before deletion so the force flag does not race running tasks.
	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	_, err := s.client.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:      aws.String(doc.Cluster.Name),
		Service:      aws.String(s.serviceName()),
		DesiredCount: aws.Int32(0),
	})
	if err != nil && !awserrors.IsNotFound(err) {
		return awserrors.Classify(ctx, err, fmt.Sprintf("service %s scale-down", s.serviceName()))
	}

	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	_, err = s.client.DeleteService(ctx, &ecs.DeleteServiceInput{
		Cluster: aws.String(doc.Cluster.Name),
		Service: aws.String(s.serviceName()),
		Force:   aws.Bool(true),
	})
	if err != nil && !awserrors.IsNotFound(err) {
		return awserrors.Classify(ctx, err, fmt.Sprintf("service %s", s.serviceName()))
	}

	s.logger.Infof(ctx, "Deleted service %s", s.serviceName())
	doc.Release.ServiceARN = ""
	return nil
}
