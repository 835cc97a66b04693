// Package cluster provisions the serverless container cluster the
// application service runs on.
package cluster

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

type ECSAPI interface {
	CreateCluster(ctx context.Context, params *ecs.CreateClusterInput, optFns ...func(*ecs.Options)) (*ecs.CreateClusterOutput, error)
	DeleteCluster(ctx context.Context, params *ecs.DeleteClusterInput, optFns ...func(*ecs.Options)) (*ecs.DeleteClusterOutput, error)
}

type Step struct {
	client ECSAPI
	cfg    *config.Config
	logger ports.Logger
}

func NewStep(client ECSAPI, cfg *config.Config, logger ports.Logger) *Step {
	return &Step{client: client, cfg: cfg, logger: logger}
}

func (s *Step) ID() domain.StepID {
	return domain.StepCluster
}

func (s *Step) Describe() string {
	return fmt.Sprintf("create serverless container cluster %s-cluster", s.cfg.Project)
}

func (s *Step) Requires() []domain.Field {
	return nil
}

func (s *Step) Produces() []domain.Field {
	return []domain.Field{domain.FieldClusterName, domain.FieldClusterARN}
}

func (s *Step) Provision(ctx context.Context, doc *domain.Document) error {
	name := s.cfg.Project + "-cluster"

	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	out, err := s.client.CreateCluster(ctx, &ecs.CreateClusterInput{
		ClusterName:       aws.String(name),
		CapacityProviders: []string{"FARGATE", "FARGATE_SPOT"},
		Settings: []ecstypes.ClusterSetting{{
			Name:  ecstypes.ClusterSettingNameContainerInsights,
			Value: aws.String("enabled"),
		}},
		Tags: []ecstypes.Tag{
			{Key: aws.String("Project"), Value: aws.String(s.cfg.Project)},
		},
	})
	if err != nil {
		return awserrors.Classify(ctx, err, fmt.Sprintf("container cluster %s", name))
	}

	doc.Cluster.Name = name
	doc.Cluster.ARN = aws.ToString(out.Cluster.ClusterArn)
	s.logger.Infof(ctx, "Created container cluster %s", doc.Cluster.ARN)
	return nil
}

func (s *Step) Destroy(ctx context.Context, doc *domain.Document) error {
	if doc.Cluster.Name == "" {
		return nil
	}
	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	_, err := s.client.DeleteCluster(ctx, &ecs.DeleteClusterInput{Cluster: aws.String(doc.Cluster.Name)})
	if err != nil && !awserrors.IsNotFound(err) {
		return awserrors.Classify(ctx, err, fmt.Sprintf("container cluster %s", doc.Cluster.Name))
	}
	s.logger.Infof(ctx, "Deleted container cluster %s", doc.Cluster.Name)
	doc.Cluster.Name = ""
	doc.Cluster.ARN = ""
	return nil
}
