// Package taskservice registers the task definition describing the
// application container and launches the service behind the load
// balancer.
package taskservice

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/awserrors"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/limiter"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/config"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
)

// Container health check parameters, matched to the target group's
// external check so both agree on what healthy means.
const (
	healthCheckIntervalSeconds = 30
	healthCheckTimeoutSeconds  = 5
	healthCheckRetries         = 3
	healthCheckStartPeriod     = 60
	logRetentionDays           = 30
)

type ECSAPI interface {
	RegisterTaskDefinition(ctx context.Context, params *ecs.RegisterTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.RegisterTaskDefinitionOutput, error)
	DeregisterTaskDefinition(ctx context.Context, params *ecs.DeregisterTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.DeregisterTaskDefinitionOutput, error)
	CreateService(ctx context.Context, params *ecs.CreateServiceInput, optFns ...func(*ecs.Options)) (*ecs.CreateServiceOutput, error)
	UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)
	DeleteService(ctx context.Context, params *ecs.DeleteServiceInput, optFns ...func(*ecs.Options)) (*ecs.DeleteServiceOutput, error)
}

type LogsAPI interface {
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	DeleteLogGroup(ctx context.Context, params *cloudwatchlogs.DeleteLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteLogGroupOutput, error)
}

// TaskDefinitionStep creates the log group and registers the task
// definition: one container, fixed port, production environment, secret
// references and an HTTP health check.
type TaskDefinitionStep struct {
	ecsClient  ECSAPI
	logsClient LogsAPI
	cfg        *config.Config
	logger     ports.Logger
}

func NewTaskDefinitionStep(ecsClient ECSAPI, logsClient LogsAPI, cfg *config.Config, logger ports.Logger) *TaskDefinitionStep {
	return &TaskDefinitionStep{ecsClient: ecsClient, logsClient: logsClient, cfg: cfg, logger: logger}
}

func (s *TaskDefinitionStep) ID() domain.StepID {
	return domain.StepTaskDefinition
}

func (s *TaskDefinitionStep) Describe() string {
	return fmt.Sprintf("register task definition (%s cpu / %s memory, port %d)", s.cfg.App.CPU, s.cfg.App.Memory, s.cfg.App.ContainerPort)
}

func (s *TaskDefinitionStep) Requires() []domain.Field {
	return []domain.Field{
		domain.FieldImageURI,
		domain.FieldExecutionRoleARN,
		domain.FieldTaskRoleARN,
		domain.FieldDatabaseURLSecret,
		domain.FieldSecretKeySecret,
	}
}

func (s *TaskDefinitionStep) Produces() []domain.Field {
	return []domain.Field{
		domain.FieldLogGroup,
		domain.FieldTaskDefinitionARN,
	}
}

func (s *TaskDefinitionStep) Provision(ctx context.Context, doc *domain.Document) error {
	logGroup := "/ecs/" + s.cfg.Project

	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	_, err := s.logsClient.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(logGroup),
	})
	if err != nil {
		return awserrors.Classify(ctx, err, fmt.Sprintf("log group %s", logGroup))
	}

	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	_, err = s.logsClient.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(logGroup),
		RetentionInDays: aws.Int32(logRetentionDays),
	})
	if err != nil {
		return awserrors.Classify(ctx, err, fmt.Sprintf("log group %s retention", logGroup))
	}
	doc.Release.LogGroup = logGroup

	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	out, err := s.ecsClient.RegisterTaskDefinition(ctx, &ecs.RegisterTaskDefinitionInput{
		Family:                  aws.String(s.cfg.Project),
		RequiresCompatibilities: []ecstypes.Compatibility{ecstypes.CompatibilityFargate},
		NetworkMode:             ecstypes.NetworkModeAwsvpc,
		Cpu:                     aws.String(s.cfg.App.CPU),
		Memory:                  aws.String(s.cfg.App.Memory),
		ExecutionRoleArn:        aws.String(doc.Release.ExecutionRoleARN),
		TaskRoleArn:             aws.String(doc.Release.TaskRoleARN),
		ContainerDefinitions:    []ecstypes.ContainerDefinition{s.containerDefinition(doc, logGroup)},
		Tags: []ecstypes.Tag{
			{Key: aws.String("Project"), Value: aws.String(s.cfg.Project)},
		},
	})
	if err != nil {
		return awserrors.Classify(ctx, err, "task definition")
	}

	doc.Release.TaskDefinitionARN = aws.ToString(out.TaskDefinition.TaskDefinitionArn)
	s.logger.Infof(ctx, "Registered task definition %s", doc.Release.TaskDefinitionARN)
	return nil
}

func (s *TaskDefinitionStep) containerDefinition(doc *domain.Document, logGroup string) ecstypes.ContainerDefinition {
	env := make([]ecstypes.KeyValuePair, 0, len(s.cfg.App.Environment))
	keys := make([]string, 0, len(s.cfg.App.Environment))
	for k := range s.cfg.App.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, ecstypes.KeyValuePair{
			Name:  aws.String(k),
			Value: aws.String(s.cfg.App.Environment[k]),
		})
	}

	healthURL := fmt.Sprintf("http://localhost:%d%s", s.cfg.App.ContainerPort, s.cfg.App.HealthCheckPath)

	return ecstypes.ContainerDefinition{
		Name:      aws.String(s.cfg.App.ContainerName),
		Image:     aws.String(doc.Release.ImageURI),
		Essential: aws.Bool(true),
		PortMappings: []ecstypes.PortMapping{{
			ContainerPort: aws.Int32(s.cfg.App.ContainerPort),
			Protocol:      ecstypes.TransportProtocolTcp,
		}},
		Environment: env,
		Secrets: []ecstypes.Secret{
			{Name: aws.String("DATABASE_URL"), ValueFrom: aws.String(doc.Release.DatabaseURLSecretARN)},
			{Name: aws.String("SECRET_KEY"), ValueFrom: aws.String(doc.Release.SecretKeySecretARN)},
		},
		LogConfiguration: &ecstypes.LogConfiguration{
			LogDriver: ecstypes.LogDriverAwslogs,
			Options: map[string]string{
				"awslogs-group":         logGroup,
				"awslogs-region":        s.cfg.Region,
				"awslogs-stream-prefix": "ecs",
			},
		},
		HealthCheck: &ecstypes.HealthCheck{
			Command:     []string{"CMD-SHELL", fmt.Sprintf("curl -f %s || exit 1", healthURL)},
			Interval:    aws.Int32(healthCheckIntervalSeconds),
			Timeout:     aws.Int32(healthCheckTimeoutSeconds),
			Retries:     aws.Int32(healthCheckRetries),
			StartPeriod: aws.Int32(healthCheckStartPeriod),
		},
	}
}

func (s *TaskDefinitionStep) Destroy(ctx context.Context, doc *domain.Document) error {
	if doc.Release.TaskDefinitionARN != "" {
		if err := limiter.Wait(ctx, s.logger); err != nil {
			return err
		}
		_, err := s.ecsClient.DeregisterTaskDefinition(ctx, &ecs.DeregisterTaskDefinitionInput{
			TaskDefinition: aws.String(doc.Release.TaskDefinitionARN),
		})
		if err != nil && !awserrors.IsNotFound(err) {
			return awserrors.Classify(ctx, err, "task definition")
		}
		doc.Release.TaskDefinitionARN = ""
	}

	if doc.Release.LogGroup != "" {
		if err := limiter.Wait(ctx, s.logger); err != nil {
			return err
		}
		_, err := s.logsClient.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
			LogGroupName: aws.String(doc.Release.LogGroup),
		})
		if err != nil && !awserrors.IsNotFound(err) {
			return awserrors.Classify(ctx, err, fmt.Sprintf("log group %s", doc.Release.LogGroup))
		}
		doc.Release.LogGroup = ""
	}

	return nil
}
