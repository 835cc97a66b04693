// Package iamroles provisions the execution role (image pulls, log
// writes, secret reads) and the task role the running container assumes.
package iamroles

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/awserrors"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/limiter"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/config"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
	apperrors "github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
)

const (
	executionPolicyARN = "arn:aws:iam::aws:policy/service-role/AmazonECSTaskExecutionRolePolicy"
	secretsPolicyName  = "secrets-access"
)

type IAMAPI interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
	DeleteRolePolicy(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error)
	DetachRolePolicy(ctx context.Context, params *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error)
	DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
}

type Step struct {
	client IAMAPI
	cfg    *config.Config
	logger ports.Logger
}

func NewStep(client IAMAPI, cfg *config.Config, logger ports.Logger) *Step {
	return &Step{client: client, cfg: cfg, logger: logger}
}

func (s *Step) ID() domain.StepID {
	return domain.StepIAMRoles
}

func (s *Step) Describe() string {
	return "create the task execution and task roles with secret read access"
}

func (s *Step) Requires() []domain.Field {
	return []domain.Field{
		domain.FieldDatabaseURLSecret,
		domain.FieldSecretKeySecret,
	}
}

func (s *Step) Produces() []domain.Field {
	return []domain.Field{
		domain.FieldExecutionRoleARN,
		domain.FieldTaskRoleARN,
	}
}

func (s *Step) executionRoleName() string { return s.cfg.Project + "-execution-role" }
func (s *Step) taskRoleName() string      { return s.cfg.Project + "-task-role" }

func (s *Step) Provision(ctx context.Context, doc *domain.Document) error {
	assumePolicy, err := assumeRolePolicy()
	if err != nil {
		return err
	}

	execARN, err := s.createRole(ctx, s.executionRoleName(), assumePolicy)
	if err != nil {
		return err
	}
	doc.Release.ExecutionRoleARN = execARN

	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	_, err = s.client.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(s.executionRoleName()),
		PolicyArn: aws.String(executionPolicyARN),
	})
	if err != nil {
		return awserrors.Classify(ctx, err, "execution role managed policy attachment")
	}

	secretsPolicy, err := secretsAccessPolicy(doc.Release.DatabaseURLSecretARN, doc.Release.SecretKeySecretARN)
	if err != nil {
		return err
	}
	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	_, err = s.client.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(s.executionRoleName()),
		PolicyName:     aws.String(secretsPolicyName),
		PolicyDocument: aws.String(secretsPolicy),
	})
	if err != nil {
		return awserrors.Classify(ctx, err, "execution role secrets policy")
	}

	taskARN, err := s.createRole(ctx, s.taskRoleName(), assumePolicy)
	if err != nil {
		return err
	}
	doc.Release.TaskRoleARN = taskARN

	s.logger.Infof(ctx, "Created roles execution=%s task=%s", execARN, taskARN)
	return nil
}

func (s *Step) createRole(ctx context.Context, name, assumePolicy string) (string, error) {
	if err := limiter.Wait(ctx, s.logger); err != nil {
		return "", err
	}
	out, err := s.client.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(assumePolicy),
		Tags: []iamtypes.Tag{
			{Key: aws.String("Project"), Value: aws.String(s.cfg.Project)},
		},
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, fmt.Sprintf("role %s", name))
	}
	return aws.ToString(out.Role.Arn), nil
}

func (s *Step) Destroy(ctx context.Context, doc *domain.Document) error {
	if doc.Release.ExecutionRoleARN != "" {
		if err := s.destroyCall(ctx, "execution role secrets policy", func() error {
			_, err := s.client.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
				RoleName:   aws.String(s.executionRoleName()),
				PolicyName: aws.String(secretsPolicyName),
			})
			return err
		}); err != nil {
			return err
		}
		if err := s.destroyCall(ctx, "execution role managed policy", func() error {
			_, err := s.client.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
				RoleName:  aws.String(s.executionRoleName()),
				PolicyArn: aws.String(executionPolicyARN),
			})
			return err
		}); err != nil {
			return err
		}
		if err := s.destroyCall(ctx, "execution role", func() error {
			_, err := s.client.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(s.executionRoleName())})
			return err
		}); err != nil {
			return err
		}
		doc.Release.ExecutionRoleARN = ""
	}

	if doc.Release.TaskRoleARN != "" {
		if err := s.destroyCall(ctx, "task role", func() error {
			_, err := s.client.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(s.taskRoleName())})
			return err
		}); err != nil {
			return err
		}
		doc.Release.TaskRoleARN = ""
	}

	return nil
}

func (s *Step) destroyCall(ctx context.Context, resource string, fn func() error) error {
	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if awserrors.IsNotFound(err) {
			s.logger.Warnf(ctx, "%s already gone", resource)
			return nil
		}
		return awserrors.Classify(ctx, err, resource)
	}
	s.logger.Infof(ctx, "Deleted %s", resource)
	return nil
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string            `json:"Effect"`
	Action    []string          `json:"Action,omitempty"`
	Resource  []string          `json:"Resource,omitempty"`
	Principal map[string]string `json:"Principal,omitempty"`
}

func assumeRolePolicy() (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": "ecs-tasks.amazonaws.com"},
			Action:    []string{"sts:AssumeRole"},
		}},
	}
	return marshalPolicy(doc)
}

func secretsAccessPolicy(secretARNs ...string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:   "Allow",
			Action:   []string{"secretsmanager:GetSecretValue"},
			Resource: secretARNs,
		}},
	}
	return marshalPolicy(doc)
}

func marshalPolicy(doc policyDocument) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to marshal IAM policy document")
	}
	return string(data), nil
}
