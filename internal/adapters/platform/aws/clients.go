// Package aws builds the SDK clients the provisioning steps share.
package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
)

// Clients bundles one client per AWS service the workflow touches.
// Credentials come from the standard SDK chain (env, shared config, role).
type Clients struct {
	Config  awssdk.Config
	EC2     *ec2.Client
	RDS     *rds.Client
	ECR     *ecr.Client
	ECS     *ecs.Client
	ELB     *elbv2.Client
	IAM     *iam.Client
	Secrets *secretsmanager.Client
	Logs    *cloudwatchlogs.Client
}

func NewClients(ctx context.Context, region string) (*Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodePlatformAuthError, "failed to load AWS configuration")
	}

	return &Clients{
		Config:  cfg,
		EC2:     ec2.NewFromConfig(cfg),
		RDS:     rds.NewFromConfig(cfg),
		ECR:     ecr.NewFromConfig(cfg),
		ECS:     ecs.NewFromConfig(cfg),
		ELB:     elbv2.NewFromConfig(cfg),
		IAM:     iam.NewFromConfig(cfg),
		Secrets: secretsmanager.NewFromConfig(cfg),
		Logs:    cloudwatchlogs.NewFromConfig(cfg),
	}, nil
}
