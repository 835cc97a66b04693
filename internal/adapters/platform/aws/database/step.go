// Package database provisions the managed PostgreSQL instance on the
// private subnets and, during release, waits for it to become available.
package database

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/awserrors"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/limiter"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/config"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
)

type RDSAPI interface {
	CreateDBSubnetGroup(ctx context.Context, params *rds.CreateDBSubnetGroupInput, optFns ...func(*rds.Options)) (*rds.CreateDBSubnetGroupOutput, error)
	CreateDBInstance(ctx context.Context, params *rds.CreateDBInstanceInput, optFns ...func(*rds.Options)) (*rds.CreateDBInstanceOutput, error)
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	DeleteDBInstance(ctx context.Context, params *rds.DeleteDBInstanceInput, optFns ...func(*rds.Options)) (*rds.DeleteDBInstanceOutput, error)
	DeleteDBSubnetGroup(ctx context.Context, params *rds.DeleteDBSubnetGroupInput, optFns ...func(*rds.Options)) (*rds.DeleteDBSubnetGroupOutput, error)
}

type Step struct {
	client RDSAPI
	cfg    *config.Config
	logger ports.Logger
}

func NewStep(client RDSAPI, cfg *config.Config, logger ports.Logger) *Step {
	return &Step{client: client, cfg: cfg, logger: logger}
}

func (s *Step) ID() domain.StepID {
	return domain.StepDatabase
}

func (s *Step) Describe() string {
	return fmt.Sprintf("create %s %s database instance on the private subnets", s.cfg.Database.Engine, s.cfg.Database.InstanceClass)
}

func (s *Step) Requires() []domain.Field {
	return []domain.Field{
		domain.FieldPrivateSubnetIDs,
		domain.FieldDataGroupID,
	}
}

func (s *Step) Produces() []domain.Field {
	return []domain.Field{
		domain.FieldDatabaseInstanceID,
		domain.FieldDatabaseName,
		domain.FieldDatabaseUser,
	}
}

func (s *Step) Provision(ctx context.Context, doc *domain.Document) error {
	subnetGroup := s.cfg.Project + "-db-subnets"

	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	_, err := s.client.CreateDBSubnetGroup(ctx, &rds.CreateDBSubnetGroupInput{
		DBSubnetGroupName:        aws.String(subnetGroup),
		DBSubnetGroupDescription: aws.String("Private subnets for " + s.cfg.Project),
		SubnetIds:                doc.Network.PrivateSubnetIDs,
		Tags:                     s.tags(),
	})
	if err != nil {
		return awserrors.Classify(ctx, err, fmt.Sprintf("DB subnet group %s", subnetGroup))
	}

	instanceID := s.cfg.Project + "-db"

	input := &rds.CreateDBInstanceInput{
		DBInstanceIdentifier:  aws.String(instanceID),
		DBName:                aws.String(s.cfg.Database.Name),
		Engine:                aws.String(s.cfg.Database.Engine),
		DBInstanceClass:       aws.String(s.cfg.Database.InstanceClass),
		MasterUsername:        aws.String(s.cfg.Database.User),
		MasterUserPassword:    aws.String(s.cfg.Database.Password),
		AllocatedStorage:      aws.Int32(s.cfg.Database.AllocatedStorage),
		Port:                  aws.Int32(s.cfg.Database.Port),
		VpcSecurityGroupIds:   []string{doc.Firewall.DataGroupID},
		DBSubnetGroupName:     aws.String(subnetGroup),
		PubliclyAccessible:    aws.Bool(false),
		StorageEncrypted:      aws.Bool(true),
		BackupRetentionPeriod: aws.Int32(7),
		Tags:                  s.tags(),
	}
	if s.cfg.Database.EngineVersion != "" {
		input.EngineVersion = aws.String(s.cfg.Database.EngineVersion)
	}

	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	if _, err := s.client.CreateDBInstance(ctx, input); err != nil {
		return awserrors.Classify(ctx, err, fmt.Sprintf("DB instance %s", instanceID))
	}

	doc.Database.InstanceID = instanceID
	doc.Database.Name = s.cfg.Database.Name
	doc.Database.User = s.cfg.Database.User
	doc.Database.SubnetGroup = subnetGroup

	s.logger.Infof(ctx, "Requested DB instance %s (creation continues in the background; the release phase waits for it)", instanceID)
	return nil
}

func (s *Step) Destroy(ctx context.Context, doc *domain.Document) error {
	if doc.Database.InstanceID != "" {
		if err := limiter.Wait(ctx, s.logger); err != nil {
			return err
		}
		_, err := s.client.DeleteDBInstance(ctx, &rds.DeleteDBInstanceInput{
			DBInstanceIdentifier:   aws.String(doc.Database.InstanceID),
			SkipFinalSnapshot:      aws.Bool(true),
			DeleteAutomatedBackups: aws.Bool(true),
		})
		if err != nil && !awserrors.IsNotFound(err) {
			return awserrors.Classify(ctx, err, fmt.Sprintf("DB instance %s", doc.Database.InstanceID))
		}
		s.logger.Infof(ctx, "Requested deletion of DB instance %s", doc.Database.InstanceID)
		doc.Database.InstanceID = ""
		doc.Database.Endpoint = ""
	}

	if doc.Database.SubnetGroup != "" {
		if err := limiter.Wait(ctx, s.logger); err != nil {
			return err
		}
		_, err := s.client.DeleteDBSubnetGroup(ctx, &rds.DeleteDBSubnetGroupInput{
			DBSubnetGroupName: aws.String(doc.Database.SubnetGroup),
		})
		if err != nil && !awserrors.IsNotFound(err) {
			// Subnet group deletion races the instance teardown; surface
			// the error so the operator can re-run once the instance is gone.
			return awserrors.Classify(ctx, err, fmt.Sprintf("DB subnet group %s", doc.Database.SubnetGroup))
		}
		doc.Database.SubnetGroup = ""
	}

	doc.Database.Name = ""
	doc.Database.User = ""
	return nil
}

func (s *Step) tags() []rdstypes.Tag {
	return []rdstypes.Tag{
		{Key: aws.String("Project"), Value: aws.String(s.cfg.Project)},
	}
}
