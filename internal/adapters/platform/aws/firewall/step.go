// Package firewall provisions the three tiered security groups: edge
// (load balancer), compute (service tasks) and data (database). Each
// tier only admits traffic from the tier in front of it; the data tier
// in particular never opens 5432 to a CIDR.
package firewall

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/awserrors"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/limiter"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/config"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
)

const internetCIDR = "0.0.0.0/0"

type EC2API interface {
	CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	DeleteSecurityGroup(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error)
}

type Step struct {
	client EC2API
	cfg    *config.Config
	logger ports.Logger
}

func NewStep(client EC2API, cfg *config.Config, logger ports.Logger) *Step {
	return &Step{client: client, cfg: cfg, logger: logger}
}

func (s *Step) ID() domain.StepID {
	return domain.StepFirewall
}

func (s *Step) Describe() string {
	return "create edge, compute and data security groups with tiered ingress rules"
}

func (s *Step) Requires() []domain.Field {
	return []domain.Field{domain.FieldVpcID}
}

func (s *Step) Produces() []domain.Field {
	return []domain.Field{
		domain.FieldEdgeGroupID,
		domain.FieldComputeGroupID,
		domain.FieldDataGroupID,
	}
}

func (s *Step) Provision(ctx context.Context, doc *domain.Document) error {
	vpcID := doc.Network.VpcID

	edgeID, err := s.createGroup(ctx, vpcID, s.cfg.Project+"-alb-sg", "Load balancer tier: HTTP/HTTPS from the internet")
	if err != nil {
		return err
	}
	doc.Firewall.EdgeGroupID = edgeID

	edgeRules := []ec2types.IpPermission{
		cidrPermission(80, internetCIDR),
		cidrPermission(443, internetCIDR),
	}
	if err := s.authorize(ctx, edgeID, edgeRules); err != nil {
		return err
	}

	computeID, err := s.createGroup(ctx, vpcID, s.cfg.Project+"-ecs-sg", "Compute tier: app port from the load balancer only")
	if err != nil {
		return err
	}
	doc.Firewall.ComputeGroupID = computeID

	if err := s.authorize(ctx, computeID, []ec2types.IpPermission{
		groupPermission(s.cfg.App.ContainerPort, edgeID),
	}); err != nil {
		return err
	}

	dataID, err := s.createGroup(ctx, vpcID, s.cfg.Project+"-rds-sg", "Data tier: database port from the compute tier only")
	if err != nil {
		return err
	}
	doc.Firewall.DataGroupID = dataID

	if err := s.authorize(ctx, dataID, []ec2types.IpPermission{
		groupPermission(s.cfg.Database.Port, computeID),
	}); err != nil {
		return err
	}

	s.logger.Infof(ctx, "Created security groups edge=%s compute=%s data=%s", edgeID, computeID, dataID)
	return nil
}

func (s *Step) createGroup(ctx context.Context, vpcID, name, description string) (string, error) {
	if err := limiter.Wait(ctx, s.logger); err != nil {
		return "", err
	}
	out, err := s.client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String(description),
		VpcId:       aws.String(vpcID),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeSecurityGroup,
			Tags: []ec2types.Tag{
				{Key: aws.String("Name"), Value: aws.String(name)},
				{Key: aws.String("Project"), Value: aws.String(s.cfg.Project)},
			},
		}},
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, fmt.Sprintf("security group %s", name))
	}
	return aws.ToString(out.GroupId), nil
}

func (s *Step) authorize(ctx context.Context, groupID string, permissions []ec2types.IpPermission) error {
	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	_, err := s.client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(groupID),
		IpPermissions: permissions,
	})
	if err != nil {
		return awserrors.Classify(ctx, err, fmt.Sprintf("ingress rules for %s", groupID))
	}
	return nil
}

func (s *Step) Destroy(ctx context.Context, doc *domain.Document) error {
	// Reverse creation order: data references compute, compute references
	// edge, so deletion has to peel from the inside out.
	groups := []struct {
		name string
		id   *string
	}{
		{"data", &doc.Firewall.DataGroupID},
		{"compute", &doc.Firewall.ComputeGroupID},
		{"edge", &doc.Firewall.EdgeGroupID},
	}
	for _, g := range groups {
		if *g.id == "" {
			continue
		}
		if err := limiter.Wait(ctx, s.logger); err != nil {
			return err
		}
		_, err := s.client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(*g.id)})
		if err != nil {
			if awserrors.IsNotFound(err) {
				s.logger.Warnf(ctx, "Security group %s (%s tier) already gone", *g.id, g.name)
			} else {
				return awserrors.Classify(ctx, err, fmt.Sprintf("security group %s", *g.id))
			}
		} else {
			s.logger.Infof(ctx, "Deleted %s tier security group %s", g.name, *g.id)
		}
		*g.id = ""
	}
	return nil
}

func cidrPermission(port int32, cidr string) ec2types.IpPermission {
	return ec2types.IpPermission{
		IpProtocol: aws.String("tcp"),
		FromPort:   aws.Int32(port),
		ToPort:     aws.Int32(port),
		IpRanges:   []ec2types.IpRange{{CidrIp: aws.String(cidr)}},
	}
}

func groupPermission(port int32, sourceGroupID string) ec2types.IpPermission {
	return ec2types.IpPermission{
		IpProtocol:       aws.String("tcp"),
		FromPort:         aws.Int32(port),
		ToPort:           aws.Int32(port),
		UserIdGroupPairs: []ec2types.UserIdGroupPair{{GroupId: aws.String(sourceGroupID)}},
	}
}
