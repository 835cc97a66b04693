// Package network provisions the isolated virtual network: one VPC, two
// public and two private subnets across two availability zones, an
// internet gateway and the public route table.
package network

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

type Step struct {
	client EC2API
	cfg    *config.Config
	logger ports.Logger
}

func NewStep(client EC2API, cfg *config.Config, logger ports.Logger) *Step {
	return &Step{client: client, cfg: cfg, logger: logger}
}

func (s *Step) ID() domain.StepID {
	return domain.StepNetwork
}

func (s *Step) Describe() string {
	return fmt.Sprintf("create VPC %s with %d public and %d private subnets, internet gateway and public routing",
		s.cfg.Network.VpcCIDR, len(s.cfg.Network.PublicSubnets), len(s.cfg.Network.PrivateSubnets))
}

func (s *Step) Requires() []domain.Field {
	return nil
}

func (s *Step) Produces() []domain.Field {
	return []domain.Field{
		domain.FieldVpcID,
		domain.FieldPublicSubnetIDs,
		domain.FieldPrivateSubnetIDs,
		domain.FieldInternetGatewayID,
		domain.FieldPublicRouteTableID,
	}
}

func (s *Step) Provision(ctx context.Context, doc *domain.Document) error {
	vpcID, err := s.createVpc(ctx)
	if err != nil {
		return err
	}
	doc.Network.VpcID = vpcID
	s.logger.Infof(ctx, "Created VPC %s (%s)", vpcID, s.cfg.Network.VpcCIDR)

	for _, sn := range s.cfg.Network.PublicSubnets {
		id, err := s.createSubnet(ctx, vpcID, sn, true)
		if err != nil {
			return err
		}
		doc.Network.PublicSubnetIDs = append(doc.Network.PublicSubnetIDs, id)
	}
	for _, sn := range s.cfg.Network.PrivateSubnets {
		id, err := s.createSubnet(ctx, vpcID, sn, false)
		if err != nil {
			return err
		}
		doc.Network.PrivateSubnetIDs = append(doc.Network.PrivateSubnetIDs, id)
	}

	igwID, err := s.attachInternetGateway(ctx, vpcID)
	if err != nil {
		return err
	}
	doc.Network.InternetGatewayID = igwID

	rtID, assocIDs, err := s.routePublicSubnets(ctx, vpcID, igwID, doc.Network.PublicSubnetIDs)
	if err != nil {
		return err
	}
	doc.Network.PublicRouteTableID = rtID
	doc.Network.RouteAssociationIDs = assocIDs

	return nil
}

func (s *Step) createVpc(ctx context.Context) (string, error) {
	if err := limiter.Wait(ctx, s.logger); err != nil {
		return "", err
	}
	out, err := s.client.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         aws.String(s.cfg.Network.VpcCIDR),
		TagSpecifications: s.tags(ec2types.ResourceTypeVpc, s.cfg.Project+"-vpc"),
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, "VPC")
	}
	vpcID := aws.ToString(out.Vpc.VpcId)

	// The backend resolves RDS endpoints by name, so both DNS attributes
	// must be on.
	for _, attr := range []*ec2.ModifyVpcAttributeInput{
		{VpcId: aws.String(vpcID), EnableDnsSupport: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)}},
		{VpcId: aws.String(vpcID), EnableDnsHostnames: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)}},
	} {
		if err := limiter.Wait(ctx, s.logger); err != nil {
			return "", err
		}
		if _, err := s.client.ModifyVpcAttribute(ctx, attr); err != nil {
			return "", awserrors.Classify(ctx, err, fmt.Sprintf("VPC %s DNS attributes", vpcID))
		}
	}
	return vpcID, nil
}

func (s *Step) createSubnet(ctx context.Context, vpcID string, sn config.SubnetConfig, public bool) (string, error) {
	tier := "private"
	if public {
		tier = "public"
	}
	name := fmt.Sprintf("%s-%s-%s", s.cfg.Project, tier, sn.AZSuffix)

	if err := limiter.Wait(ctx, s.logger); err != nil {
		return "", err
	}
	out, err := s.client.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:             aws.String(vpcID),
		CidrBlock:         aws.String(sn.CIDR),
		AvailabilityZone:  aws.String(s.cfg.AvailabilityZone(sn.AZSuffix)),
		TagSpecifications: s.tags(ec2types.ResourceTypeSubnet, name),
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, fmt.Sprintf("subnet %s", sn.CIDR))
	}
	subnetID := aws.ToString(out.Subnet.SubnetId)

	if public {
		if err := limiter.Wait(ctx, s.logger); err != nil {
			return "", err
		}
		_, err = s.client.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            aws.String(subnetID),
			MapPublicIpOnLaunch: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
		})
		if err != nil {
			return "", awserrors.Classify(ctx, err, fmt.Sprintf("subnet %s public IP mapping", subnetID))
		}
	}

	s.logger.Infof(ctx, "Created %s subnet %s (%s, %s)", tier, subnetID, sn.CIDR, s.cfg.AvailabilityZone(sn.AZSuffix))
	return subnetID, nil
}

func (s *Step) attachInternetGateway(ctx context.Context, vpcID string) (string, error) {
	if err := limiter.Wait(ctx, s.logger); err != nil {
		return "", err
	}
	out, err := s.client.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
		TagSpecifications: s.tags(ec2types.ResourceTypeInternetGateway, s.cfg.Project+"-igw"),
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, "internet gateway")
	}
	igwID := aws.ToString(out.InternetGateway.InternetGatewayId)

	if err := limiter.Wait(ctx, s.logger); err != nil {
		return "", err
	}
	_, err = s.client.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
		VpcId:             aws.String(vpcID),
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, fmt.Sprintf("internet gateway %s attachment", igwID))
	}
	s.logger.Infof(ctx, "Attached internet gateway %s to %s", igwID, vpcID)
	return igwID, nil
}

func (s *Step) routePublicSubnets(ctx context.Context, vpcID, igwID string, publicSubnetIDs []string) (string, []string, error) {
	if err := limiter.Wait(ctx, s.logger); err != nil {
		return "", nil, err
	}
	rtOut, err := s.client.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
		VpcId:             aws.String(vpcID),
		TagSpecifications: s.tags(ec2types.ResourceTypeRouteTable, s.cfg.Project+"-public-rt"),
	})
	if err != nil {
		return "", nil, awserrors.Classify(ctx, err, "public route table")
	}
	rtID := aws.ToString(rtOut.RouteTable.RouteTableId)

	if err := limiter.Wait(ctx, s.logger); err != nil {
		return "", nil, err
	}
	_, err = s.client.CreateRoute(ctx, &ec2.CreateRouteInput{
		RouteTableId:         aws.String(rtID),
		DestinationCidrBlock: aws.String(internetCIDR),
		GatewayId:            aws.String(igwID),
	})
	if err != nil {
		return "", nil, awserrors.Classify(ctx, err, "default route")
	}

	assocIDs := make([]string, 0, len(publicSubnetIDs))
	for _, subnetID := range publicSubnetIDs {
		if err := limiter.Wait(ctx, s.logger); err != nil {
			return "", nil, err
		}
		assocOut, err := s.client.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
			RouteTableId: aws.String(rtID),
			SubnetId:     aws.String(subnetID),
		})
		if err != nil {
			return "", nil, awserrors.Classify(ctx, err, fmt.Sprintf("route table association for %s", subnetID))
		}
		assocIDs = append(assocIDs, aws.ToString(assocOut.AssociationId))
	}

	s.logger.Infof(ctx, "Routed public subnets through %s via %s", rtID, igwID)
	return rtID, assocIDs, nil
}

func (s *Step) Destroy(ctx context.Context, doc *domain.Document) error {
	for _, assocID := range doc.Network.RouteAssociationIDs {
		if err := s.destroyCall(ctx, "route table association "+assocID, func() error {
			_, err := s.client.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{AssociationId: aws.String(assocID)})
			return err
		}); err != nil {
			return err
		}
	}
	doc.Network.RouteAssociationIDs = nil

	if doc.Network.PublicRouteTableID != "" {
		if err := s.destroyCall(ctx, "route table "+doc.Network.PublicRouteTableID, func() error {
			_, err := s.client.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: aws.String(doc.Network.PublicRouteTableID)})
			return err
		}); err != nil {
			return err
		}
		doc.Network.PublicRouteTableID = ""
	}

	if doc.Network.InternetGatewayID != "" {
		if doc.Network.VpcID != "" {
			if err := s.destroyCall(ctx, "internet gateway detachment", func() error {
				_, err := s.client.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
					InternetGatewayId: aws.String(doc.Network.InternetGatewayID),
					VpcId:             aws.String(doc.Network.VpcID),
				})
				return err
			}); err != nil {
				return err
			}
		}
		if err := s.destroyCall(ctx, "internet gateway "+doc.Network.InternetGatewayID, func() error {
			_, err := s.client.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{InternetGatewayId: aws.String(doc.Network.InternetGatewayID)})
			return err
		}); err != nil {
			return err
		}
		doc.Network.InternetGatewayID = ""
	}

	remaining := append(append([]string{}, doc.Network.PublicSubnetIDs...), doc.Network.PrivateSubnetIDs...)
	for _, subnetID := range remaining {
		if err := s.destroyCall(ctx, "subnet "+subnetID, func() error {
			_, err := s.client.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(subnetID)})
			return err
		}); err != nil {
			return err
		}
	}
	doc.Network.PublicSubnetIDs = nil
	doc.Network.PrivateSubnetIDs = nil

	if doc.Network.VpcID != "" {
		if err := s.destroyCall(ctx, "VPC "+doc.Network.VpcID, func() error {
			_, err := s.client.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(doc.Network.VpcID)})
			return err
		}); err != nil {
			return err
		}
		doc.Network.VpcID = ""
	}

	return nil
}

// destroyCall runs one delete, treating a missing resource as success so
// teardown can resume after partial failures.
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

func (s *Step) tags(resourceType ec2types.ResourceType, name string) []ec2types.TagSpecification {
	return []ec2types.TagSpecification{{
		ResourceType: resourceType,
		Tags: []ec2types.Tag{
			{Key: aws.String("Name"), Value: aws.String(name)},
			{Key: aws.String("Project"), Value: aws.String(s.cfg.Project)},
		},
	}}
}
