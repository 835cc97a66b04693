// Package loadbalancer provisions the internet-facing load balancer, the
// health-checked target group for the application tasks and the HTTP
// listener forwarding to it.
package loadbalancer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/awserrors"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/limiter"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/config"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
)

// Health check parameters for the target group. These values are part of
// the deployed topology's contract and must not drift.
const (
	healthCheckInterval     = 30
	healthCheckTimeout      = 5
	healthyThresholdCount   = 2
	unhealthyThresholdCount = 3
	listenerPort            = 80
)

type ELBAPI interface {
	CreateLoadBalancer(ctx context.Context, params *elbv2.CreateLoadBalancerInput, optFns ...func(*elbv2.Options)) (*elbv2.CreateLoadBalancerOutput, error)
	CreateTargetGroup(ctx context.Context, params *elbv2.CreateTargetGroupInput, optFns ...func(*elbv2.Options)) (*elbv2.CreateTargetGroupOutput, error)
	CreateListener(ctx context.Context, params *elbv2.CreateListenerInput, optFns ...func(*elbv2.Options)) (*elbv2.CreateListenerOutput, error)
	DeleteListener(ctx context.Context, params *elbv2.DeleteListenerInput, optFns ...func(*elbv2.Options)) (*elbv2.DeleteListenerOutput, error)
	DeleteTargetGroup(ctx context.Context, params *elbv2.DeleteTargetGroupInput, optFns ...func(*elbv2.Options)) (*elbv2.DeleteTargetGroupOutput, error)
	DeleteLoadBalancer(ctx context.Context, params *elbv2.DeleteLoadBalancerInput, optFns ...func(*elbv2.Options)) (*elbv2.DeleteLoadBalancerOutput, error)
}

type Step struct {
	client ELBAPI
	cfg    *config.Config
	logger ports.Logger
}

func NewStep(client ELBAPI, cfg *config.Config, logger ports.Logger) *Step {
	return &Step{client: client, cfg: cfg, logger: logger}
}

func (s *Step) ID() domain.StepID {
	return domain.StepLoadBalancer
}

func (s *Step) Describe() string {
	return fmt.Sprintf("create load balancer with target group health-checked at %s", s.cfg.App.HealthCheckPath)
}

func (s *Step) Requires() []domain.Field {
	return []domain.Field{
		domain.FieldVpcID,
		domain.FieldPublicSubnetIDs,
		domain.FieldEdgeGroupID,
	}
}

func (s *Step) Produces() []domain.Field {
	return []domain.Field{
		domain.FieldLoadBalancerARN,
		domain.FieldLoadBalancerDNSName,
		domain.FieldTargetGroupARN,
		domain.FieldListenerARN,
	}
}

func (s *Step) Provision(ctx context.Context, doc *domain.Document) error {
	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	lbOut, err := s.client.CreateLoadBalancer(ctx, &elbv2.CreateLoadBalancerInput{
		Name:           aws.String(s.cfg.Project + "-alb"),
		Subnets:        doc.Network.PublicSubnetIDs,
		SecurityGroups: []string{doc.Firewall.EdgeGroupID},
		Scheme:         elbv2types.LoadBalancerSchemeEnumInternetFacing,
		Type:           elbv2types.LoadBalancerTypeEnumApplication,
		Tags:           s.tags(),
	})
	if err != nil {
		return awserrors.Classify(ctx, err, "load balancer")
	}
	if len(lbOut.LoadBalancers) == 0 {
		return awserrors.Classify(ctx, fmt.Errorf("empty CreateLoadBalancer response"), "load balancer")
	}
	lb := lbOut.LoadBalancers[0]
	doc.LoadBalancer.ARN = aws.ToString(lb.LoadBalancerArn)
	doc.LoadBalancer.DNSName = aws.ToString(lb.DNSName)
	s.logger.Infof(ctx, "Created load balancer %s (%s)", doc.LoadBalancer.ARN, doc.LoadBalancer.DNSName)

	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	tgOut, err := s.client.CreateTargetGroup(ctx, &elbv2.CreateTargetGroupInput{
		Name:                       aws.String(s.cfg.Project + "-tg"),
		VpcId:                      aws.String(doc.Network.VpcID),
		Protocol:                   elbv2types.ProtocolEnumHttp,
		Port:                       aws.Int32(s.cfg.App.ContainerPort),
		TargetType:                 elbv2types.TargetTypeEnumIp,
		HealthCheckProtocol:        elbv2types.ProtocolEnumHttp,
		HealthCheckPath:            aws.String(s.cfg.App.HealthCheckPath),
		HealthCheckIntervalSeconds: aws.Int32(healthCheckInterval),
		HealthCheckTimeoutSeconds:  aws.Int32(healthCheckTimeout),
		HealthyThresholdCount:      aws.Int32(healthyThresholdCount),
		UnhealthyThresholdCount:    aws.Int32(unhealthyThresholdCount),
		Tags:                       s.tags(),
	})
	if err != nil {
		return awserrors.Classify(ctx, err, "target group")
	}
	if len(tgOut.TargetGroups) == 0 {
		return awserrors.Classify(ctx, fmt.Errorf("empty CreateTargetGroup response"), "target group")
	}
	doc.LoadBalancer.TargetGroupARN = aws.ToString(tgOut.TargetGroups[0].TargetGroupArn)

	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	lsOut, err := s.client.CreateListener(ctx, &elbv2.CreateListenerInput{
		LoadBalancerArn: aws.String(doc.LoadBalancer.ARN),
		Protocol:        elbv2types.ProtocolEnumHttp,
		Port:            aws.Int32(listenerPort),
		DefaultActions: []elbv2types.Action{{
			Type:           elbv2types.ActionTypeEnumForward,
			TargetGroupArn: aws.String(doc.LoadBalancer.TargetGroupARN),
		}},
	})
	if err != nil {
		return awserrors.Classify(ctx, err, "listener")
	}
	if len(lsOut.Listeners) == 0 {
		return awserrors.Classify(ctx, fmt.Errorf("empty CreateListener response"), "listener")
	}
	doc.LoadBalancer.ListenerARN = aws.ToString(lsOut.Listeners[0].ListenerArn)

	s.logger.Infof(ctx, "Listener %s forwards :%d to target group %s", doc.LoadBalancer.ListenerARN, listenerPort, doc.LoadBalancer.TargetGroupARN)
	return nil
}

func (s *Step) Destroy(ctx context.Context, doc *domain.Document) error {
	if doc.LoadBalancer.ListenerARN != "" {
		if err := limiter.Wait(ctx, s.logger); err != nil {
			return err
		}
		_, err := s.client.DeleteListener(ctx, &elbv2.DeleteListenerInput{ListenerArn: aws.String(doc.LoadBalancer.ListenerARN)})
		if err != nil && !awserrors.IsNotFound(err) {
			return awserrors.Classify(ctx, err, "listener")
		}
		doc.LoadBalancer.ListenerARN = ""
	}

	if doc.LoadBalancer.TargetGroupARN != "" {
		if err := limiter.Wait(ctx, s.logger); err != nil {
			return err
		}
		_, err := s.client.DeleteTargetGroup(ctx, &elbv2.DeleteTargetGroupInput{TargetGroupArn: aws.String(doc.LoadBalancer.TargetGroupARN)})
		if err != nil && !awserrors.IsNotFound(err) {
			return awserrors.Classify(ctx, err, "target group")
		}
		doc.LoadBalancer.TargetGroupARN = ""
	}

	if doc.LoadBalancer.ARN != "" {
		if err := limiter.Wait(ctx, s.logger); err != nil {
			return err
		}
		_, err := s.client.DeleteLoadBalancer(ctx, &elbv2.DeleteLoadBalancerInput{LoadBalancerArn: aws.String(doc.LoadBalancer.ARN)})
		if err != nil && !awserrors.IsNotFound(err) {
			return awserrors.Classify(ctx, err, "load balancer")
		}
		s.logger.Infof(ctx, "Deleted load balancer %s", doc.LoadBalancer.ARN)
		doc.LoadBalancer.ARN = ""
		doc.LoadBalancer.DNSName = ""
	}

	return nil
}

func (s *Step) tags() []elbv2types.Tag {
	return []elbv2types.Tag{
		{Key: aws.String("Project"), Value: aws.String(s.cfg.Project)},
	}
}
