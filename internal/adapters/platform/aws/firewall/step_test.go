package firewall

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/config"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/log"
)

type fakeEC2 struct {
	created   []*ec2.CreateSecurityGroupInput
	ingress   map[string][]ec2types.IpPermission
	deleted   []string
	createErr error
	deleteErr map[string]error
}

func newFakeEC2() *fakeEC2 {
	return &fakeEC2{ingress: map[string][]ec2types.IpPermission{}}
}

func (f *fakeEC2) CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, params)
	id := fmt.Sprintf("sg-%d", len(f.created))
	return &ec2.CreateSecurityGroupOutput{GroupId: aws.String(id)}, nil
}

func (f *fakeEC2) AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	id := aws.ToString(params.GroupId)
	f.ingress[id] = append(f.ingress[id], params.IpPermissions...)
	return &ec2.AuthorizeSecurityGroupIngressOutput{}, nil
}

func (f *fakeEC2) DeleteSecurityGroup(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	id := aws.ToString(params.GroupId)
	if err, ok := f.deleteErr[id]; ok {
		return nil, err
	}
	f.deleted = append(f.deleted, id)
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

func provisionedDoc(t *testing.T, client *fakeEC2, cfg *config.Config) *domain.Document {
	t.Helper()
	step := NewStep(client, cfg, log.NewNopLogger())
	doc := domain.NewDocument(cfg.Project, cfg.Region)
	doc.Network.VpcID = "vpc-1"
	require.NoError(t, step.Provision(context.Background(), doc))
	return doc
}

func TestProvisionCreatesThreeTiers(t *testing.T) {
	client := newFakeEC2()
	cfg := config.DefaultConfig()
	doc := provisionedDoc(t, client, cfg)

	require.Len(t, client.created, 3)
	assert.Equal(t, cfg.Project+"-alb-sg", aws.ToString(client.created[0].GroupName))
	assert.Equal(t, cfg.Project+"-ecs-sg", aws.ToString(client.created[1].GroupName))
	assert.Equal(t, cfg.Project+"-rds-sg", aws.ToString(client.created[2].GroupName))

	assert.Equal(t, "sg-1", doc.Firewall.EdgeGroupID)
	assert.Equal(t, "sg-2", doc.Firewall.ComputeGroupID)
	assert.Equal(t, "sg-3", doc.Firewall.DataGroupID)
}

func TestEdgeTierAdmitsHTTPAndHTTPSFromAnywhere(t *testing.T) {
	client := newFakeEC2()
	doc := provisionedDoc(t, client, config.DefaultConfig())

	rules := client.ingress[doc.Firewall.EdgeGroupID]
	require.Len(t, rules, 2)

	ports := []int32{aws.ToInt32(rules[0].FromPort), aws.ToInt32(rules[1].FromPort)}
	assert.ElementsMatch(t, []int32{80, 443}, ports)
	for _, r := range rules {
		require.Len(t, r.IpRanges, 1)
		assert.Equal(t, "0.0.0.0/0", aws.ToString(r.IpRanges[0].CidrIp))
		assert.Empty(t, r.UserIdGroupPairs)
	}
}

func TestComputeTierOnlyAdmitsEdgeGroup(t *testing.T) {
	client := newFakeEC2()
	cfg := config.DefaultConfig()
	doc := provisionedDoc(t, client, cfg)

	rules := client.ingress[doc.Firewall.ComputeGroupID]
	require.Len(t, rules, 1)
	assert.Equal(t, cfg.App.ContainerPort, aws.ToInt32(rules[0].FromPort))
	require.Len(t, rules[0].UserIdGroupPairs, 1)
	assert.Equal(t, doc.Firewall.EdgeGroupID, aws.ToString(rules[0].UserIdGroupPairs[0].GroupId))
	assert.Empty(t, rules[0].IpRanges)
}

func TestDataTierNeverOpensDatabasePortToACIDR(t *testing.T) {
	client := newFakeEC2()
	cfg := config.DefaultConfig()
	doc := provisionedDoc(t, client, cfg)

	rules := client.ingress[doc.Firewall.DataGroupID]
	require.Len(t, rules, 1)
	assert.Equal(t, cfg.Database.Port, aws.ToInt32(rules[0].FromPort))
	assert.Equal(t, cfg.Database.Port, aws.ToInt32(rules[0].ToPort))
	require.Len(t, rules[0].UserIdGroupPairs, 1)
	assert.Equal(t, doc.Firewall.ComputeGroupID, aws.ToString(rules[0].UserIdGroupPairs[0].GroupId))
	assert.Empty(t, rules[0].IpRanges, "database ingress must be group-scoped, never CIDR-scoped")
}

func TestProvisionClassifiesDuplicateGroup(t *testing.T) {
	client := newFakeEC2()
	client.createErr = &smithy.GenericAPIError{Code: "InvalidGroup.Duplicate", Message: "exists"}
	cfg := config.DefaultConfig()
	step := NewStep(client, cfg, log.NewNopLogger())
	doc := domain.NewDocument(cfg.Project, cfg.Region)
	doc.Network.VpcID = "vpc-1"

	err := step.Provision(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeResourceAlreadyExists))
}

func TestDestroyPeelsFromDataToEdge(t *testing.T) {
	client := newFakeEC2()
	cfg := config.DefaultConfig()
	doc := provisionedDoc(t, client, cfg)
	step := NewStep(client, cfg, log.NewNopLogger())

	require.NoError(t, step.Destroy(context.Background(), doc))

	assert.Equal(t, []string{"sg-3", "sg-2", "sg-1"}, client.deleted)
	assert.Empty(t, doc.Firewall.EdgeGroupID)
	assert.Empty(t, doc.Firewall.ComputeGroupID)
	assert.Empty(t, doc.Firewall.DataGroupID)
}

func TestDestroyToleratesMissingGroup(t *testing.T) {
	client := newFakeEC2()
	cfg := config.DefaultConfig()
	doc := provisionedDoc(t, client, cfg)
	client.deleteErr = map[string]error{
		"sg-2": &smithy.GenericAPIError{Code: "InvalidGroup.NotFound", Message: "gone"},
	}
	step := NewStep(client, cfg, log.NewNopLogger())

	require.NoError(t, step.Destroy(context.Background(), doc))
	assert.Empty(t, doc.Firewall.ComputeGroupID)
}
