package iamroles

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/config"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/log"
)

type fakeIAM struct {
	roles      []*iam.CreateRoleInput
	attached   []*iam.AttachRolePolicyInput
	inline     []*iam.PutRolePolicyInput
	deleted    []string
	createErr  error
	deleteErrs map[string]error
}

func (f *fakeIAM) CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.roles = append(f.roles, params)
	name := aws.ToString(params.RoleName)
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{
		RoleName: params.RoleName,
		Arn:      aws.String("arn:aws:iam::123456789012:role/" + name),
	}}, nil
}

func (f *fakeIAM) AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	f.attached = append(f.attached, params)
	return &iam.AttachRolePolicyOutput{}, nil
}

func (f *fakeIAM) PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	f.inline = append(f.inline, params)
	return &iam.PutRolePolicyOutput{}, nil
}

func (f *fakeIAM) DeleteRolePolicy(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error) {
	f.deleted = append(f.deleted, "inline:"+aws.ToString(params.PolicyName))
	return &iam.DeleteRolePolicyOutput{}, nil
}

func (f *fakeIAM) DetachRolePolicy(ctx context.Context, params *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error) {
	f.deleted = append(f.deleted, "detach:"+aws.ToString(params.PolicyArn))
	return &iam.DetachRolePolicyOutput{}, nil
}

func (f *fakeIAM) DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	name := aws.ToString(params.RoleName)
	if err, ok := f.deleteErrs[name]; ok {
		return nil, err
	}
	f.deleted = append(f.deleted, "role:"+name)
	return &iam.DeleteRoleOutput{}, nil
}

func iamDoc(cfg *config.Config) *domain.Document {
	doc := domain.NewDocument(cfg.Project, cfg.Region)
	doc.Release.DatabaseURLSecretARN = "arn:secret:db"
	doc.Release.SecretKeySecretARN = "arn:secret:key"
	return doc
}

func TestProvisionCreatesBothRoles(t *testing.T) {
	client := &fakeIAM{}
	cfg := config.DefaultConfig()
	step := NewStep(client, cfg, log.NewNopLogger())
	doc := iamDoc(cfg)

	require.NoError(t, step.Provision(context.Background(), doc))

	require.Len(t, client.roles, 2)
	assert.Equal(t, cfg.Project+"-execution-role", aws.ToString(client.roles[0].RoleName))
	assert.Equal(t, cfg.Project+"-task-role", aws.ToString(client.roles[1].RoleName))
	assert.NotEmpty(t, doc.Release.ExecutionRoleARN)
	assert.NotEmpty(t, doc.Release.TaskRoleARN)

	require.Len(t, client.attached, 1)
	assert.Equal(t, executionPolicyARN, aws.ToString(client.attached[0].PolicyArn))
}

func TestAssumeRolePolicyTrustsECSTasks(t *testing.T) {
	client := &fakeIAM{}
	cfg := config.DefaultConfig()
	step := NewStep(client, cfg, log.NewNopLogger())

	require.NoError(t, step.Provision(context.Background(), iamDoc(cfg)))

	var doc policyDocument
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.roles[0].AssumeRolePolicyDocument)), &doc))
	require.Len(t, doc.Statement, 1)
	assert.Equal(t, "Allow", doc.Statement[0].Effect)
	assert.Equal(t, "ecs-tasks.amazonaws.com", doc.Statement[0].Principal["Service"])
	assert.Equal(t, []string{"sts:AssumeRole"}, doc.Statement[0].Action)
}

func TestInlinePolicyGrantsOnlySecretReads(t *testing.T) {
	client := &fakeIAM{}
	cfg := config.DefaultConfig()
	step := NewStep(client, cfg, log.NewNopLogger())

	require.NoError(t, step.Provision(context.Background(), iamDoc(cfg)))

	require.Len(t, client.inline, 1)
	assert.Equal(t, secretsPolicyName, aws.ToString(client.inline[0].PolicyName))

	var doc policyDocument
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.inline[0].PolicyDocument)), &doc))
	require.Len(t, doc.Statement, 1)
	assert.Equal(t, []string{"secretsmanager:GetSecretValue"}, doc.Statement[0].Action)
	assert.ElementsMatch(t, []string{"arn:secret:db", "arn:secret:key"}, doc.Statement[0].Resource)
}

func TestProvisionClassifiesExistingRole(t *testing.T) {
	client := &fakeIAM{createErr: &smithy.GenericAPIError{Code: "EntityAlreadyExists", Message: "exists"}}
	cfg := config.DefaultConfig()
	step := NewStep(client, cfg, log.NewNopLogger())

	err := step.Provision(context.Background(), iamDoc(cfg))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeResourceAlreadyExists))
}

func TestDestroyDetachesBeforeDeletingRoles(t *testing.T) {
	client := &fakeIAM{}
	cfg := config.DefaultConfig()
	step := NewStep(client, cfg, log.NewNopLogger())
	doc := iamDoc(cfg)
	require.NoError(t, step.Provision(context.Background(), doc))
	client.deleted = nil

	require.NoError(t, step.Destroy(context.Background(), doc))

	assert.Equal(t, []string{
		"inline:" + secretsPolicyName,
		"detach:" + executionPolicyARN,
		"role:" + cfg.Project + "-execution-role",
		"role:" + cfg.Project + "-task-role",
	}, client.deleted)
	assert.Empty(t, doc.Release.ExecutionRoleARN)
	assert.Empty(t, doc.Release.TaskRoleARN)
}

func TestDestroyToleratesMissingRole(t *testing.T) {
	client := &fakeIAM{deleteErrs: map[string]error{}}
	cfg := config.DefaultConfig()
	client.deleteErrs[cfg.Project+"-task-role"] = &smithy.GenericAPIError{Code: "NoSuchEntity", Message: "gone"}
	step := NewStep(client, cfg, log.NewNopLogger())
	doc := iamDoc(cfg)
	doc.Release.TaskRoleARN = "arn:role:task"

	require.NoError(t, step.Destroy(context.Background(), doc))
	assert.Empty(t, doc.Release.TaskRoleARN)
}
