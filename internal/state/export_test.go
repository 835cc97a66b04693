package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
)

func TestWriteEnvEmitsOnlyRecordedFields(t *testing.T) {
	doc := domain.NewDocument("geopolitical-data-platform", "us-east-1")
	doc.Network.VpcID = "vpc-0abc"
	doc.Network.PublicSubnetIDs = []string{"subnet-1", "subnet-2"}
	doc.Firewall.EdgeGroupID = "sg-edge"
	doc.LoadBalancer.DNSName = "alb-123.us-east-1.elb.amazonaws.com"

	var sb strings.Builder
	require.NoError(t, WriteEnv(&sb, doc))
	out := sb.String()

	assert.Contains(t, out, "PROJECT_NAME=geopolitical-data-platform\n")
	assert.Contains(t, out, "AWS_REGION=us-east-1\n")
	assert.Contains(t, out, "VPC_ID=vpc-0abc\n")
	assert.Contains(t, out, "PUBLIC_SUBNET_1_ID=subnet-1\n")
	assert.Contains(t, out, "PUBLIC_SUBNET_2_ID=subnet-2\n")
	assert.Contains(t, out, "ALB_SG_ID=sg-edge\n")
	assert.Contains(t, out, "ALB_DNS_NAME=alb-123.us-east-1.elb.amazonaws.com\n")

	assert.NotContains(t, out, "DB_ENDPOINT", "unset fields must be omitted")
	assert.NotContains(t, out, "SERVICE_ARN")
	assert.NotContains(t, out, "PRIVATE_SUBNET")
}

func TestWriteEnvEveryLineIsKeyValue(t *testing.T) {
	doc := domain.NewDocument("proj", "us-east-1")
	doc.Database.Endpoint = "db.example.amazonaws.com"
	doc.Release.ImageURI = "123.dkr.ecr.us-east-1.amazonaws.com/proj-backend:latest"

	var sb strings.Builder
	require.NoError(t, WriteEnv(&sb, doc))

	for _, line := range strings.Split(strings.TrimSpace(sb.String()), "\n") {
		assert.Regexp(t, `^[A-Z0-9_]+=\S`, line)
	}
}
