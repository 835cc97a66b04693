package state

import (
	"fmt"
	"io"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
)

type envEntry struct {
	key   string
	value string
}

// WriteEnv renders the document as the legacy KEY=VALUE lines the shell
// scripts used to source, for consumers that still read the flat format.
// Only populated fields are emitted.
func WriteEnv(w io.Writer, doc *domain.Document) error {
	entries := []envEntry{
		{"PROJECT_NAME", doc.Project},
		{"AWS_REGION", doc.Region},
		{"VPC_ID", doc.Network.VpcID},
		{"IGW_ID", doc.Network.InternetGatewayID},
		{"PUBLIC_RT_ID", doc.Network.PublicRouteTableID},
		{"ALB_SG_ID", doc.Firewall.EdgeGroupID},
		{"ECS_SG_ID", doc.Firewall.ComputeGroupID},
		{"RDS_SG_ID", doc.Firewall.DataGroupID},
		{"DB_INSTANCE_ID", doc.Database.InstanceID},
		{"DB_NAME", doc.Database.Name},
		{"DB_USERNAME", doc.Database.User},
		{"DB_ENDPOINT", doc.Database.Endpoint},
		{"ECR_REPO_NAME", doc.Registry.Name},
		{"ECR_REPO_URI", doc.Registry.URI},
		{"CLUSTER_NAME", doc.Cluster.Name},
		{"CLUSTER_ARN", doc.Cluster.ARN},
		{"ALB_ARN", doc.LoadBalancer.ARN},
		{"ALB_DNS_NAME", doc.LoadBalancer.DNSName},
		{"TARGET_GROUP_ARN", doc.LoadBalancer.TargetGroupARN},
		{"LISTENER_ARN", doc.LoadBalancer.ListenerARN},
		{"IMAGE_URI", doc.Release.ImageURI},
		{"DATABASE_URL_SECRET_ARN", doc.Release.DatabaseURLSecretARN},
		{"SECRET_KEY_SECRET_ARN", doc.Release.SecretKeySecretARN},
		{"EXECUTION_ROLE_ARN", doc.Release.ExecutionRoleARN},
		{"TASK_ROLE_ARN", doc.Release.TaskRoleARN},
		{"LOG_GROUP", doc.Release.LogGroup},
		{"TASK_DEFINITION_ARN", doc.Release.TaskDefinitionARN},
		{"SERVICE_ARN", doc.Release.ServiceARN},
	}

	for i, id := range doc.Network.PublicSubnetIDs {
		entries = append(entries, envEntry{fmt.Sprintf("PUBLIC_SUBNET_%d_ID", i+1), id})
	}
	for i, id := range doc.Network.PrivateSubnetIDs {
		entries = append(entries, envEntry{fmt.Sprintf("PRIVATE_SUBNET_%d_ID", i+1), id})
	}

	for _, e := range entries {
		if e.value == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s=%s\n", e.key, e.value); err != nil {
			return err
		}
	}
	return nil
}
