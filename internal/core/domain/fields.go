package domain

// Field names one slot of the handoff document. Steps declare which
// fields they consume and which they fill in, which lets the sequencer
// enforce the dependency-order invariant before any cloud call is made.
type Field string

const (
	FieldVpcID               Field = "network.vpc_id"
	FieldPublicSubnetIDs     Field = "network.public_subnet_ids"
	FieldPrivateSubnetIDs    Field = "network.private_subnet_ids"
	FieldInternetGatewayID   Field = "network.internet_gateway_id"
	FieldPublicRouteTableID  Field = "network.public_route_table_id"
	FieldEdgeGroupID         Field = "firewall.edge_group_id"
	FieldComputeGroupID      Field = "firewall.compute_group_id"
	FieldDataGroupID         Field = "firewall.data_group_id"
	FieldDatabaseInstanceID  Field = "database.instance_id"
	FieldDatabaseName        Field = "database.name"
	FieldDatabaseUser        Field = "database.user"
	FieldDatabaseEndpoint    Field = "database.endpoint"
	FieldRegistryName        Field = "registry.name"
	FieldRegistryURI         Field = "registry.uri"
	FieldClusterName         Field = "cluster.name"
	FieldClusterARN          Field = "cluster.arn"
	FieldLoadBalancerARN     Field = "load_balancer.arn"
	FieldLoadBalancerDNSName Field = "load_balancer.dns_name"
	FieldTargetGroupARN      Field = "load_balancer.target_group_arn"
	FieldListenerARN         Field = "load_balancer.listener_arn"
	FieldImageURI            Field = "release.image_uri"
	FieldDatabaseURLSecret   Field = "release.database_url_secret_arn"
	FieldSecretKeySecret     Field = "release.secret_key_secret_arn"
	FieldExecutionRoleARN    Field = "release.execution_role_arn"
	FieldTaskRoleARN         Field = "release.task_role_arn"
	FieldLogGroup            Field = "release.log_group"
	FieldTaskDefinitionARN   Field = "release.task_definition_arn"
	FieldServiceARN          Field = "release.service_arn"
)

func (f Field) String() string {
	return string(f)
}

// Has reports whether the named field carries a value in the document.
func (d *Document) Has(f Field) bool {
	switch f {
	case FieldVpcID:
		return d.Network.VpcID != ""
	case FieldPublicSubnetIDs:
		return len(d.Network.PublicSubnetIDs) > 0
	case FieldPrivateSubnetIDs:
		return len(d.Network.PrivateSubnetIDs) > 0
	case FieldInternetGatewayID:
		return d.Network.InternetGatewayID != ""
	case FieldPublicRouteTableID:
		return d.Network.PublicRouteTableID != ""
	case FieldEdgeGroupID:
		return d.Firewall.EdgeGroupID != ""
	case FieldComputeGroupID:
		return d.Firewall.ComputeGroupID != ""
	case FieldDataGroupID:
		return d.Firewall.DataGroupID != ""
	case FieldDatabaseInstanceID:
		return d.Database.InstanceID != ""
	case FieldDatabaseName:
		return d.Database.Name != ""
	case FieldDatabaseUser:
		return d.Database.User != ""
	case FieldDatabaseEndpoint:
		return d.Database.Endpoint != ""
	case FieldRegistryName:
		return d.Registry.Name != ""
	case FieldRegistryURI:
		return d.Registry.URI != ""
	case FieldClusterName:
		return d.Cluster.Name != ""
	case FieldClusterARN:
		return d.Cluster.ARN != ""
	case FieldLoadBalancerARN:
		return d.LoadBalancer.ARN != ""
	case FieldLoadBalancerDNSName:
		return d.LoadBalancer.DNSName != ""
	case FieldTargetGroupARN:
		return d.LoadBalancer.TargetGroupARN != ""
	case FieldListenerARN:
		return d.LoadBalancer.ListenerARN != ""
	case FieldImageURI:
		return d.Release.ImageURI != ""
	case FieldDatabaseURLSecret:
		return d.Release.DatabaseURLSecretARN != ""
	case FieldSecretKeySecret:
		return d.Release.SecretKeySecretARN != ""
	case FieldExecutionRoleARN:
		return d.Release.ExecutionRoleARN != ""
	case FieldTaskRoleARN:
		return d.Release.TaskRoleARN != ""
	case FieldLogGroup:
		return d.Release.LogGroup != ""
	case FieldTaskDefinitionARN:
		return d.Release.TaskDefinitionARN != ""
	case FieldServiceARN:
		return d.Release.ServiceARN != ""
	}
	return false
}

// Missing returns the subset of fields the document does not carry yet.
func (d *Document) Missing(fields []Field) []Field {
	var missing []Field
	for _, f := range fields {
		if !d.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}
