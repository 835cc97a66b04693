package domain

// DocumentVersion is bumped whenever the on-disk shape of Document changes.
const DocumentVersion = 1

// Document is the typed handoff record between workflow phases. Every
// identifier a later step consumes must have been written here by an
// earlier step; steps merge their outputs in and the store persists the
// whole document after each successful step.
type Document struct {
	Version int    `json:"version"`
	Project string `json:"project"`
	Region  string `json:"region"`

	Network      NetworkRecord      `json:"network"`
	Firewall     FirewallRecord     `json:"firewall"`
	Database     DatabaseRecord     `json:"database"`
	Registry     RegistryRecord     `json:"registry"`
	Cluster      ClusterRecord      `json:"cluster"`
	LoadBalancer LoadBalancerRecord `json:"load_balancer"`
	Release      ReleaseRecord      `json:"release"`
}

type NetworkRecord struct {
	VpcID              string   `json:"vpc_id,omitempty"`
	PublicSubnetIDs    []string `json:"public_subnet_ids,omitempty"`
	PrivateSubnetIDs   []string `json:"private_subnet_ids,omitempty"`
	InternetGatewayID  string   `json:"internet_gateway_id,omitempty"`
	PublicRouteTableID string   `json:"public_route_table_id,omitempty"`
	RouteAssociationIDs []string `json:"route_association_ids,omitempty"`
}

type FirewallRecord struct {
	EdgeGroupID    string `json:"edge_group_id,omitempty"`
	ComputeGroupID string `json:"compute_group_id,omitempty"`
	DataGroupID    string `json:"data_group_id,omitempty"`
}

type DatabaseRecord struct {
	InstanceID  string `json:"instance_id,omitempty"`
	Name        string `json:"name,omitempty"`
	User        string `json:"user,omitempty"`
	SubnetGroup string `json:"subnet_group,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
}

type RegistryRecord struct {
	Name string `json:"name,omitempty"`
	URI  string `json:"uri,omitempty"`
}

type ClusterRecord struct {
	Name string `json:"name,omitempty"`
	ARN  string `json:"arn,omitempty"`
}

type LoadBalancerRecord struct {
	ARN            string `json:"arn,omitempty"`
	DNSName        string `json:"dns_name,omitempty"`
	TargetGroupARN string `json:"target_group_arn,omitempty"`
	ListenerARN    string `json:"listener_arn,omitempty"`
}

type ReleaseRecord struct {
	ImageURI             string `json:"image_uri,omitempty"`
	DatabaseURLSecretARN string `json:"database_url_secret_arn,omitempty"`
	SecretKeySecretARN   string `json:"secret_key_secret_arn,omitempty"`
	ExecutionRoleARN     string `json:"execution_role_arn,omitempty"`
	TaskRoleARN          string `json:"task_role_arn,omitempty"`
	LogGroup             string `json:"log_group,omitempty"`
	TaskDefinitionARN    string `json:"task_definition_arn,omitempty"`
	ServiceARN           string `json:"service_arn,omitempty"`
}

func NewDocument(project, region string) *Document {
	return &Document{
		Version: DocumentVersion,
		Project: project,
		Region:  region,
	}
}
