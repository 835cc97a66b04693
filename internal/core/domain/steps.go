package domain

type StepID string

const (
	StepNetwork      StepID = "network"
	StepFirewall     StepID = "firewall"
	StepDatabase     StepID = "database"
	StepRegistry     StepID = "registry"
	StepCluster      StepID = "cluster"
	StepLoadBalancer StepID = "loadbalancer"

	StepImage          StepID = "image"
	StepDatabaseWait   StepID = "dbwait"
	StepSecrets        StepID = "secrets"
	StepIAMRoles       StepID = "iamroles"
	StepTaskDefinition StepID = "taskdef"
	StepService        StepID = "service"
)

func (s StepID) String() string {
	return string(s)
}

type Phase string

const (
	PhaseProvision Phase = "provision"
	PhaseRelease   Phase = "release"
	PhaseTeardown  Phase = "teardown"
)
