package types

import "time"

// Phase represents a coarse-grained provisioning milestone. It is persisted
// across reboots and only ever advances.
type Phase string

const (
	// PhaseUnconfigured is the initial state of a fresh machine.
	PhaseUnconfigured Phase = ""

	// PhasePrepared means all installers have run and a reboot was requested.
	PhasePrepared Phase = "prepared"

	// PhaseReady means the node is fully provisioned and schedulable.
	PhaseReady Phase = "ready"
)

// Rank returns the position of the phase in the provisioning sequence.
// Higher ranks are later milestones.
func (p Phase) Rank() int {
	switch p {
	case PhasePrepared:
		return 1
	case PhaseReady:
		return 2
	default:
		return 0
	}
}

// ClusterSpec holds the cluster parameters resolved from the remote state
// store. It is resolved once during the prepare phase and never mutated.
type ClusterSpec struct {
	ClusterName       string   `json:"clusterName"`
	PodCIDR           string   `json:"podCidr"`
	ServiceCIDR       string   `json:"serviceCidr"`
	NonMasqueradeCIDR string   `json:"nonMasqueradeCidr"`
	DNSServers        []string `json:"dnsServers"`
	DNSDomain         string   `json:"dnsDomain"`
	InternalAPIHost   string   `json:"internalApiHost"`
	AgentVersion      string   `json:"agentVersion"`
}

// NodeIdentity describes this machine as seen by the metadata endpoint and
// the local network stack. Immutable for the lifetime of a boot.
type NodeIdentity struct {
	InstanceID     string `json:"instanceId"`
	Region         string `json:"region"`
	Hostname       string `json:"hostname"`
	PrimaryAddress string `json:"primaryAddress"`
	DefaultGateway string `json:"defaultGateway"`
}

// Principal identifies a service identity that receives its own credential
// bundle (client certificate, key, cluster CA).
type Principal string

const (
	PrincipalAgent   Principal = "agent"
	PrincipalBackend Principal = "backend"
	PrincipalProxy   Principal = "proxy"
)

// CredentialBundle is the on-disk materialization of one principal's
// credentials. Files are written once during prepare and never re-derived.
type CredentialBundle struct {
	Principal  Principal
	CertPath   string
	KeyPath    string
	CAPath     string
	ConfigPath string
}

// JobState is the completion state of an installer job.
type JobState string

const (
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

// Terminal reports whether the job has finished, successfully or not.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// JobResult records the outcome of one installer job.
type JobResult struct {
	ID         string
	Name       string
	State      JobState
	Err        error
	FinishedAt time.Time
}

// BackendConfig is the overlay network backend document consumed by the
// network plugin. Written verbatim as JSON.
type BackendConfig struct {
	Network string  `json:"Network"`
	Backend Backend `json:"Backend"`
}

// Backend names the overlay backend and its type.
type Backend struct {
	Name string `json:"Name"`
	Type string `json:"Type"`
}

// DelegateConfig is the CNI delegate document. The policy list order is
// load-bearing: the consuming plugin evaluates policies in sequence.
type DelegateConfig struct {
	CNIVersion string   `json:"cniVersion"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Delegate   Delegate `json:"delegate"`
}

// Delegate holds the inner plugin configuration carried by DelegateConfig.
type Delegate struct {
	Type     string           `json:"type"`
	DNS      DelegateDNS      `json:"dns"`
	Policies []EndpointPolicy `json:"policies"`
}

// DelegateDNS configures resolver addresses and the search suffix handed to
// endpoints on the delegate network.
type DelegateDNS struct {
	Nameservers []string `json:"nameservers"`
	Search      []string `json:"search"`
}

// EndpointPolicy is one entry in the ordered delegate policy list.
type EndpointPolicy struct {
	Name  string      `json:"name"`
	Value PolicyValue `json:"value"`
}

// PolicyValue is the policy payload. Exactly one policy shape is populated
// per entry; empty fields are omitted from the document.
type PolicyValue struct {
	Type              string   `json:"Type"`
	ExceptionList     []string `json:"ExceptionList,omitempty"`
	DestinationPrefix string   `json:"DestinationPrefix,omitempty"`
	NeedEncap         bool     `json:"NeedEncap,omitempty"`
}
