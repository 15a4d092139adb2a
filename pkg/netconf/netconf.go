package netconf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hutchhq/nodeup/pkg/log"
	"github.com/hutchhq/nodeup/pkg/types"
)

const (
	// DefaultBackendConfigPath is where the overlay backend document lives.
	DefaultBackendConfigPath = "/etc/nodeup/net-conf.json"

	// DefaultDelegateConfigPath is where the CNI delegate document lives.
	DefaultDelegateConfigPath = "/etc/nodeup/cni.conf"

	// cniVersion is the schema version of the delegate document.
	cniVersion = "0.2.0"

	// delegateType is the inner plugin the overlay delegates endpoint
	// creation to.
	delegateType = "overlay-bridge"
)

// Generator builds and writes the two declarative network-configuration
// documents. Both are overwritten in full on every activation.
type Generator struct {
	BackendConfigPath  string
	DelegateConfigPath string
}

// NewGenerator creates a generator writing to the default paths.
func NewGenerator() *Generator {
	return &Generator{
		BackendConfigPath:  DefaultBackendConfigPath,
		DelegateConfigPath: DefaultDelegateConfigPath,
	}
}

// WriteBackendConfig writes the overlay backend document: the cluster
// network CIDR plus the backend name and type.
func (g *Generator) WriteBackendConfig(cidr, backendName, backendType string) error {
	doc := types.BackendConfig{
		Network: cidr,
		Backend: types.Backend{
			Name: backendName,
			Type: backendType,
		},
	}
	return writeDocument(g.BackendConfigPath, doc)
}

// WriteDelegateConfig writes the CNI delegate document. The policy list
// carries exactly two entries whose order the consuming plugin depends on:
// NAT exclusion for the pod and service CIDRs first, then the encapsulated
// route for the service CIDR.
func (g *Generator) WriteDelegateConfig(clusterCIDR, serviceCIDR string, dnsServers []string, dnsSuffix, networkName string) error {
	doc := types.DelegateConfig{
		CNIVersion: cniVersion,
		Name:       networkName,
		Type:       "overlay",
		Delegate: types.Delegate{
			Type: delegateType,
			DNS: types.DelegateDNS{
				Nameservers: dnsServers,
				Search:      []string{dnsSuffix},
			},
			Policies: []types.EndpointPolicy{
				{
					Name: "EndpointPolicy",
					Value: types.PolicyValue{
						Type:          "OutBoundNAT",
						ExceptionList: []string{clusterCIDR, serviceCIDR},
					},
				},
				{
					Name: "EndpointPolicy",
					Value: types.PolicyValue{
						Type:              "ROUTE",
						DestinationPrefix: serviceCIDR,
						NeedEncap:         true,
					},
				},
			},
		},
	}
	return writeDocument(g.DelegateConfigPath, doc)
}

// writeDocument marshals doc and truncate-writes it to path, creating the
// parent directory if absent.
func writeDocument(path string, doc interface{}) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logger := log.WithComponent("netconf")
	logger.Info().Str("path", path).Msg("network artifact written")
	return nil
}
