package readiness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// IPAMRunner executes the local IP-address-management helper with a
// request document on stdin and plugin environment variables set.
type IPAMRunner interface {
	RunWithInput(ctx context.Context, input []byte, env []string, name string, args ...string) ([]byte, error)
}

// ExecIPAMRunner is the production IPAMRunner backed by os/exec.
type ExecIPAMRunner struct{}

func (ExecIPAMRunner) RunWithInput(ctx context.Context, input []byte, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Env = env
	return cmd.Output()
}

// VIPDiscoverer computes the proxy agent's source virtual IP by asking
// the IPAM helper for an address on the overlay network. The helper is
// the same plugin the network backend uses, invoked with a synthesized
// network-add request.
type VIPDiscoverer struct {
	Runner      IPAMRunner
	PluginPath  string
	NetworkName string
	Subnet      string
}

type ipamRequest struct {
	CNIVersion string   `json:"cniVersion"`
	Name       string   `json:"name"`
	IPAM       ipamSpec `json:"ipam"`
}

type ipamSpec struct {
	Type   string `json:"type"`
	Subnet string `json:"subnet"`
}

type ipamResponse struct {
	IP4 struct {
		IP string `json:"ip"`
	} `json:"ip4"`
}

// Discover requests an address and returns it without its prefix length.
func (d *VIPDiscoverer) Discover(ctx context.Context) (string, error) {
	req := ipamRequest{
		CNIVersion: "0.2.0",
		Name:       d.NetworkName,
		IPAM: ipamSpec{
			Type:   "host-local",
			Subnet: d.Subnet,
		},
	}
	input, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to build IPAM request: %w", err)
	}

	env := []string{
		"CNI_COMMAND=ADD",
		"CNI_CONTAINERID=source-vip",
		"CNI_NETNS=none",
		"CNI_IFNAME=source-vip",
		"CNI_PATH=" + d.PluginPath,
	}
	out, err := d.Runner.RunWithInput(ctx, input, env, d.PluginPath)
	if err != nil {
		return "", fmt.Errorf("IPAM helper failed: %w", err)
	}

	var resp ipamResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return "", fmt.Errorf("failed to parse IPAM response: %w", err)
	}
	if resp.IP4.IP == "" {
		return "", fmt.Errorf("IPAM response has no address")
	}

	vip, _, _ := strings.Cut(resp.IP4.IP, "/")
	return vip, nil
}

// DiscoverProbe adapts Discover to the gate's boolean contract, storing
// the first successful result through dest.
func (d *VIPDiscoverer) DiscoverProbe(ctx context.Context, dest *string) Probe {
	return func() bool {
		vip, err := d.Discover(ctx)
		if err != nil {
			return false
		}
		*dest = vip
		return true
	}
}
