package provision

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hutchhq/nodeup/pkg/installer"
	"github.com/hutchhq/nodeup/pkg/log"
	"github.com/hutchhq/nodeup/pkg/metrics"
	"github.com/hutchhq/nodeup/pkg/readiness"
	"github.com/hutchhq/nodeup/pkg/storage"
	"github.com/hutchhq/nodeup/pkg/supervisor"
	"github.com/hutchhq/nodeup/pkg/types"
)

// Service names in their fixed start order. Each is a prerequisite of the
// next: the agent must reach the cluster before the overlay comes up, and
// the proxy needs a source VIP the overlay assigns.
const (
	ServicePrimaryAgent   = "cluster-agent"
	ServiceNetworkBackend = "network-backend"
	ServiceProxyAgent     = "proxy-agent"
)

// DefaultProbeInterval is the fixed retry interval for readiness gates.
const DefaultProbeInterval = 10 * time.Second

// Resolver is the cluster configuration resolver boundary.
type Resolver interface {
	ResolveClusterSpec(ctx context.Context) (*types.ClusterSpec, error)
	ResolveNodeIdentity(ctx context.Context) (*types.NodeIdentity, error)
	FetchCredentials(ctx context.Context, principals []types.Principal, destDir string) ([]types.CredentialBundle, error)
}

// ServiceManager is the service lifecycle boundary.
type ServiceManager interface {
	Register(ctx context.Context, name, execPath string) error
	SetDependencies(ctx context.Context, name string, deps []string) error
	SetEnv(ctx context.Context, name, key, value string) error
	SetArgs(ctx context.Context, name string, args *supervisor.ArgMap) error
	ReplaceArgs(ctx context.Context, name string, args *supervisor.ArgMap) error
	Start(ctx context.Context, name string) error
	Validate(plan supervisor.StartPlan) error
}

// NetworkWriter is the network artifact generator boundary.
type NetworkWriter interface {
	WriteBackendConfig(cidr, backendName, backendType string) error
	WriteDelegateConfig(clusterCIDR, serviceCIDR string, dnsServers []string, dnsSuffix, networkName string) error
}

// ClusterClient is the cluster API boundary.
type ClusterClient interface {
	ReachableProbe(ctx context.Context) readiness.Probe
	Uncordon(ctx context.Context, nodeName string) error
}

// VIPSource discovers the proxy agent's source virtual IP from the given
// overlay subnet.
type VIPSource interface {
	DiscoverProbe(ctx context.Context, subnet string, dest *string) readiness.Probe
}

// Rebooter requests a machine reboot.
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// ExecRebooter reboots through the init system.
type ExecRebooter struct{}

func (ExecRebooter) Reboot(ctx context.Context) error {
	if out, err := exec.CommandContext(ctx, "systemctl", "reboot").CombinedOutput(); err != nil {
		return fmt.Errorf("failed to request reboot: %w (output: %s)", err, out)
	}
	return nil
}

// InstallerFactory builds the prepare-phase installer set from the
// resolved cluster parameters.
type InstallerFactory func(spec *types.ClusterSpec, id *types.NodeIdentity) ([]installer.Installer, error)

// Machine is the top-level provisioning state machine. Run reads the
// persisted phase once and drives the machine through at most one phase
// per boot: prepare ends in a reboot, activate ends with the node ready.
type Machine struct {
	store         storage.Store
	resolver      Resolver
	installers    InstallerFactory
	network       NetworkWriter
	services      ServiceManager
	cluster       ClusterClient
	vip           VIPSource
	rebooter      Rebooter
	probeInterval time.Duration

	binDir         string
	credentialDir  string
	serviceDataDir string
	networkName    string
}

// Config holds machine construction parameters.
type Config struct {
	Store      storage.Store
	Resolver   Resolver
	Installers InstallerFactory
	Network    NetworkWriter
	Services   ServiceManager
	Cluster    ClusterClient
	VIP        VIPSource
	Rebooter   Rebooter

	ProbeInterval  time.Duration // defaults to DefaultProbeInterval
	BinDir         string        // defaults to /opt/nodeup/bin
	CredentialDir  string        // defaults to /var/lib/nodeup/credentials
	ServiceDataDir string        // defaults to /var/lib/nodeup/services
	NetworkName    string        // defaults to vxlan0
}

// NewMachine creates the provisioning state machine.
func NewMachine(cfg *Config) *Machine {
	m := &Machine{
		store:          cfg.Store,
		resolver:       cfg.Resolver,
		installers:     cfg.Installers,
		network:        cfg.Network,
		services:       cfg.Services,
		cluster:        cfg.Cluster,
		vip:            cfg.VIP,
		rebooter:       cfg.Rebooter,
		probeInterval:  cfg.ProbeInterval,
		binDir:         cfg.BinDir,
		credentialDir:  cfg.CredentialDir,
		serviceDataDir: cfg.ServiceDataDir,
		networkName:    cfg.NetworkName,
	}
	if m.probeInterval == 0 {
		m.probeInterval = DefaultProbeInterval
	}
	if m.binDir == "" {
		m.binDir = "/opt/nodeup/bin"
	}
	if m.credentialDir == "" {
		m.credentialDir = "/var/lib/nodeup/credentials"
	}
	if m.serviceDataDir == "" {
		m.serviceDataDir = "/var/lib/nodeup/services"
	}
	if m.networkName == "" {
		m.networkName = "vxlan0"
	}
	return m
}

// Run drives the machine one phase forward. It returns nil when the
// current phase's work (including a requested reboot) has been committed,
// and an error on any fatal condition, leaving the persisted phase
// untouched so the next boot retries the same phase from its start.
func (m *Machine) Run(ctx context.Context) error {
	phase, err := m.store.Phase()
	if err != nil {
		return fmt.Errorf("failed to read persisted phase: %w", err)
	}

	logger := log.WithComponent("provision")
	switch phase {
	case types.PhaseReady:
		logger.Info().Msg("node already provisioned, nothing to do")
		return nil
	case types.PhaseUnconfigured:
		return m.prepare(ctx)
	case types.PhasePrepared:
		return m.activate(ctx)
	default:
		return fmt.Errorf("unrecognized persisted phase %q", phase)
	}
}

// prepare resolves cluster configuration, runs every installer job to a
// terminal state behind the join barrier, commits phase "prepared", and
// requests the reboot. Any failure aborts before the phase write.
func (m *Machine) prepare(ctx context.Context) error {
	logger := log.WithPhase("prepare")
	logger.Info().Msg("starting prepare phase")

	identity, err := m.resolver.ResolveNodeIdentity(ctx)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	spec, err := m.resolver.ResolveClusterSpec(ctx)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	principals := []types.Principal{types.PrincipalAgent, types.PrincipalBackend, types.PrincipalProxy}
	if _, err := m.resolver.FetchCredentials(ctx, principals, m.credentialDir); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	// Persist the resolved parameters now so activate never re-resolves.
	if err := m.store.SetClusterSpec(spec); err != nil {
		return fmt.Errorf("prepare: failed to persist cluster spec: %w", err)
	}
	if err := m.store.SetNodeIdentity(identity); err != nil {
		return fmt.Errorf("prepare: failed to persist node identity: %w", err)
	}

	installers, err := m.installers(spec, identity)
	if err != nil {
		return fmt.Errorf("prepare: failed to build installer set: %w", err)
	}

	pool := installer.NewPool()
	for _, inst := range installers {
		pool.Submit(ctx, inst)
	}
	results := pool.JoinAll()

	if failed := installer.Failed(results); len(failed) > 0 {
		for _, f := range failed {
			logger.Error().Str("job", f.Name).Err(f.Err).Msg("installer job failed")
		}
		return fmt.Errorf("prepare: %d of %d installer jobs failed", len(failed), len(results))
	}

	// The phase must be durable before the reboot is requested: a crash
	// between the two redoes prepare, which every job tolerates; the
	// reverse order could lose the transition entirely.
	if err := m.store.SetPhase(types.PhasePrepared); err != nil {
		return fmt.Errorf("prepare: failed to persist phase: %w", err)
	}
	metrics.PhaseTransitions.WithLabelValues(string(types.PhasePrepared)).Inc()
	logger.Info().Msg("prepare phase complete, requesting reboot")

	if err := m.rebooter.Reboot(ctx); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	return nil
}

// activate wires networking, brings up the agent services in dependency
// order with readiness gates between them, marks the node schedulable,
// and commits phase "ready". Every step is overwrite-idempotent because a
// fatal error here means the whole of activate is retried next boot.
func (m *Machine) activate(ctx context.Context) error {
	logger := log.WithPhase("activate")
	logger.Info().Msg("starting activate phase")

	spec, err := m.store.ClusterSpec()
	if err != nil {
		return fmt.Errorf("activate: failed to load persisted cluster spec: %w", err)
	}
	identity, err := m.store.NodeIdentity()
	if err != nil {
		return fmt.Errorf("activate: failed to load persisted node identity: %w", err)
	}

	if err := m.network.WriteBackendConfig(spec.PodCIDR, m.networkName, "vxlan"); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	if err := m.network.WriteDelegateConfig(spec.PodCIDR, spec.ServiceCIDR, spec.DNSServers, spec.DNSDomain, m.networkName); err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	if err := m.registerServices(ctx, spec, identity); err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	plan := supervisor.StartPlan{
		{Service: ServicePrimaryAgent},
		{Service: ServiceNetworkBackend, Requires: []string{ServicePrimaryAgent}},
		{Service: ServiceProxyAgent, Requires: []string{ServiceNetworkBackend}},
	}
	if err := m.services.Validate(plan); err != nil {
		return fmt.Errorf("activate: invalid start plan: %w", err)
	}

	if err := m.services.Start(ctx, ServicePrimaryAgent); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	readiness.WaitUntil("cluster-api", m.probeInterval, m.cluster.ReachableProbe(ctx))

	if err := m.services.Start(ctx, ServiceNetworkBackend); err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	var vip string
	readiness.WaitUntil("source-vip", m.probeInterval, m.vip.DiscoverProbe(ctx, spec.PodCIDR, &vip))
	logger.Info().Str("vip", vip).Msg("source virtual IP assigned")

	if err := m.services.ReplaceArgs(ctx, ServiceProxyAgent, m.proxyArgs(spec, identity, vip)); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	if err := m.services.Start(ctx, ServiceProxyAgent); err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	if err := m.cluster.Uncordon(ctx, identity.Hostname); err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	if err := m.store.SetPhase(types.PhaseReady); err != nil {
		return fmt.Errorf("activate: failed to persist phase: %w", err)
	}
	metrics.PhaseTransitions.WithLabelValues(string(types.PhaseReady)).Inc()
	logger.Info().Msg("node is ready")
	return nil
}

// registerServices installs the three agent services with the supervisor
// and assembles their arguments. The proxy agent is configured without
// its source VIP, which is injected by ReplaceArgs once discovered.
func (m *Machine) registerServices(ctx context.Context, spec *types.ClusterSpec, identity *types.NodeIdentity) error {
	agentBin := filepath.Join(m.binDir, "cluster-agent")
	backendBin := filepath.Join(m.binDir, "overlay-plugin")

	type svc struct {
		name string
		bin  string
		deps []string
		args *supervisor.ArgMap
	}
	services := []svc{
		{
			name: ServicePrimaryAgent,
			bin:  agentBin,
			args: supervisor.NewArgMap().
				Set("config", filepath.Join(m.credentialDir, string(types.PrincipalAgent), "agent.conf")).
				Set("hostname-override", identity.Hostname).
				Set("cluster-dns", strings.Join(spec.DNSServers, ",")).
				Set("cluster-domain", spec.DNSDomain).
				Set("non-masquerade-cidr", spec.NonMasqueradeCIDR).
				Set("data-dir", filepath.Join(m.serviceDataDir, ServicePrimaryAgent)),
		},
		{
			name: ServiceNetworkBackend,
			bin:  backendBin,
			deps: []string{ServicePrimaryAgent},
			args: supervisor.NewArgMap().
				Set("config", filepath.Join(m.credentialDir, string(types.PrincipalBackend), "agent.conf")).
				Set("iface", identity.PrimaryAddress).
				Set("network-name", m.networkName),
		},
		{
			name: ServiceProxyAgent,
			bin:  agentBin,
			deps: []string{ServiceNetworkBackend},
			args: m.proxyArgs(spec, identity, ""),
		},
	}

	for _, s := range services {
		if err := os.MkdirAll(filepath.Join(m.serviceDataDir, s.name), 0755); err != nil {
			return fmt.Errorf("failed to create data dir for %s: %w", s.name, err)
		}
		if err := m.services.Register(ctx, s.name, s.bin); err != nil {
			return err
		}
		if len(s.deps) > 0 {
			if err := m.services.SetDependencies(ctx, s.name, s.deps); err != nil {
				return err
			}
		}
		if err := m.services.SetEnv(ctx, s.name, "NODE_NAME", identity.Hostname); err != nil {
			return err
		}
		if err := m.services.SetArgs(ctx, s.name, s.args); err != nil {
			return err
		}
	}
	return nil
}

// proxyArgs assembles the proxy agent arguments. With vip empty the
// source-vip key is left out entirely; the argument is unassignable until
// the overlay has handed one out.
func (m *Machine) proxyArgs(spec *types.ClusterSpec, identity *types.NodeIdentity, vip string) *supervisor.ArgMap {
	args := supervisor.NewArgMap().
		Set("mode", "proxy").
		Set("config", filepath.Join(m.credentialDir, string(types.PrincipalProxy), "agent.conf")).
		Set("hostname-override", identity.Hostname).
		Set("cluster-cidr", spec.PodCIDR)
	if vip != "" {
		args.Set("source-vip", vip)
	}
	return args
}

