package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hutchhq/nodeup/pkg/clusterapi"
	"github.com/hutchhq/nodeup/pkg/installer"
	"github.com/hutchhq/nodeup/pkg/log"
	"github.com/hutchhq/nodeup/pkg/metadata"
	"github.com/hutchhq/nodeup/pkg/metrics"
	"github.com/hutchhq/nodeup/pkg/netconf"
	"github.com/hutchhq/nodeup/pkg/objectstore"
	"github.com/hutchhq/nodeup/pkg/provision"
	"github.com/hutchhq/nodeup/pkg/readiness"
	"github.com/hutchhq/nodeup/pkg/resolve"
	"github.com/hutchhq/nodeup/pkg/runtime"
	"github.com/hutchhq/nodeup/pkg/storage"
	"github.com/hutchhq/nodeup/pkg/supervisor"
	"github.com/hutchhq/nodeup/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nodeup",
	Short: "Nodeup - Worker node cluster provisioning agent",
	Long: `Nodeup provisions a freshly launched machine into a schedulable
worker node of a managed cluster. It is invoked once per boot, reads its
persisted phase, and drives the node one phase forward: prepare (install
prerequisites, then reboot) or activate (configure networking, start the
agent services, mark the node ready).`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Nodeup version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)

	runCmd.Flags().String("data-dir", "/var/lib/nodeup", "Directory for persistent provisioning state")
	runCmd.Flags().String("bin-dir", "/opt/nodeup/bin", "Directory for fetched binaries")
	runCmd.Flags().String("os-build", "", "OS build identifier used to select base image tags")
	runCmd.Flags().StringSlice("patches", nil, "OS patch identifiers to apply during prepare")
	runCmd.Flags().String("containerd-socket", "/run/containerd/containerd.sock", "Containerd socket path")
	runCmd.Flags().String("network-name", "vxlan0", "Overlay network name")
	runCmd.Flags().String("metrics-addr", "", "Address to expose Prometheus metrics on (disabled when empty)")
	runCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")

	statusCmd.Flags().String("data-dir", "/var/lib/nodeup", "Directory for persistent provisioning state")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive the node one provisioning phase forward",
	Long: `Run reads the persisted phase and executes the corresponding
phase of the provisioning flow. A node in the prepare phase ends with a
reboot request; a node in the activate phase ends schedulable and marked
ready. Run exits non-zero on any fatal error without committing the
phase, so the next boot retries the same phase.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		binDir, _ := cmd.Flags().GetString("bin-dir")
		osBuild, _ := cmd.Flags().GetString("os-build")
		patches, _ := cmd.Flags().GetStringSlice("patches")
		socket, _ := cmd.Flags().GetString("containerd-socket")
		networkName, _ := cmd.Flags().GetString("network-name")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		logLevel, _ := cmd.Flags().GetString("log-level")

		log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: true})

		if metricsAddr != "" {
			go func() {
				if err := http.ListenAndServe(metricsAddr, metrics.Handler()); err != nil {
					logger := log.WithComponent("metrics")
				logger.Error().Err(err).Msg("metrics listener stopped")
				}
			}()
		}

		ctx := cmd.Context()

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		phase, err := store.Phase()
		if err != nil {
			return err
		}
		if phase == types.PhaseReady {
			logger := log.WithComponent("provision")
			logger.Info().Msg("node already provisioned, nothing to do")
			return nil
		}

		machine, cleanup, err := buildMachine(ctx, store, phase, buildOptions{
			binDir:      binDir,
			dataDir:     dataDir,
			osBuild:     osBuild,
			patches:     patches,
			socket:      socket,
			networkName: networkName,
		})
		if err != nil {
			return err
		}
		defer cleanup()

		return machine.Run(ctx)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted provisioning state",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		phase, err := store.Phase()
		if err != nil {
			return err
		}
		if phase == types.PhaseUnconfigured {
			fmt.Println("Phase: unconfigured")
			return nil
		}
		fmt.Printf("Phase: %s\n", phase)

		spec, err := store.ClusterSpec()
		if err == nil {
			fmt.Printf("Cluster: %s\n", spec.ClusterName)
			fmt.Printf("  Pod CIDR:     %s\n", spec.PodCIDR)
			fmt.Printf("  Service CIDR: %s\n", spec.ServiceCIDR)
			fmt.Printf("  API Host:     %s\n", spec.InternalAPIHost)
			fmt.Printf("  Agent:        %s\n", spec.AgentVersion)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		id, err := store.NodeIdentity()
		if err == nil {
			fmt.Printf("Node: %s\n", id.Hostname)
			fmt.Printf("  Instance: %s (%s)\n", id.InstanceID, id.Region)
			fmt.Printf("  Address:  %s\n", id.PrimaryAddress)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return nil
	},
}

// baseImages is the set of images the prepare phase pre-pulls so pod
// startup never blocks on the registry.
var baseImages = []installer.BaseImage{
	{Repo: "registry.internal/infra/pause", LocalTag: "pause:latest"},
	{Repo: "registry.internal/infra/overlay-bridge", LocalTag: "overlay-bridge:latest"},
}

type buildOptions struct {
	binDir      string
	dataDir     string
	osBuild     string
	patches     []string
	socket      string
	networkName string
}

// buildMachine assembles the provisioning dependency graph for the given
// phase. Activate runs entirely from persisted state, so the metadata
// endpoint, object store, and container runtime are only dialed when the
// node is still unconfigured. The returned cleanup closes everything
// buildMachine opened.
func buildMachine(ctx context.Context, store storage.Store, phase types.Phase, opts buildOptions) (*provision.Machine, func(), error) {
	credentialDir := filepath.Join(opts.dataDir, "credentials")
	agentConfig := filepath.Join(credentialDir, string(types.PrincipalAgent), "agent.conf")

	var (
		resolver provision.Resolver
		factory  provision.InstallerFactory
		cleanup  = func() {}
	)
	if phase == types.PhaseUnconfigured {
		meta, err := metadata.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to reach instance metadata: %w", err)
		}
		region, err := meta.Region(ctx)
		if err != nil {
			return nil, nil, err
		}
		userData, err := meta.UserData(ctx)
		if err != nil {
			return nil, nil, err
		}
		_, base, err := resolve.ParseBootConfig(userData)
		if err != nil {
			return nil, nil, err
		}

		objects, err := objectstore.NewClient(ctx, region)
		if err != nil {
			return nil, nil, err
		}

		resolver = resolve.NewResolver(&resolve.Config{
			Metadata: meta,
			Objects:  objects,
			Base:     base,
		})

		ctr, err := runtime.NewContainerdRuntime(opts.socket)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to container runtime: %w", err)
		}
		cleanup = func() { ctr.Close() }

		factory = func(spec *types.ClusterSpec, id *types.NodeIdentity) ([]installer.Installer, error) {
			return []installer.Installer{
				&installer.PatchInstaller{Runner: installer.ExecRunner{}, Tool: "ospatch", PatchIDs: opts.patches},
				&installer.RuntimeImagePuller{Runtime: ctr, OSBuild: opts.osBuild, Images: baseImages},
				installer.NewAgentBinaryFetcher(objects, base, spec.AgentVersion, opts.binDir),
				installer.NewNetworkPluginFetcher(objects, base, spec.AgentVersion, opts.binDir),
				installer.NewSupervisorFetcher(objects, base, spec.AgentVersion, opts.binDir),
				installer.NewClusterCLIFetcher(objects, base, spec.AgentVersion, opts.binDir),
				installer.NewIPAMHelperFetcher(objects, base, spec.AgentVersion, opts.binDir),
			}, nil
		}
	}

	machine := provision.NewMachine(&provision.Config{
		Store:      store,
		Resolver:   resolver,
		Installers: factory,
		Network:    netconf.NewGenerator(),
		Services: supervisor.NewManager(&supervisor.Config{
			CLI: filepath.Join(opts.binDir, supervisor.DefaultCLI),
		}),
		Cluster: clusterapi.NewClient(&clusterapi.Config{
			CLI:        filepath.Join(opts.binDir, clusterapi.DefaultCLI),
			ConfigPath: agentConfig,
		}),
		VIP: &vipSource{discoverer: &readiness.VIPDiscoverer{
			Runner:      readiness.ExecIPAMRunner{},
			PluginPath:  filepath.Join(opts.binDir, "host-local"),
			NetworkName: opts.networkName,
		}},
		Rebooter:      provision.ExecRebooter{},
		BinDir:        opts.binDir,
		CredentialDir: credentialDir,
		NetworkName:   opts.networkName,
	})
	return machine, cleanup, nil
}

// vipSource adapts the IPAM discoverer to the machine's VIP boundary.
// The overlay subnet is only known once the persisted spec is loaded, so
// it arrives per probe instead of at construction.
type vipSource struct {
	discoverer *readiness.VIPDiscoverer
}

func (v *vipSource) DiscoverProbe(ctx context.Context, subnet string, dest *string) readiness.Probe {
	v.discoverer.Subnet = subnet
	return v.discoverer.DiscoverProbe(ctx, dest)
}
