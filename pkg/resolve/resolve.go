package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hutchhq/nodeup/pkg/log"
	"github.com/hutchhq/nodeup/pkg/metadata"
	"github.com/hutchhq/nodeup/pkg/objectstore"
	"github.com/hutchhq/nodeup/pkg/types"
)

// MetadataSource is the slice of the metadata client the resolver needs.
type MetadataSource interface {
	InstanceID(ctx context.Context) (string, error)
	Region(ctx context.Context) (string, error)
	LocalHostname(ctx context.Context) (string, error)
	UserData(ctx context.Context) ([]byte, error)
}

// ObjectFetcher is the read-only slice of the object-store client.
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
	FetchToFile(ctx context.Context, bucket, key, dest string, mode os.FileMode) error
}

// NetProbe resolves the primary interface's address and default gateway.
type NetProbe func(ctx context.Context) (addr, gateway string, err error)

// BootConfig is the YAML boot-configuration blob attached to the instance
// at launch. ConfigBase locates the cluster state in the object store.
type BootConfig struct {
	ConfigBase  string `yaml:"configBase"`
	ClusterName string `yaml:"clusterName"`
}

// Resolver resolves the cluster specification and node identity. It is the
// only component that talks to the metadata endpoint and the object layer;
// every resolution failure is fatal because no partial spec is usable.
type Resolver struct {
	meta    MetadataSource
	objects ObjectFetcher
	probe   NetProbe
	base    objectstore.Locator
}

// Config holds resolver construction parameters.
type Config struct {
	Metadata MetadataSource
	Objects  ObjectFetcher
	Probe    NetProbe // defaults to metadata.PrimaryInterface
	Base     objectstore.Locator
}

// NewResolver creates a resolver rooted at the given state-store locator.
func NewResolver(cfg *Config) *Resolver {
	probe := cfg.Probe
	if probe == nil {
		probe = metadata.PrimaryInterface
	}
	return &Resolver{
		meta:    cfg.Metadata,
		objects: cfg.Objects,
		probe:   probe,
		base:    cfg.Base,
	}
}

// ParseBootConfig parses the user-data blob and extracts the state-store
// locator.
func ParseBootConfig(data []byte) (*BootConfig, objectstore.Locator, error) {
	var cfg BootConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, objectstore.Locator{}, fmt.Errorf("failed to parse boot config: %w", err)
	}
	if cfg.ConfigBase == "" {
		return nil, objectstore.Locator{}, fmt.Errorf("boot config has no configBase locator")
	}
	loc, err := objectstore.ParseLocator(cfg.ConfigBase)
	if err != nil {
		return nil, objectstore.Locator{}, fmt.Errorf("invalid configBase: %w", err)
	}
	return &cfg, loc, nil
}

// ResolveClusterSpec fetches and validates the cluster specification
// document from the state store.
func (r *Resolver) ResolveClusterSpec(ctx context.Context) (*types.ClusterSpec, error) {
	key := r.base.Key("cluster-spec.json")
	data, err := r.objects.Fetch(ctx, r.base.Bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cluster spec: %w", err)
	}

	var spec types.ClusterSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse cluster spec: %w", err)
	}
	if err := validateSpec(&spec); err != nil {
		return nil, fmt.Errorf("invalid cluster spec: %w", err)
	}

	logger := log.WithComponent("resolve")
	logger.Info().
		Str("cluster", spec.ClusterName).
		Str("pod_cidr", spec.PodCIDR).
		Str("service_cidr", spec.ServiceCIDR).
		Str("agent_version", spec.AgentVersion).
		Msg("resolved cluster spec")

	return &spec, nil
}

// ResolveNodeIdentity resolves this machine's identity from the metadata
// endpoint and the local network stack.
func (r *Resolver) ResolveNodeIdentity(ctx context.Context) (*types.NodeIdentity, error) {
	instanceID, err := r.meta.InstanceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve instance id: %w", err)
	}
	region, err := r.meta.Region(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve region: %w", err)
	}
	hostname, err := r.meta.LocalHostname(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hostname: %w", err)
	}
	addr, gateway, err := r.probe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to probe primary interface: %w", err)
	}

	return &types.NodeIdentity{
		InstanceID:     instanceID,
		Region:         region,
		Hostname:       hostname,
		PrimaryAddress: addr,
		DefaultGateway: gateway,
	}, nil
}

func validateSpec(spec *types.ClusterSpec) error {
	switch {
	case spec.ClusterName == "":
		return fmt.Errorf("missing clusterName")
	case spec.PodCIDR == "":
		return fmt.Errorf("missing podCidr")
	case spec.ServiceCIDR == "":
		return fmt.Errorf("missing serviceCidr")
	case spec.InternalAPIHost == "":
		return fmt.Errorf("missing internalApiHost")
	case spec.AgentVersion == "":
		return fmt.Errorf("missing agentVersion")
	}
	return nil
}
