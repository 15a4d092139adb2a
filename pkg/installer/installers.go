package installer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hutchhq/nodeup/pkg/log"
	"github.com/hutchhq/nodeup/pkg/objectstore"
)

// ObjectFetcher is the slice of the object-store client the binary
// fetchers need.
type ObjectFetcher interface {
	FetchToFile(ctx context.Context, bucket, key, dest string, mode os.FileMode) error
}

// ImagePuller is the slice of the container runtime the image puller
// needs.
type ImagePuller interface {
	PullImage(ctx context.Context, ref string) error
	TagImage(ctx context.Context, ref, tag string) error
}

// CommandRunner executes an external tool and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner is the production CommandRunner backed by os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// PatchInstaller applies outstanding platform patches through the patch
// tool. A patch already present on the machine is detected and skipped,
// which keeps the job idempotent across a retried prepare phase.
type PatchInstaller struct {
	Runner   CommandRunner
	Tool     string
	PatchIDs []string
}

func (p *PatchInstaller) Name() string { return "patches" }

func (p *PatchInstaller) Install(ctx context.Context) error {
	logger := log.WithJob(p.Name())
	for _, id := range p.PatchIDs {
		out, err := p.Runner.Run(ctx, p.Tool, "install", id)
		if err != nil {
			if strings.Contains(out, "already installed") {
				logger.Info().Str("patch", id).Msg("patch already installed, skipping")
				continue
			}
			return fmt.Errorf("failed to install patch %s: %w", id, err)
		}
		logger.Info().Str("patch", id).Msg("patch installed")
	}
	return nil
}

// RuntimeImagePuller pre-pulls the fixed set of base images used by the
// cluster agents, tagged for the resolved OS build version. Pulling an
// image that is already present is a no-op in the runtime.
type RuntimeImagePuller struct {
	Runtime ImagePuller
	OSBuild string
	Images  []BaseImage
}

// BaseImage is one entry of the base-image set. The remote tag is
// parameterized by OS build; the local tag is what the agents reference.
type BaseImage struct {
	Repo     string
	LocalTag string
}

func (r *RuntimeImagePuller) Name() string { return "runtime-images" }

func (r *RuntimeImagePuller) Install(ctx context.Context) error {
	logger := log.WithJob(r.Name())
	for _, img := range r.Images {
		ref := fmt.Sprintf("%s:%s", img.Repo, r.OSBuild)
		if err := r.Runtime.PullImage(ctx, ref); err != nil {
			return fmt.Errorf("failed to pull %s: %w", ref, err)
		}
		if img.LocalTag != "" {
			if err := r.Runtime.TagImage(ctx, ref, img.LocalTag); err != nil {
				return fmt.Errorf("failed to tag %s as %s: %w", ref, img.LocalTag, err)
			}
		}
		logger.Info().Str("image", ref).Msg("base image pulled")
	}
	return nil
}

// BinaryFetcher downloads one executable from the state store to a fixed
// destination. A file already present short-circuits the download; a
// retried prepare leaves the end state identical.
type BinaryFetcher struct {
	jobName string
	Objects ObjectFetcher
	Bucket  string
	Key     string
	Dest    string
}

func (b *BinaryFetcher) Name() string { return b.jobName }

func (b *BinaryFetcher) Install(ctx context.Context) error {
	logger := log.WithJob(b.jobName)
	if _, err := os.Stat(b.Dest); err == nil {
		logger.Info().Str("dest", b.Dest).Msg("binary already present, skipping download")
		return nil
	}
	if err := b.Objects.FetchToFile(ctx, b.Bucket, b.Key, b.Dest, 0755); err != nil {
		return fmt.Errorf("failed to fetch %s: %w", b.jobName, err)
	}
	logger.Info().Str("dest", b.Dest).Msg("binary installed")
	return nil
}

// NewAgentBinaryFetcher fetches the cluster-agent executable for the
// resolved agent version.
func NewAgentBinaryFetcher(objects ObjectFetcher, base objectstore.Locator, version, binDir string) *BinaryFetcher {
	return &BinaryFetcher{
		jobName: "agent-binary",
		Objects: objects,
		Bucket:  base.Bucket,
		Key:     base.Key("binaries", version, "cluster-agent"),
		Dest:    filepath.Join(binDir, "cluster-agent"),
	}
}

// NewNetworkPluginFetcher fetches the overlay network plugin executable.
func NewNetworkPluginFetcher(objects ObjectFetcher, base objectstore.Locator, version, binDir string) *BinaryFetcher {
	return &BinaryFetcher{
		jobName: "network-plugin",
		Objects: objects,
		Bucket:  base.Bucket,
		Key:     base.Key("binaries", version, "overlay-plugin"),
		Dest:    filepath.Join(binDir, "overlay-plugin"),
	}
}

// NewSupervisorFetcher fetches the process supervisor executable.
func NewSupervisorFetcher(objects ObjectFetcher, base objectstore.Locator, version, binDir string) *BinaryFetcher {
	return &BinaryFetcher{
		jobName: "supervisor",
		Objects: objects,
		Bucket:  base.Bucket,
		Key:     base.Key("binaries", version, "svcherd"),
		Dest:    filepath.Join(binDir, "svcherd"),
	}
}

// NewClusterCLIFetcher fetches the cluster CLI the activate phase uses
// for its reachability gate and for uncordoning the node.
func NewClusterCLIFetcher(objects ObjectFetcher, base objectstore.Locator, version, binDir string) *BinaryFetcher {
	return &BinaryFetcher{
		jobName: "cluster-cli",
		Objects: objects,
		Bucket:  base.Bucket,
		Key:     base.Key("binaries", version, "clusterctl"),
		Dest:    filepath.Join(binDir, "clusterctl"),
	}
}

// NewIPAMHelperFetcher fetches the host-local IPAM helper used by
// source-VIP discovery.
func NewIPAMHelperFetcher(objects ObjectFetcher, base objectstore.Locator, version, binDir string) *BinaryFetcher {
	return &BinaryFetcher{
		jobName: "ipam-helper",
		Objects: objects,
		Bucket:  base.Bucket,
		Key:     base.Key("binaries", version, "host-local"),
		Dest:    filepath.Join(binDir, "host-local"),
	}
}
