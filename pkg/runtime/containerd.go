package runtime

import (
	"context"
	"fmt"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/namespaces"
)

const (
	// DefaultNamespace is the containerd namespace for nodeup images
	DefaultNamespace = "nodeup"

	// DefaultSocketPath is the default containerd socket
	DefaultSocketPath = "/run/containerd/containerd.sock"
)

// ContainerdRuntime is the image-side client for the container runtime.
// The provisioner only pulls and tags base images; it never runs
// containers itself.
type ContainerdRuntime struct {
	client    *containerd.Client
	namespace string
}

// NewContainerdRuntime creates a new containerd runtime client
func NewContainerdRuntime(socketPath string) (*ContainerdRuntime, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}

	return &ContainerdRuntime{
		client:    client,
		namespace: DefaultNamespace,
	}, nil
}

// Close closes the containerd client connection
func (r *ContainerdRuntime) Close() error {
	return r.client.Close()
}

// PullImage pulls a container image from a registry. Pulling an image
// already in the content store is a no-op.
func (r *ContainerdRuntime) PullImage(ctx context.Context, imageRef string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	_, err := r.client.Pull(ctx, imageRef, containerd.WithPullUnpack)
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageRef, err)
	}

	return nil
}

// TagImage gives an existing image an additional local name. Re-tagging
// with the same target replaces the previous record.
func (r *ContainerdRuntime) TagImage(ctx context.Context, imageRef, tag string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	store := r.client.ImageService()
	img, err := store.Get(ctx, imageRef)
	if err != nil {
		return fmt.Errorf("failed to look up image %s: %w", imageRef, err)
	}

	img.Name = tag
	if _, err := store.Create(ctx, img); err != nil {
		// Replace an existing tag
		if _, uerr := store.Update(ctx, img); uerr != nil {
			return fmt.Errorf("failed to tag image %s as %s: %w", imageRef, tag, err)
		}
	}

	return nil
}
