package clusterapi

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hutchhq/nodeup/pkg/log"
	"github.com/hutchhq/nodeup/pkg/readiness"
)

// DefaultCLI is the cluster API client binary.
const DefaultCLI = "clusterctl"

// Runner executes the cluster CLI.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// Client wraps the cluster API command-line client. The provisioner uses
// two of its commands: listing nodes as a connectivity probe, and
// uncordoning this node once it is ready.
type Client struct {
	runner     Runner
	cli        string
	configPath string
}

// Config holds client construction parameters.
type Config struct {
	Runner     Runner // defaults to ExecRunner
	CLI        string // defaults to DefaultCLI
	ConfigPath string // the primary agent's credential config
}

// NewClient creates a cluster API client.
func NewClient(cfg *Config) *Client {
	c := &Client{
		runner:     cfg.Runner,
		cli:        cfg.CLI,
		configPath: cfg.ConfigPath,
	}
	if c.runner == nil {
		c.runner = ExecRunner{}
	}
	if c.cli == "" {
		c.cli = DefaultCLI
	}
	return c
}

// Reachable reports whether the cluster API answers a node listing using
// the primary agent's credentials.
func (c *Client) Reachable(ctx context.Context) bool {
	_, err := c.runner.Run(ctx, c.cli, "--config", c.configPath, "get", "nodes")
	if err != nil {
		logger := log.WithComponent("clusterapi")
		logger.Debug().Err(err).Msg("cluster API not reachable")
		return false
	}
	return true
}

// ReachableProbe adapts Reachable to the readiness gate's contract.
func (c *Client) ReachableProbe(ctx context.Context) readiness.Probe {
	return func() bool {
		return c.Reachable(ctx)
	}
}

// Uncordon marks the node schedulable.
func (c *Client) Uncordon(ctx context.Context, nodeName string) error {
	out, err := c.runner.Run(ctx, c.cli, "--config", c.configPath, "uncordon", nodeName)
	if err != nil {
		return fmt.Errorf("failed to uncordon %s: %w (output: %s)", nodeName, err, strings.TrimSpace(out))
	}
	logger := log.WithComponent("clusterapi")
	logger.Info().Str("node", nodeName).Msg("node marked schedulable")
	return nil
}
