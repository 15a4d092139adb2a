package clusterapi

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls [][]string
	err   error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return "", f.err
}

func TestReachableUsesAgentCredentials(t *testing.T) {
	runner := &fakeRunner{}
	c := NewClient(&Config{Runner: runner, ConfigPath: "/var/lib/nodeup/credentials/agent/agent.conf"})

	assert.True(t, c.Reachable(context.Background()))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{
		"clusterctl", "--config", "/var/lib/nodeup/credentials/agent/agent.conf", "get", "nodes",
	}, runner.calls[0])
}

func TestReachableFalseOnError(t *testing.T) {
	c := NewClient(&Config{Runner: &fakeRunner{err: fmt.Errorf("connection refused")}})
	assert.False(t, c.Reachable(context.Background()))
}

func TestUncordon(t *testing.T) {
	runner := &fakeRunner{}
	c := NewClient(&Config{Runner: runner, ConfigPath: "/etc/agent.conf"})

	require.NoError(t, c.Uncordon(context.Background(), "ip-10-0-4-21"))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{
		"clusterctl", "--config", "/etc/agent.conf", "uncordon", "ip-10-0-4-21",
	}, runner.calls[0])
}

func TestUncordonPropagatesFailure(t *testing.T) {
	c := NewClient(&Config{Runner: &fakeRunner{err: fmt.Errorf("node not found")}})
	err := c.Uncordon(context.Background(), "ghost")
	assert.ErrorContains(t, err, "failed to uncordon ghost")
}
