package readiness

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitUntilImmediateSuccess(t *testing.T) {
	var sleeps int
	sleepFn = func(time.Duration) { sleeps++ }
	defer func() { sleepFn = time.Sleep }()

	calls := 0
	WaitUntil("test", time.Second, func() bool {
		calls++
		return true
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, sleeps, "no sleep before a passing probe")
}

func TestWaitUntilRetriesAtFixedInterval(t *testing.T) {
	var intervals []time.Duration
	sleepFn = func(d time.Duration) { intervals = append(intervals, d) }
	defer func() { sleepFn = time.Sleep }()

	// Probe fails exactly 3 times, then passes: 3 sleeps, 4 calls.
	calls := 0
	WaitUntil("test", 250*time.Millisecond, func() bool {
		calls++
		return calls > 3
	})

	assert.Equal(t, 4, calls)
	require.Len(t, intervals, 3)
	for _, d := range intervals {
		// Fixed interval, no backoff
		assert.Equal(t, 250*time.Millisecond, d)
	}
}

type fakeIPAMRunner struct {
	input  []byte
	env    []string
	output []byte
	err    error
}

func (f *fakeIPAMRunner) RunWithInput(ctx context.Context, input []byte, env []string, name string, args ...string) ([]byte, error) {
	f.input = input
	f.env = env
	return f.output, f.err
}

func TestDiscoverParsesAddress(t *testing.T) {
	runner := &fakeIPAMRunner{output: []byte(`{"ip4":{"ip":"100.64.12.3/24"}}`)}
	d := &VIPDiscoverer{
		Runner:      runner,
		PluginPath:  "/opt/bin/host-local",
		NetworkName: "vxlan0",
		Subnet:      "100.64.12.0/24",
	}

	vip, err := d.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100.64.12.3", vip, "prefix length is stripped")

	assert.Contains(t, string(runner.input), `"name":"vxlan0"`)
	assert.Contains(t, string(runner.input), `"subnet":"100.64.12.0/24"`)
	assert.Contains(t, runner.env, "CNI_COMMAND=ADD")
}

func TestDiscoverErrors(t *testing.T) {
	tests := []struct {
		name   string
		output []byte
		err    error
	}{
		{name: "helper fails", err: fmt.Errorf("exit status 1")},
		{name: "garbage output", output: []byte("not json")},
		{name: "no address", output: []byte(`{"ip4":{}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &VIPDiscoverer{Runner: &fakeIPAMRunner{output: tt.output, err: tt.err}}
			_, err := d.Discover(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestDiscoverProbeStoresResult(t *testing.T) {
	runner := &fakeIPAMRunner{err: fmt.Errorf("network not up yet")}
	d := &VIPDiscoverer{Runner: runner}

	var vip string
	probe := d.DiscoverProbe(context.Background(), &vip)

	// Failure is just "false" to the gate, no detail
	assert.False(t, probe())
	assert.Empty(t, vip)

	runner.err = nil
	runner.output = []byte(`{"ip4":{"ip":"100.64.12.3/24"}}`)
	assert.True(t, probe())
	assert.Equal(t, "100.64.12.3", vip)
}
