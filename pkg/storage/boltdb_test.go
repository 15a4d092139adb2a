package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hutchhq/nodeup/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPhaseDefaultsToUnconfigured(t *testing.T) {
	store := newTestStore(t)

	phase, err := store.Phase()
	require.NoError(t, err)
	assert.Equal(t, types.PhaseUnconfigured, phase)
}

func TestPhaseAdvances(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SetPhase(types.PhasePrepared))
	phase, err := store.Phase()
	require.NoError(t, err)
	assert.Equal(t, types.PhasePrepared, phase)

	require.NoError(t, store.SetPhase(types.PhaseReady))
	phase, err = store.Phase()
	require.NoError(t, err)
	assert.Equal(t, types.PhaseReady, phase)
}

func TestPhaseNeverRegresses(t *testing.T) {
	tests := []struct {
		name string
		from types.Phase
		to   types.Phase
	}{
		{name: "ready to prepared", from: types.PhaseReady, to: types.PhasePrepared},
		{name: "ready to unconfigured", from: types.PhaseReady, to: types.PhaseUnconfigured},
		{name: "prepared to unconfigured", from: types.PhasePrepared, to: types.PhaseUnconfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			require.NoError(t, store.SetPhase(tt.from))

			err := store.SetPhase(tt.to)
			assert.ErrorIs(t, err, ErrPhaseRegression)

			// Persisted phase is untouched
			phase, err := store.Phase()
			require.NoError(t, err)
			assert.Equal(t, tt.from, phase)
		})
	}
}

func TestPhaseRewriteSamePhaseAllowed(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SetPhase(types.PhasePrepared))
	require.NoError(t, store.SetPhase(types.PhasePrepared))
}

func TestClusterSpecRoundTrip(t *testing.T) {
	store := newTestStore(t)

	spec := &types.ClusterSpec{
		ClusterName:       "hutch-prod",
		PodCIDR:           "100.64.0.0/10",
		ServiceCIDR:       "100.65.0.0/16",
		NonMasqueradeCIDR: "100.64.0.0/10",
		DNSServers:        []string{"100.65.0.10"},
		DNSDomain:         "svc.cluster.local",
		InternalAPIHost:   "api.internal.hutch-prod",
		AgentVersion:      "1.29.3",
	}

	require.NoError(t, store.SetClusterSpec(spec))
	got, err := store.ClusterSpec()
	require.NoError(t, err)
	assert.Equal(t, spec, got)
}

func TestClusterSpecMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ClusterSpec()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNodeIdentityRoundTrip(t *testing.T) {
	store := newTestStore(t)

	id := &types.NodeIdentity{
		InstanceID:     "i-0abc123",
		Region:         "us-west-2",
		Hostname:       "ip-10-0-4-21",
		PrimaryAddress: "10.0.4.21",
		DefaultGateway: "10.0.4.1",
	}

	require.NoError(t, store.SetNodeIdentity(id))
	got, err := store.NodeIdentity()
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestStateSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SetPhase(types.PhasePrepared))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	phase, err := reopened.Phase()
	require.NoError(t, err)
	assert.Equal(t, types.PhasePrepared, phase)
}
