package netconf

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hutchhq/nodeup/pkg/types"
)

func testGenerator(t *testing.T) *Generator {
	t.Helper()
	dir := t.TempDir()
	return &Generator{
		BackendConfigPath:  filepath.Join(dir, "net-conf.json"),
		DelegateConfigPath: filepath.Join(dir, "cni.conf"),
	}
}

func TestWriteBackendConfig(t *testing.T) {
	g := testGenerator(t)
	require.NoError(t, g.WriteBackendConfig("100.64.0.0/10", "vxlan0", "vxlan"))

	data, err := os.ReadFile(g.BackendConfigPath)
	require.NoError(t, err)

	var doc types.BackendConfig
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "100.64.0.0/10", doc.Network)
	assert.Equal(t, "vxlan0", doc.Backend.Name)
	assert.Equal(t, "vxlan", doc.Backend.Type)
}

func TestWriteDelegateConfigPolicyOrder(t *testing.T) {
	g := testGenerator(t)
	require.NoError(t, g.WriteDelegateConfig(
		"100.64.0.0/10",
		"100.65.0.0/16",
		[]string{"100.65.0.10"},
		"svc.cluster.local",
		"vxlan0",
	))

	data, err := os.ReadFile(g.DelegateConfigPath)
	require.NoError(t, err)

	var doc types.DelegateConfig
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "vxlan0", doc.Name)
	assert.Equal(t, []string{"100.65.0.10"}, doc.Delegate.DNS.Nameservers)
	assert.Equal(t, []string{"svc.cluster.local"}, doc.Delegate.DNS.Search)

	// Exactly two policies, NAT exclusion strictly before the
	// encapsulated route: the consuming plugin evaluates them in order.
	require.Len(t, doc.Delegate.Policies, 2)

	nat := doc.Delegate.Policies[0].Value
	assert.Equal(t, "OutBoundNAT", nat.Type)
	assert.Equal(t, []string{"100.64.0.0/10", "100.65.0.0/16"}, nat.ExceptionList)

	route := doc.Delegate.Policies[1].Value
	assert.Equal(t, "ROUTE", route.Type)
	assert.Equal(t, "100.65.0.0/16", route.DestinationPrefix)
	assert.True(t, route.NeedEncap)
}

func TestArtifactsAreTruncatedNotAppended(t *testing.T) {
	g := testGenerator(t)

	require.NoError(t, g.WriteBackendConfig("10.244.0.0/16", "old", "vxlan"))
	first, err := os.ReadFile(g.BackendConfigPath)
	require.NoError(t, err)

	require.NoError(t, g.WriteBackendConfig("100.64.0.0/10", "vxlan0", "vxlan"))
	second, err := os.ReadFile(g.BackendConfigPath)
	require.NoError(t, err)

	assert.NotContains(t, string(second), "10.244.0.0/16")
	assert.NotEqual(t, first, second)

	// Rewriting with identical inputs is byte-identical
	require.NoError(t, g.WriteBackendConfig("100.64.0.0/10", "vxlan0", "vxlan"))
	third, err := os.ReadFile(g.BackendConfigPath)
	require.NoError(t, err)
	assert.Equal(t, second, third)
}

func TestWriteCreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	g := &Generator{
		BackendConfigPath:  filepath.Join(dir, "deep", "nested", "net-conf.json"),
		DelegateConfigPath: filepath.Join(dir, "deep", "nested", "cni.conf"),
	}

	require.NoError(t, g.WriteBackendConfig("100.64.0.0/10", "vxlan0", "vxlan"))
	_, err := os.Stat(g.BackendConfigPath)
	assert.NoError(t, err)
}
