package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hutchhq/nodeup/pkg/objectstore"
	"github.com/hutchhq/nodeup/pkg/types"
)

type fakeMetadata struct {
	instanceID string
	region     string
	hostname   string
	userData   []byte
	err        error
}

func (f *fakeMetadata) InstanceID(ctx context.Context) (string, error)    { return f.instanceID, f.err }
func (f *fakeMetadata) Region(ctx context.Context) (string, error)        { return f.region, f.err }
func (f *fakeMetadata) LocalHostname(ctx context.Context) (string, error) { return f.hostname, f.err }
func (f *fakeMetadata) UserData(ctx context.Context) ([]byte, error)      { return f.userData, f.err }

type fakeObjects struct {
	objects map[string][]byte // "bucket/key" -> data
}

func (f *fakeObjects) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("no such object: %s/%s", bucket, key)
	}
	return data, nil
}

func (f *fakeObjects) FetchToFile(ctx context.Context, bucket, key, dest string, mode os.FileMode) error {
	data, err := f.Fetch(ctx, bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, mode)
}

func testSpec() *types.ClusterSpec {
	return &types.ClusterSpec{
		ClusterName:       "hutch-prod",
		PodCIDR:           "100.64.0.0/10",
		ServiceCIDR:       "100.65.0.0/16",
		NonMasqueradeCIDR: "100.64.0.0/10",
		DNSServers:        []string{"100.65.0.10"},
		DNSDomain:         "svc.cluster.local",
		InternalAPIHost:   "api.internal.hutch-prod",
		AgentVersion:      "1.29.3",
	}
}

func TestParseBootConfig(t *testing.T) {
	cfg, loc, err := ParseBootConfig([]byte("configBase: store://hutch-state/clusters/prod\nclusterName: hutch-prod\n"))
	require.NoError(t, err)
	assert.Equal(t, "hutch-prod", cfg.ClusterName)
	assert.Equal(t, "hutch-state", loc.Bucket)
	assert.Equal(t, "clusters/prod", loc.Prefix)
}

func TestParseBootConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "no configBase", data: "clusterName: x\n"},
		{name: "bad scheme", data: "configBase: ftp://bucket/x\n"},
		{name: "not yaml", data: ":\t::"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseBootConfig([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestResolveClusterSpec(t *testing.T) {
	specJSON, err := json.Marshal(testSpec())
	require.NoError(t, err)

	r := NewResolver(&Config{
		Metadata: &fakeMetadata{},
		Objects: &fakeObjects{objects: map[string][]byte{
			"hutch-state/clusters/prod/cluster-spec.json": specJSON,
		}},
		Probe: func(ctx context.Context) (string, string, error) { return "10.0.4.21", "10.0.4.1", nil },
		Base:  objectstore.Locator{Bucket: "hutch-state", Prefix: "clusters/prod"},
	})

	spec, err := r.ResolveClusterSpec(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testSpec(), spec)
}

func TestResolveClusterSpecInvalid(t *testing.T) {
	incomplete := testSpec()
	incomplete.AgentVersion = ""
	specJSON, err := json.Marshal(incomplete)
	require.NoError(t, err)

	r := NewResolver(&Config{
		Metadata: &fakeMetadata{},
		Objects: &fakeObjects{objects: map[string][]byte{
			"hutch-state/cluster-spec.json": specJSON,
		}},
		Probe: func(ctx context.Context) (string, string, error) { return "", "", nil },
		Base:  objectstore.Locator{Bucket: "hutch-state"},
	})

	_, err = r.ResolveClusterSpec(context.Background())
	assert.ErrorContains(t, err, "agentVersion")
}

func TestResolveNodeIdentity(t *testing.T) {
	r := NewResolver(&Config{
		Metadata: &fakeMetadata{
			instanceID: "i-0abc123",
			region:     "us-west-2",
			hostname:   "ip-10-0-4-21",
		},
		Objects: &fakeObjects{},
		Probe:   func(ctx context.Context) (string, string, error) { return "10.0.4.21", "10.0.4.1", nil },
	})

	id, err := r.ResolveNodeIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &types.NodeIdentity{
		InstanceID:     "i-0abc123",
		Region:         "us-west-2",
		Hostname:       "ip-10-0-4-21",
		PrimaryAddress: "10.0.4.21",
		DefaultGateway: "10.0.4.1",
	}, id)
}

func TestFetchCredentials(t *testing.T) {
	objects := map[string][]byte{
		"hutch-state/credentials/ca.crt": []byte("ca-pem"),
	}
	for _, p := range []string{"agent", "backend", "proxy"} {
		objects["hutch-state/credentials/"+p+"/client.crt"] = []byte(p + "-cert")
		objects["hutch-state/credentials/"+p+"/client.key"] = []byte(p + "-key")
		objects["hutch-state/credentials/"+p+"/agent.conf"] = []byte(p + "-conf")
	}

	r := NewResolver(&Config{
		Metadata: &fakeMetadata{},
		Objects:  &fakeObjects{objects: objects},
		Probe:    func(ctx context.Context) (string, string, error) { return "", "", nil },
		Base:     objectstore.Locator{Bucket: "hutch-state"},
	})

	destDir := t.TempDir()
	principals := []types.Principal{types.PrincipalAgent, types.PrincipalBackend, types.PrincipalProxy}
	bundles, err := r.FetchCredentials(context.Background(), principals, destDir)
	require.NoError(t, err)
	require.Len(t, bundles, 3)

	for i, bundle := range bundles {
		assert.Equal(t, principals[i], bundle.Principal)
		cert, err := os.ReadFile(bundle.CertPath)
		require.NoError(t, err)
		assert.Equal(t, string(bundle.Principal)+"-cert", string(cert))

		ca, err := os.ReadFile(bundle.CAPath)
		require.NoError(t, err)
		assert.Equal(t, "ca-pem", string(ca))
	}
}

func TestFetchCredentialsMissingKeyset(t *testing.T) {
	r := NewResolver(&Config{
		Metadata: &fakeMetadata{},
		Objects:  &fakeObjects{objects: map[string][]byte{}},
		Probe:    func(ctx context.Context) (string, string, error) { return "", "", nil },
		Base:     objectstore.Locator{Bucket: "hutch-state"},
	})

	_, err := r.FetchCredentials(context.Background(), []types.Principal{types.PrincipalAgent}, t.TempDir())
	assert.ErrorContains(t, err, "agent credentials")
}
