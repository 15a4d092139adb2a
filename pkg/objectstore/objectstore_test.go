package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		bucket  string
		prefix  string
		wantErr bool
	}{
		{name: "store scheme", raw: "store://hutch-state/clusters/prod", bucket: "hutch-state", prefix: "clusters/prod"},
		{name: "s3 alias", raw: "s3://hutch-state/clusters/prod", bucket: "hutch-state", prefix: "clusters/prod"},
		{name: "trailing slash trimmed", raw: "store://hutch-state/clusters/prod/", bucket: "hutch-state", prefix: "clusters/prod"},
		{name: "bucket only", raw: "store://hutch-state", bucket: "hutch-state", prefix: ""},
		{name: "unknown scheme", raw: "http://hutch-state/x", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseLocator(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, loc.Bucket)
			assert.Equal(t, tt.prefix, loc.Prefix)
		})
	}
}

func TestLocatorKey(t *testing.T) {
	loc := Locator{Bucket: "hutch-state", Prefix: "clusters/prod"}

	assert.Equal(t, "clusters/prod/cluster-spec.json", loc.Key("cluster-spec.json"))
	assert.Equal(t, "clusters/prod/credentials/agent.json", loc.Key("credentials", "agent.json"))

	bare := Locator{Bucket: "hutch-state"}
	assert.Equal(t, "cluster-spec.json", bare.Key("cluster-spec.json"))
}
