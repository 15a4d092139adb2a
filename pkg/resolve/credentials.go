package resolve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hutchhq/nodeup/pkg/log"
	"github.com/hutchhq/nodeup/pkg/types"
)

// DefaultCredentialDir is where principal credential bundles are
// materialized.
const DefaultCredentialDir = "/var/lib/nodeup/credentials"

// FetchCredentials downloads each principal's keyset from the state store
// and materializes it under destDir. Each bundle holds the principal's
// client certificate and key, the cluster CA, and the pre-issued agent
// configuration file. Bundles are written once during prepare; activate
// only reads them.
func (r *Resolver) FetchCredentials(ctx context.Context, principals []types.Principal, destDir string) ([]types.CredentialBundle, error) {
	if destDir == "" {
		destDir = DefaultCredentialDir
	}

	logger := log.WithComponent("resolve")
	bundles := make([]types.CredentialBundle, 0, len(principals))

	for _, principal := range principals {
		dir := filepath.Join(destDir, string(principal))
		bundle := types.CredentialBundle{
			Principal:  principal,
			CertPath:   filepath.Join(dir, "client.crt"),
			KeyPath:    filepath.Join(dir, "client.key"),
			CAPath:     filepath.Join(dir, "ca.crt"),
			ConfigPath: filepath.Join(dir, "agent.conf"),
		}

		files := []struct {
			key  string
			dest string
			mode os.FileMode
		}{
			{r.base.Key("credentials", string(principal), "client.crt"), bundle.CertPath, 0600},
			{r.base.Key("credentials", string(principal), "client.key"), bundle.KeyPath, 0600},
			{r.base.Key("credentials", "ca.crt"), bundle.CAPath, 0644},
			{r.base.Key("credentials", string(principal), "agent.conf"), bundle.ConfigPath, 0600},
		}
		for _, f := range files {
			if err := r.objects.FetchToFile(ctx, r.base.Bucket, f.key, f.dest, f.mode); err != nil {
				return nil, fmt.Errorf("failed to materialize %s credentials: %w", principal, err)
			}
		}

		logger.Info().Str("principal", string(principal)).Str("dir", dir).Msg("credential bundle materialized")
		bundles = append(bundles, bundle)
	}

	return bundles, nil
}
