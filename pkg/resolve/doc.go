/*
Package resolve implements the cluster configuration resolver.

The resolver is the single gateway to the instance metadata endpoint and
the remote state-store object layer. During the prepare phase it resolves
three things, all fatal on error:

  - the ClusterSpec document (cluster-spec.json under the configBase
    locator from the instance boot configuration)
  - the NodeIdentity (instance id, region, hostname from metadata; primary
    address and gateway probed from the local network stack)
  - per-principal credential bundles, materialized as local files consumed
    by the agent services

The state-store layout under the configBase prefix:

	cluster-spec.json
	credentials/ca.crt
	credentials/<principal>/client.crt
	credentials/<principal>/client.key
	credentials/<principal>/agent.conf

No partial resolution is usable; a failed fetch aborts the prepare phase
before any phase transition, so the next boot retries from scratch.
*/
package resolve
