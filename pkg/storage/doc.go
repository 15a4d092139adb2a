/*
Package storage provides BoltDB-backed persistence for the provisioning
phase and the cluster parameters resolved during the prepare phase.

The phase machine reads persisted state exactly once at process start and
writes it at two checkpoints: after every installer job has finished
(phase "prepared", committed strictly before the reboot is requested) and
after the node is marked schedulable (phase "ready"). BoltDB commits with
an fsync, so a committed phase survives the reboot that immediately
follows it.

# Layout

Everything lives in a single bucket:

	provision/
	  node_state     -> "" | "prepared" | "ready"
	  cluster_spec   -> JSON types.ClusterSpec
	  node_identity  -> JSON types.NodeIdentity

The phase is monotonic; SetPhase rejects regressions with
ErrPhaseRegression. Cluster parameters are persisted alongside the phase
so the activate phase never talks to the metadata endpoint or the remote
state store again.
*/
package storage
