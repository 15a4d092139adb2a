// Package provision implements the node provisioning state machine.
//
// A node moves through three phases, recorded durably so a reboot (which
// the flow itself requires) resumes in the right place:
//
//	unconfigured -> prepared -> ready
//
// The unconfigured phase resolves cluster parameters from instance
// metadata and the object store, fetches per-service credentials, runs
// the installer job pool to completion, commits "prepared", and requests
// a reboot. The prepared phase, entered on the following boot, writes the
// network configuration artifacts, registers and starts the agent
// services in dependency order with blocking readiness gates between
// them, marks the node schedulable, and commits "ready". A ready node is
// a no-op.
//
// Phase commits are the only checkpoints. A failure anywhere inside a
// phase leaves the persisted phase untouched, so the next run repeats the
// whole phase; every step inside a phase is therefore written to tolerate
// re-execution.
package provision
