/*
Package installer implements the prepare-phase installation jobs and the
pool that runs them.

# Job pool

Pool is the only parallel region in the provisioner. Submit launches a
named job immediately; JoinAll is the barrier the phase machine sits on
before touching networking or services:

	pool := installer.NewPool()
	pool.Submit(ctx, patches)
	pool.Submit(ctx, images)
	results := pool.JoinAll()
	if failed := installer.Failed(results); len(failed) > 0 {
	    // prepare phase aborts before any phase write
	}

Failures are job-local: one failed download never cancels a sibling, and
the phase machine decides after the barrier whether a failure is fatal.
There is no timeout anywhere in the pool; a hung installer blocks the
barrier forever and the operational recovery is an external reboot.

# Installers

Every installer is idempotent because a prepare phase that crashed before
its reboot is re-run from scratch on the next boot:

  - PatchInstaller detects already-applied patches and skips them
  - RuntimeImagePuller re-pulls into the runtime's content store, a no-op
    for images already present
  - the binary fetchers (agent, network plugin, supervisor) short-circuit
    when the destination file exists

Jobs own disjoint destination paths by convention; nothing in the pool
serializes their side effects.
*/
package installer
