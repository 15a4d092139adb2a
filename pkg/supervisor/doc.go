/*
Package supervisor manages the lifecycle of the long-running agent
services through the process supervisor's control CLI.

Each service moves through a small state machine:

	Registered -> Configured -> Started

Register installs the service with its stderr redirected to a per-service
log file under the log root. SetArgs flattens an ordered argument map to
space-joined --key=value tokens and moves the service to Configured.
Start refuses to run a service whose declared dependencies are not yet
Started; sequencing is the orchestrator's job and mistakes must surface
as errors, not reorderings.

One argument is special: the proxy agent's source virtual IP cannot be
known until the network backend is running. ReplaceArgs permits exactly
one argument swap on a Configured service before its Start, which is how
the orchestrator injects the discovered VIP.

The dependency lists handed to the supervisor are declarative metadata
for operational tooling. At activation time the orchestrator starts
services itself, in an explicit StartPlan validated up front.
*/
package supervisor
