/*
Package readiness implements the blocking retry gate used during the
activate phase.

WaitUntil polls a boolean probe at a fixed interval with no deadline,
no backoff, and no jitter. Two conditions are gated this way: cluster API
reachability after the primary agent starts, and source virtual IP
assignment after the network backend starts. Both are expected transient
states, not errors, and a probe that never passes is recovered by an
external reboot at the infrastructure layer. The unbounded loop is a
deliberate contract; do not add a timeout here without changing it.

VIPDiscoverer implements the second probe: it invokes the local IPAM
helper with a synthesized network-add request and parses the assigned
address out of the response.
*/
package readiness
