/*
Package metadata reads instance facts from the cloud metadata endpoint and
the local network stack: instance id, region, local hostname, the boot
configuration blob (user data), and the primary interface's address and
default gateway.

Only the cluster configuration resolver consumes this package; nothing
else in nodeup talks to the metadata endpoint.
*/
package metadata
