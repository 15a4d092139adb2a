/*
Package netconf generates the declarative network-configuration documents
consumed by the overlay network plugin.

Two artifacts are produced on every activation, truncate-then-write:

	net-conf.json   overlay backend (network CIDR, backend name/type)
	cni.conf        CNI delegate (DNS plus the ordered policy list)

The delegate policy order is a contract, not a style choice. The plugin
evaluates policies in sequence, so NAT exclusion for the pod and service
CIDRs must precede the encapsulated service-CIDR route; reversing them
would NAT service traffic before the route policy ever matched.
*/
package netconf
