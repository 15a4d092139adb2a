// Package clusterapi wraps the cluster CLI for the two control-plane
// interactions provisioning needs: probing whether the cluster API is
// reachable with the node's agent credentials, and uncordoning the node
// once its services are up.
package clusterapi
