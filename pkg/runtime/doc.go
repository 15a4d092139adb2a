/*
Package runtime wraps the containerd client for base-image provisioning.

nodeup pre-pulls the fixed base-image set during the prepare phase so the
agent services find their images locally after the reboot. Only the image
surface of containerd is used: pull and tag. Containers are created and
supervised by the cluster agents themselves, never by the provisioner.
*/
package runtime
