/*
Package types defines the shared data model for nodeup.

The core record is the provisioning Phase, a monotonic milestone persisted
across reboots (unconfigured -> prepared -> ready). ClusterSpec and
NodeIdentity capture the parameters resolved once during the prepare phase;
the network artifact structs (BackendConfig, DelegateConfig) describe the
declarative documents handed to the overlay network plugin.

Types here carry no behavior beyond trivial accessors. All logic lives in
the packages that consume them.
*/
package types
