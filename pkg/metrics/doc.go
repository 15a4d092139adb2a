/*
Package metrics defines Prometheus instrumentation for the provisioner.

nodeup is a run-to-completion process, so these counters are mostly useful
when scraped by a node exporter sidecar or pushed at exit. They cover phase
transitions, installer job outcomes and durations, readiness gate probe
attempts, and service starts.
*/
package metrics
