/*
Package log provides structured logging for nodeup built on zerolog.

A single global logger is initialized once from the CLI entry point and
shared by every package. Child loggers carry contextual fields:

	logger := log.WithComponent("installer")
	logger.Info().Str("job", name).Msg("job submitted")

Console output (human-readable, RFC3339 timestamps) is the default; JSON
output is available for collection by a log shipper. Provisioning progress
and failures all flow through this package; there is no other reporting
channel back to the control plane.
*/
package log
