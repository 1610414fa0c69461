/*
Package log provides structured logging for Paddock.

It wraps rs/zerolog with a process-global logger configured once at startup
via Init. Components obtain child loggers with contextual fields through the
With* helpers (WithComponent, WithDeployment, WithReplica).

Console output is human-readable for interactive use; JSON output is intended
for log aggregation.
*/
package log
