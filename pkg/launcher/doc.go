// Package launcher runs replicas as local OS processes.
//
// Each replica is one child process started from the deployment's command.
// The launcher writes a small state file per replica (pid, version, grace
// period) so that a restarted controller can reattach to processes that
// outlived it. Readiness is "the process is still alive on the first
// poll", health is a zero-signal liveness probe, graceful stop is SIGTERM
// with SIGKILL escalation handled by the controller's deadline.
package launcher
