/*
Package metrics exposes Prometheus metrics for Paddock.

All collectors are package-level variables registered in init(). The fleet
manager and deployment controllers update them during reconciliation ticks;
Handler returns the HTTP handler that serves the /metrics endpoint.

Metrics:
  - paddock_deployments_total: gauge of deployments by status
  - paddock_replicas_total: gauge of tracked replicas by lifecycle state
  - paddock_replicas_started_total / stopped_total / start_failures_total
  - paddock_reconcile_duration_seconds: histogram per fleet tick
  - paddock_reconcile_cycles_total: counter of fleet ticks
  - paddock_checkpoint_failures_total: counter of failed checkpoint saves
*/
package metrics
