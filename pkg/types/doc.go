/*
Package types defines the core data structures used throughout Paddock.

This package contains the fundamental types that represent Paddock's domain
model: deployments, their declarative configuration, version descriptors and
status reporting. These types are used by all other packages for state
management and reconciliation logic.

# Core Types

Deployment Management:
  - DeploymentSpec: User-declared target for one deployment
  - DeploymentConfig: Tunables carried by a spec (replicas, health checks,
    shutdown behavior, user payload)
  - DeploymentMode: Replicated (N replicas) or global (one per live node)

Versioning:
  - DeploymentVersion: Immutable identity used to decide whether a config
    change requires restarting replicas or can be applied in place

Lifecycle:
  - ReplicaState: Starting, updating, recovering, running, stopping
  - DeploymentStatus: Updating, healthy, unhealthy
  - DeploymentStatusInfo: Aggregate status with a change counter used by
    subscribers to deduplicate notifications

All types are designed to be serializable (JSON, YAML) and immutable where
possible.
*/
package types
