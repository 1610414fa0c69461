package replica

import (
	"time"

	"github.com/paddock-io/paddock/pkg/types"
)

// StartupStatus is the result of polling a starting replica.
type StartupStatus string

const (
	// StartupPending means the replica has not finished initializing yet.
	StartupPending StartupStatus = "pending"

	// StartupSucceeded means the replica is ready to serve.
	StartupSucceeded StartupStatus = "succeeded"

	// StartupFailed means the replica's constructor failed. The process is
	// unusable and must be stopped and replaced.
	StartupFailed StartupStatus = "failed"
)

// Handle wraps the lifecycle of one worker process. Implementations live
// behind the launcher; the controller only ever issues the operations below
// and never blocks on them.
type Handle interface {
	// ReplicaID returns the stable identity of the replica.
	ReplicaID() string

	// NodeID returns the node the replica is placed on, or "" if it has
	// not been scheduled yet.
	NodeID() string

	// CheckReady polls startup progress. When the replica was recovered
	// from a controller restart, a succeeded poll also reports the version
	// the replica is actually running.
	CheckReady() (StartupStatus, *types.DeploymentVersion)

	// Reconfigure applies a new version to the live replica. It returns
	// true when the replica must re-initialize (poll CheckReady again)
	// and false when the change took effect immediately.
	Reconfigure(v types.DeploymentVersion) bool

	// GracefulStop asks the replica to drain and exit. It returns the
	// grace period the replica was granted. Calling it more than once is
	// allowed; only the first call has an effect.
	GracefulStop() time.Duration

	// CheckStopped reports whether the process has fully exited.
	CheckStopped() bool

	// ForceStop kills the process without waiting for drain.
	ForceStop()

	// CheckHealth reports whether the running replica passes its health
	// check.
	CheckHealth() bool

	// ResourceRequirements describes the required and available resources
	// for the replica, for diagnostics when scheduling is slow.
	ResourceRequirements() (required, available string)
}

// Launcher creates and reattaches replica handles. It is the boundary to
// the external process/actor runtime.
type Launcher interface {
	// Start launches a new replica for the given spec and version. nodeID
	// is a placement constraint; empty lets the launcher choose.
	Start(replicaID string, spec *types.DeploymentSpec, version types.DeploymentVersion, nodeID string) (Handle, error)

	// Recover reattaches to a replica that was running before a controller
	// restart. The replica's version is unknown until its first successful
	// readiness poll.
	Recover(replicaID string) (Handle, error)
}
