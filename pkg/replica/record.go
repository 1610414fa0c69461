package replica

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paddock-io/paddock/pkg/types"
)

// NewTag generates a stable replica identity for a deployment. The tag
// survives controller restarts: it is what gets checkpointed and what the
// launcher uses to reattach on recovery.
func NewTag(deployment string) string {
	return fmt.Sprintf("%s-%s", deployment, uuid.New().String()[:8])
}

// Record is one tracked replica. It owns the Handle for its lifetime and is
// exclusively owned by the deployment controller that created it.
type Record struct {
	tag        string
	deployment string
	handle     Handle
	now        func() time.Time

	// version is nil while the replica is recovering; it is re-learned
	// from the replica itself on the first successful readiness poll.
	version    *types.DeploymentVersion
	recovering bool

	// lastState is maintained by StateContainer.Add so that popped
	// replicas can be put back where they came from.
	lastState types.ReplicaState

	startedAt       time.Time
	lastHealthCheck time.Time

	stopIssued   bool
	stopDeadline time.Time
}

// NewRecord creates a record for a freshly started replica.
func NewRecord(tag, deployment string, h Handle, v types.DeploymentVersion, now func() time.Time) *Record {
	if now == nil {
		now = time.Now
	}
	return &Record{
		tag:        tag,
		deployment: deployment,
		handle:     h,
		now:        now,
		version:    &v,
		startedAt:  now(),
	}
}

// NewRecoveringRecord creates a record for a replica reattached after a
// controller restart. Its version is unknown until the replica reports it.
func NewRecoveringRecord(tag, deployment string, h Handle, now func() time.Time) *Record {
	if now == nil {
		now = time.Now
	}
	return &Record{
		tag:        tag,
		deployment: deployment,
		handle:     h,
		now:        now,
		recovering: true,
		startedAt:  now(),
	}
}

// Tag returns the replica's stable identity.
func (r *Record) Tag() string { return r.tag }

// Deployment returns the name of the owning deployment.
func (r *Record) Deployment() string { return r.deployment }

// NodeID returns the node the replica is placed on, or "" if unscheduled.
func (r *Record) NodeID() string { return r.handle.NodeID() }

// Version returns the replica's assigned version, or nil while recovering.
func (r *Record) Version() *types.DeploymentVersion { return r.version }

// LastState returns the container bucket the replica was most recently in.
func (r *Record) LastState() types.ReplicaState { return r.lastState }

// StartAge returns how long the replica has been starting or recovering.
func (r *Record) StartAge() time.Duration { return r.now().Sub(r.startedAt) }

// ResourceRequirements forwards the handle's resource diagnostics.
func (r *Record) ResourceRequirements() (string, string) {
	return r.handle.ResourceRequirements()
}

// CheckStarted polls startup progress. For a recovering replica a
// successful poll also installs the version the replica reported.
func (r *Record) CheckStarted() StartupStatus {
	status, reported := r.handle.CheckReady()
	if status == StartupSucceeded && r.recovering {
		r.recovering = false
		if reported != nil {
			v := *reported
			r.version = &v
		}
	}
	return status
}

// Reconfigure applies a new version in place. It returns true when the
// replica must re-initialize before it is ready again.
func (r *Record) Reconfigure(v types.DeploymentVersion) bool {
	updating := r.handle.Reconfigure(v)
	r.version = &v
	return updating
}

// Stop begins the replica's stop sequence. With graceful=true the replica
// gets the grace period granted by its handle before force-stop escalation
// kicks in; with graceful=false the deadline is immediate. Stop is
// idempotent: only the first call starts the sequence.
func (r *Record) Stop(graceful bool) {
	if r.stopIssued {
		return
	}
	r.stopIssued = true
	grace := r.handle.GracefulStop()
	if !graceful {
		grace = 0
	}
	r.stopDeadline = r.now().Add(grace)
}

// Kill escalates straight to a forced stop, discarding any grace period
// already granted. CheckStopped still confirms the exit afterwards.
func (r *Record) Kill() {
	r.stopIssued = true
	r.stopDeadline = r.now()
	r.handle.ForceStop()
}

// CheckStopped polls stop progress. Past the grace deadline it escalates to
// a forced kill on every poll until the replica confirms it has exited.
func (r *Record) CheckStopped() bool {
	if r.handle.CheckStopped() {
		return true
	}
	if !r.now().Before(r.stopDeadline) {
		r.handle.ForceStop()
	}
	return false
}

// CheckHealth runs the replica's health check, gated on the configured
// period. Within the period the previous verdict is assumed to still hold
// and true is returned without touching the handle. A period <= 0 checks on
// every call.
func (r *Record) CheckHealth(period time.Duration) bool {
	if period > 0 && r.now().Sub(r.lastHealthCheck) < period {
		return true
	}
	r.lastHealthCheck = r.now()
	return r.handle.CheckHealth()
}
