package controller

import (
	"github.com/paddock-io/paddock/pkg/replica"
	"github.com/paddock-io/paddock/pkg/types"
)

// Snapshot is the durable state of one deployment. Only the target and the
// identities of live replicas are persisted; per-replica state is
// re-learned from the replicas themselves after a restart.
type Snapshot struct {
	Spec          *types.DeploymentSpec      `json:"spec"`
	TargetVersion types.DeploymentVersion    `json:"target_version"`
	Deleting      bool                       `json:"deleting"`
	Status        types.DeploymentStatusInfo `json:"status"`
	ReplicaTags   []string                   `json:"replica_tags"`
}

// Snapshot captures the controller's durable state. Stopping replicas are
// excluded: after a restart there is nothing left to confirm for them, and
// a leaked process is the launcher's cleanup problem.
func (c *Controller) Snapshot() Snapshot {
	var tags []string
	for _, r := range c.replicas.Get(activeStates...) {
		tags = append(tags, r.Tag())
	}
	return Snapshot{
		Spec:          c.spec,
		TargetVersion: c.targetVersion,
		Deleting:      c.deleting,
		Status:        c.status,
		ReplicaTags:   tags,
	}
}

// Restore rebuilds a controller from a snapshot and reattaches to its
// replicas. Replicas the launcher can no longer find are dropped; the
// regular scale-up path replaces them. Every reattached replica starts in
// the recovering state with an unknown version.
func Restore(cfg Config, snap Snapshot) *Controller {
	c := New(cfg)
	c.spec = snap.Spec
	c.targetVersion = snap.TargetVersion
	c.deleting = snap.Deleting
	c.status = snap.Status

	for _, tag := range snap.ReplicaTags {
		h, err := c.launcher.Recover(tag)
		if err != nil {
			c.log.Warn().Err(err).Str("replica_id", tag).Msg("replica lost across restart")
			continue
		}
		r := replica.NewRecoveringRecord(tag, c.name, h, c.now)
		c.addReplica(types.ReplicaStateRecovering, r)
	}
	if n := len(snap.ReplicaTags); n > 0 {
		c.log.Info().Int("replicas", n).Msg("recovering replicas from checkpoint")
	}
	return c
}
