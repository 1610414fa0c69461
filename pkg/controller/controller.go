package controller

import (
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/paddock-io/paddock/pkg/log"
	"github.com/paddock-io/paddock/pkg/metrics"
	"github.com/paddock-io/paddock/pkg/replica"
	"github.com/paddock-io/paddock/pkg/types"
)

const (
	// DefaultMaxConstructorRetries caps how many consecutive constructor
	// failures a deployment accumulates before it is declared unhealthy.
	// The effective ceiling is the lower of this and 3x the target count.
	DefaultMaxConstructorRetries = 20

	// Start-failure backoff window. Doubles per failure wave up to the
	// cap, with up to backoffJitter of random spread on top.
	backoffInitial = 1 * time.Second
	backoffCap     = 64 * time.Second
	backoffJitter  = 3 * time.Second

	// A replica still initializing after this long triggers a throttled
	// warning with its resource requirements.
	slowStartWarningAfter  = 30 * time.Second
	slowStartWarningPeriod = 30 * time.Second
)

// Config wires a Controller's collaborators. Name and Launcher are
// required; everything else has a usable zero value.
type Config struct {
	Name     string
	Launcher replica.Launcher

	// MaxConstructorRetries overrides DefaultMaxConstructorRetries when
	// positive.
	MaxConstructorRetries int

	// Clock and Jitter exist for tests. Nil means real time and uniform
	// random jitter.
	Clock  func() time.Time
	Jitter func(max time.Duration) time.Duration
}

// Controller reconciles one deployment. All methods must be called from a
// single goroutine; the fleet manager provides that guarantee.
type Controller struct {
	name                  string
	launcher              replica.Launcher
	maxConstructorRetries int
	now                   func() time.Time
	jitter                func(max time.Duration) time.Duration
	log                   zerolog.Logger

	spec          *types.DeploymentSpec
	targetVersion types.DeploymentVersion
	deleting      bool

	replicas *replica.StateContainer
	status   types.DeploymentStatusInfo

	// retryCounter counts consecutive constructor failures since the last
	// deploy. -1 is a sentinel meaning "stop tracking": some replicas made
	// it, so remaining failures are treated as transient.
	retryCounter int

	// startFrozen blocks all further start attempts after the retry
	// ceiling was hit with zero successful replicas. Only a new deploy
	// clears it.
	startFrozen bool

	backoffWave    int
	backoffUntil   time.Time
	failedThisTick bool

	lastSlowStartWarn time.Time
}

// New creates a controller with no target. It does nothing until Deploy or
// Restore gives it one.
func New(cfg Config) *Controller {
	c := &Controller{
		name:                  cfg.Name,
		launcher:              cfg.Launcher,
		maxConstructorRetries: cfg.MaxConstructorRetries,
		now:                   cfg.Clock,
		jitter:                cfg.Jitter,
		log:                   log.WithDeployment(cfg.Name),
		replicas:              replica.NewStateContainer(),
	}
	if c.maxConstructorRetries <= 0 {
		c.maxConstructorRetries = DefaultMaxConstructorRetries
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.jitter == nil {
		c.jitter = func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(max)))
		}
	}
	return c
}

// Deploy sets a new target for the deployment. It returns false when the
// submitted spec is identical to the current target (same version, same
// replica count, same command and mode) and there is nothing to do.
// Deploying always resets the constructor-failure tracking, including a
// frozen deployment.
func (c *Controller) Deploy(spec *types.DeploymentSpec) bool {
	s := *spec
	s.Config = s.Config.Normalized()
	if s.Mode == "" {
		s.Mode = types.DeploymentModeReplicated
	}
	version := types.NewDeploymentVersion(s.CodeVersion, s.Config)

	if c.spec != nil && !c.deleting {
		if version == c.targetVersion &&
			s.Config.Replicas == c.spec.Config.Replicas &&
			s.Mode == c.spec.Mode &&
			slices.Equal(s.Command, c.spec.Command) {
			return false
		}
		// Redeploys keep the original creation time.
		s.CreatedAt = c.spec.CreatedAt
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = c.now()
	}

	c.spec = &s
	c.targetVersion = version
	c.deleting = false
	c.retryCounter = 0
	c.startFrozen = false
	c.backoffWave = 0
	c.backoffUntil = time.Time{}
	c.failedThisTick = false

	c.setStatus(types.DeploymentStatusUpdating,
		fmt.Sprintf("Deploying %d replicas of version %q.", s.Config.Replicas, version.CodeVersion))
	c.log.Info().
		Str("code_version", version.CodeVersion).
		Int("replicas", s.Config.Replicas).
		Msg("deployment target updated")
	return true
}

// Delete marks the deployment for removal. Replicas are drained gracefully
// over the following ticks; Update reports deletion once the last one is
// gone.
func (c *Controller) Delete() {
	if c.deleting {
		return
	}
	c.deleting = true
	c.setStatus(types.DeploymentStatusUpdating, "Deleting.")
	c.log.Info().Msg("deployment marked for deletion")
}

// Kill marks the deployment for removal and force-stops every remaining
// replica, skipping whatever grace periods are still running. It is the
// escalation path for a drain that has run out of time; the following
// ticks confirm the exits.
func (c *Controller) Kill() {
	c.deleting = true
	killed := c.replicas.Pop(replica.Selector{}, replica.PopAll)
	for _, r := range killed {
		r.Kill()
		c.addReplica(types.ReplicaStateStopping, r)
	}
	if len(killed) > 0 {
		c.log.Warn().Int("replicas", len(killed)).Msg("force-stopping replicas")
	}
}

// Status returns the current aggregate status.
func (c *Controller) Status() types.DeploymentStatusInfo { return c.status }

// Spec returns the current target spec, or nil before the first deploy.
func (c *Controller) Spec() *types.DeploymentSpec { return c.spec }

// CountsByState returns the number of tracked replicas per lifecycle
// state, for metrics aggregation.
func (c *Controller) CountsByState() map[types.ReplicaState]int {
	counts := make(map[types.ReplicaState]int, len(types.AllReplicaStates))
	for _, state := range types.AllReplicaStates {
		counts[state] = c.replicas.Count(replica.Selector{States: []types.ReplicaState{state}})
	}
	return counts
}

// Update runs one reconciliation pass. liveNodes is the current cluster
// membership; it sizes global-mode deployments and ranks stop candidates.
// It returns deleted=true when a deleting deployment has drained its last
// replica, and recovering=true while any replica is still reattaching
// after a restart.
func (c *Controller) Update(liveNodes []string) (deleted, recovering bool) {
	if c.spec == nil {
		return false, false
	}

	c.stopOutdatedReplicas(liveNodes)
	c.scale(liveNodes)
	c.checkAndUpdateReplicas()
	c.applyStartBackoff()
	deleted = c.checkCurrStatus(liveNodes)

	recovering = c.replicas.Count(replica.Selector{
		States: []types.ReplicaState{types.ReplicaStateRecovering},
	}) > 0
	return deleted, recovering
}

// targetCount is the number of replicas the deployment should converge to
// this tick.
func (c *Controller) targetCount(liveNodes []string) int {
	switch {
	case c.deleting:
		return 0
	case c.spec.Mode == types.DeploymentModeGlobal:
		return len(liveNodes)
	default:
		return c.spec.Config.Replicas
	}
}

// rolloutSize is how many replicas one rolling-update wave may replace.
func (c *Controller) rolloutSize(target int) int {
	if c.spec.Config.RollingUpdateBatch > 0 {
		return c.spec.Config.RollingUpdateBatch
	}
	size := int(0.2 * float64(target))
	if size < 1 {
		size = 1
	}
	return size
}

// stopOutdatedReplicas advances a rolling update: it replaces or
// reconfigures replicas running an outdated version, throttled so that the
// deployment never dips more than one rollout wave below target.
func (c *Controller) stopOutdatedReplicas(liveNodes []string) {
	if c.deleting {
		return
	}
	target := c.targetCount(liveNodes)

	newRunning := c.replicas.Count(replica.Selector{
		States:  []types.ReplicaState{types.ReplicaStateRunning},
		Version: &c.targetVersion,
	})
	oldRunning := c.replicas.Count(replica.Selector{
		States:         []types.ReplicaState{types.ReplicaStateRunning},
		ExcludeVersion: &c.targetVersion,
	})
	oldStopping := c.replicas.Count(replica.Selector{
		States:         []types.ReplicaState{types.ReplicaStateStopping},
		ExcludeVersion: &c.targetVersion,
	})

	// Scale down to target before replacing versions, otherwise the wave
	// budget fights the downscale.
	if target < oldRunning+oldStopping {
		return
	}

	pending := target - newRunning - oldRunning
	maxToStop := c.rolloutSize(target) - pending
	if maxToStop < 0 {
		maxToStop = 0
	}

	// Ranked like a scale-down: unplaced and dangling replicas go first
	// so the wave budget is never spent keeping them alive.
	outdated := c.replicas.PopRanked(replica.Selector{
		States: []types.ReplicaState{
			types.ReplicaStateStarting,
			types.ReplicaStateUpdating,
			types.ReplicaStateRunning,
		},
		ExcludeVersion: &c.targetVersion,
	}, replica.PopAll, func(rs []*replica.Record) []*replica.Record {
		return replica.RankForStopping(rs, liveNodes)
	})

	budgetUsed := 0
	for _, r := range outdated {
		v := r.Version()
		switch {
		case budgetUsed >= maxToStop:
			c.addReplica(r.LastState(), r)
		case v == nil || v.RequiresRestart(c.targetVersion):
			budgetUsed++
			c.stopReplica(r, true)
		case r.LastState() == types.ReplicaStateRunning:
			// Same code version: apply the config in place.
			budgetUsed++
			if r.Reconfigure(c.targetVersion) {
				c.addReplica(types.ReplicaStateUpdating, r)
			} else {
				c.addReplica(types.ReplicaStateRunning, r)
			}
		default:
			// Still starting with the old config; let it reach RUNNING
			// first, the next wave picks it up.
			c.addReplica(r.LastState(), r)
		}
	}
}

// scale converges the replica count toward the target. Scale-up is
// suppressed by the start-failure backoff window and by a frozen
// deployment; scale-down prefers unplaced and dangling replicas.
func (c *Controller) scale(liveNodes []string) {
	if c.spec.Mode == types.DeploymentModeGlobal && !c.deleting {
		c.scaleGlobal(liveNodes)
		return
	}

	target := c.targetCount(liveNodes)
	current := c.replicas.Count(replica.Selector{States: activeStates})
	delta := target - current

	switch {
	case delta > 0:
		if !c.mayStart() {
			return
		}
		// Replicas already draining count against the upscale so a
		// rolling update does not overshoot.
		stopping := c.replicas.Count(replica.Selector{
			States: []types.ReplicaState{types.ReplicaStateStopping},
		})
		toAdd := delta - stopping
		for i := 0; i < toAdd; i++ {
			c.startReplica("")
		}
	case delta < 0:
		toStop := c.replicas.PopRanked(
			replica.Selector{States: activeStates},
			-delta,
			func(rs []*replica.Record) []*replica.Record {
				return replica.RankForStopping(rs, liveNodes)
			},
		)
		for _, r := range toStop {
			c.stopReplica(r, true)
		}
	}
}

// scaleGlobal keeps exactly one replica on every live node: missing nodes
// get a pinned start and replicas on departed nodes are drained. Global
// starts skip the stopping budget since each node converges independently.
func (c *Controller) scaleGlobal(liveNodes []string) {
	live := make(map[string]bool, len(liveNodes))
	for _, node := range liveNodes {
		live[node] = true
	}

	covered := make(map[string]bool)
	for _, r := range c.replicas.Get(activeStates...) {
		covered[r.NodeID()] = true
	}

	if c.mayStart() {
		for _, node := range liveNodes {
			if !covered[node] {
				c.startReplica(node)
			}
		}
	}

	dangling := c.replicas.PopRanked(
		replica.Selector{States: activeStates},
		replica.PopAll,
		func(rs []*replica.Record) []*replica.Record {
			var out []*replica.Record
			for _, r := range rs {
				if !live[r.NodeID()] {
					out = append(out, r)
				}
			}
			return out
		},
	)
	for _, r := range dangling {
		c.stopReplica(r, true)
	}
}

func (c *Controller) mayStart() bool {
	if c.startFrozen {
		return false
	}
	if c.retryCounter > 0 && c.now().Before(c.backoffUntil) {
		return false
	}
	return true
}

func (c *Controller) startReplica(nodeID string) {
	tag := replica.NewTag(c.name)
	h, err := c.launcher.Start(tag, c.spec, c.targetVersion, nodeID)
	if err != nil {
		c.log.Error().Err(err).Str("replica_id", tag).Msg("failed to launch replica")
		metrics.ReplicaStartFailures.Inc()
		c.recordStartFailure()
		return
	}
	r := replica.NewRecord(tag, c.name, h, c.targetVersion, c.now)
	c.addReplica(types.ReplicaStateStarting, r)
	metrics.ReplicasStarted.Inc()
	c.log.Debug().Str("replica_id", tag).Str("node", nodeID).Msg("replica starting")
}

func (c *Controller) stopReplica(r *replica.Record, graceful bool) {
	r.Stop(graceful)
	c.addReplica(types.ReplicaStateStopping, r)
	metrics.ReplicasStopped.Inc()
	c.log.Debug().Str("replica_id", r.Tag()).Bool("graceful", graceful).Msg("replica stopping")
}

// checkAndUpdateReplicas polls every in-flight replica exactly once:
// startup progress for starting/updating/recovering replicas, health for
// running ones, and exit confirmation for stopping ones.
func (c *Controller) checkAndUpdateReplicas() {
	var slow []*replica.Record

	pendingStart := []types.ReplicaState{
		types.ReplicaStateStarting,
		types.ReplicaStateUpdating,
		types.ReplicaStateRecovering,
	}
	for _, state := range pendingStart {
		for _, r := range c.replicas.Pop(replica.Selector{States: []types.ReplicaState{state}}, replica.PopAll) {
			switch r.CheckStarted() {
			case replica.StartupSucceeded:
				c.addReplica(types.ReplicaStateRunning, r)
			case replica.StartupFailed:
				c.log.Warn().Str("replica_id", r.Tag()).Msg("replica failed to start")
				metrics.ReplicaStartFailures.Inc()
				c.recordStartFailure()
				c.stopReplica(r, false)
			default:
				if r.StartAge() > slowStartWarningAfter {
					slow = append(slow, r)
				}
				c.addReplica(state, r)
			}
		}
	}
	c.warnSlowStarts(slow)

	period := c.spec.Config.HealthCheckPeriod
	for _, r := range c.replicas.Pop(replica.Selector{
		States: []types.ReplicaState{types.ReplicaStateRunning},
	}, replica.PopAll) {
		if r.CheckHealth(period) {
			c.addReplica(types.ReplicaStateRunning, r)
			continue
		}
		c.log.Warn().Str("replica_id", r.Tag()).Msg("replica health check failed")
		if v := r.Version(); v != nil && *v == c.targetVersion {
			c.setStatus(types.DeploymentStatusUnhealthy,
				fmt.Sprintf("A replica's health check failed. This deployment will be unavailable until the replica recovers. Replica: %s.", r.Tag()))
		}
		c.stopReplica(r, false)
	}

	for _, r := range c.replicas.Pop(replica.Selector{
		States: []types.ReplicaState{types.ReplicaStateStopping},
	}, replica.PopAll) {
		if !r.CheckStopped() {
			c.addReplica(types.ReplicaStateStopping, r)
			continue
		}
		c.log.Debug().Str("replica_id", r.Tag()).Msg("replica stopped")
	}
}

func (c *Controller) warnSlowStarts(slow []*replica.Record) {
	if len(slow) == 0 || c.now().Sub(c.lastSlowStartWarn) < slowStartWarningPeriod {
		return
	}
	c.lastSlowStartWarn = c.now()
	required, available := slow[0].ResourceRequirements()
	c.log.Warn().
		Int("count", len(slow)).
		Str("required_resources", required).
		Str("available_resources", available).
		Msgf("%d replicas have taken more than %s to start", len(slow), slowStartWarningAfter)
}

// recordStartFailure bumps the constructor-failure counter. The counter
// stays untouched once the -1 sentinel marks failure tracking as disabled.
func (c *Controller) recordStartFailure() {
	if c.retryCounter < 0 {
		return
	}
	c.retryCounter++
	c.failedThisTick = true
}

// applyStartBackoff opens the next backoff window when this tick saw any
// start failures. N replicas failing together count as one wave, so the
// window doubles per wave rather than per replica.
func (c *Controller) applyStartBackoff() {
	if !c.failedThisTick {
		return
	}
	c.failedThisTick = false
	c.backoffWave++
	wave := c.backoffWave
	if wave > 7 {
		wave = 7
	}
	backoff := backoffInitial << (wave - 1)
	if backoff > backoffCap {
		backoff = backoffCap
	}
	c.backoffUntil = c.now().Add(backoff + c.jitter(backoffJitter))
}

// checkCurrStatus recomputes the aggregate status after polling: UPDATING
// while anything is in flight, HEALTHY once the target is fully running.
// An UNHEALTHY verdict sticks until the deployment converges or is
// redeployed. It returns true when a deleting deployment has no replicas
// left.
func (c *Controller) checkCurrStatus(liveNodes []string) bool {
	target := c.targetCount(liveNodes)
	runningAtTarget := c.replicas.Count(replica.Selector{
		States:  []types.ReplicaState{types.ReplicaStateRunning},
		Version: &c.targetVersion,
	})

	if threshold := c.failureThreshold(target); threshold > 0 && c.retryCounter >= threshold {
		if runningAtTarget > 0 {
			// Some replicas constructed fine; remaining failures look
			// transient, so stop counting and keep retrying.
			c.retryCounter = -1
		} else {
			c.startFrozen = true
			c.setStatus(types.DeploymentStatusUnhealthy,
				fmt.Sprintf("The deployment failed to start %d times in a row. No further start attempts will be made until it is redeployed.", threshold))
			return false
		}
	}

	if c.deleting {
		if c.replicas.Count(replica.Selector{}) == 0 {
			c.log.Info().Msg("deployment deleted")
			return true
		}
		return false
	}

	pending := c.replicas.Count(replica.Selector{States: []types.ReplicaState{
		types.ReplicaStateStarting,
		types.ReplicaStateUpdating,
		types.ReplicaStateRecovering,
		types.ReplicaStateStopping,
	}})
	if pending == 0 && runningAtTarget == target {
		c.retryCounter = 0
		c.backoffWave = 0
		c.backoffUntil = time.Time{}
		c.setStatus(types.DeploymentStatusHealthy, "")
	} else if c.status.Status != types.DeploymentStatusUnhealthy {
		// Replicas are in flight or the running set is off target. This
		// also catches transitions the controller did not initiate, like
		// membership changes resizing a global deployment.
		c.setStatus(types.DeploymentStatusUpdating,
			fmt.Sprintf("Waiting for replicas to reach version %q.", c.targetVersion.CodeVersion))
	}
	return false
}

func (c *Controller) failureThreshold(target int) int {
	threshold := 3 * target
	if c.maxConstructorRetries < threshold {
		threshold = c.maxConstructorRetries
	}
	return threshold
}

func (c *Controller) setStatus(status types.DeploymentStatus, message string) {
	if c.status.Status == status && c.status.Message == message {
		return
	}
	c.status = types.DeploymentStatusInfo{
		Status:        status,
		Message:       message,
		ChangeVersion: c.status.ChangeVersion + 1,
	}
}

func (c *Controller) addReplica(state types.ReplicaState, r *replica.Record) {
	if err := c.replicas.Add(state, r); err != nil {
		// Records are popped before re-adding, so this cannot fire.
		c.log.Error().Err(err).Str("replica_id", r.Tag()).Msg("replica bookkeeping error")
	}
}

var activeStates = []types.ReplicaState{
	types.ReplicaStateStarting,
	types.ReplicaStateUpdating,
	types.ReplicaStateRecovering,
	types.ReplicaStateRunning,
}
