package types

import (
	"time"
)

// DeploymentMode defines how a deployment's replica count is derived.
type DeploymentMode string

const (
	// DeploymentModeReplicated runs a fixed number of replicas.
	DeploymentModeReplicated DeploymentMode = "replicated"

	// DeploymentModeGlobal runs exactly one replica per live node.
	DeploymentModeGlobal DeploymentMode = "global"
)

// Default tunables applied by DeploymentConfig.Normalized.
const (
	DefaultHealthCheckPeriod        = 10 * time.Second
	DefaultHealthCheckTimeout       = 30 * time.Second
	DefaultGracefulShutdownTimeout  = 20 * time.Second
	DefaultGracefulShutdownWaitLoop = 2 * time.Second
	DefaultMaxConcurrentRequests    = 100
)

// DeploymentConfig holds the tunables of a deployment spec. All fields
// participate in the version's config hash; only UserConfig and
// GracefulShutdownWaitLoop can be applied to a running replica without a
// restart.
type DeploymentConfig struct {
	Replicas                 int            `json:"replicas" yaml:"replicas"`
	UserConfig               map[string]any `json:"user_config,omitempty" yaml:"user_config,omitempty"`
	HealthCheckPeriod        time.Duration  `json:"health_check_period" yaml:"health_check_period"`
	HealthCheckTimeout       time.Duration  `json:"health_check_timeout" yaml:"health_check_timeout"`
	GracefulShutdownTimeout  time.Duration  `json:"graceful_shutdown_timeout" yaml:"graceful_shutdown_timeout"`
	GracefulShutdownWaitLoop time.Duration  `json:"graceful_shutdown_wait_loop" yaml:"graceful_shutdown_wait_loop"`
	MaxConcurrentRequests    int            `json:"max_concurrent_requests" yaml:"max_concurrent_requests"`
	RollingUpdateBatch       int            `json:"rolling_update_batch,omitempty" yaml:"rolling_update_batch,omitempty"`
}

// Normalized returns a copy with zero-valued tunables replaced by defaults.
func (c DeploymentConfig) Normalized() DeploymentConfig {
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = DefaultHealthCheckPeriod
	}
	if c.HealthCheckTimeout == 0 {
		c.HealthCheckTimeout = DefaultHealthCheckTimeout
	}
	if c.GracefulShutdownTimeout == 0 {
		c.GracefulShutdownTimeout = DefaultGracefulShutdownTimeout
	}
	if c.GracefulShutdownWaitLoop == 0 {
		c.GracefulShutdownWaitLoop = DefaultGracefulShutdownWaitLoop
	}
	if c.MaxConcurrentRequests == 0 {
		c.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	return c
}

// DeploymentSpec is the declarative target for one deployment. It is
// submitted by external callers and reconciled against continuously.
type DeploymentSpec struct {
	Name string         `json:"name" yaml:"name"`
	Mode DeploymentMode `json:"mode" yaml:"mode"`

	// CodeVersion identifies the deployable artifact. Empty means
	// "unversioned": every redeploy is treated as a new version and
	// restarts all replicas.
	CodeVersion string `json:"code_version,omitempty" yaml:"code_version,omitempty"`

	Config DeploymentConfig `json:"config" yaml:"config"`

	// Command is passed through to the replica launcher.
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`

	Deployer  string    `json:"deployer,omitempty" yaml:"deployer,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"-"`
}

// ReplicaState represents the lifecycle state of a single replica. A replica
// is in exactly one state at a time.
type ReplicaState string

const (
	ReplicaStateStarting   ReplicaState = "starting"
	ReplicaStateUpdating   ReplicaState = "updating"
	ReplicaStateRecovering ReplicaState = "recovering"
	ReplicaStateRunning    ReplicaState = "running"
	ReplicaStateStopping   ReplicaState = "stopping"
)

// AllReplicaStates lists every state in canonical order. Iteration over
// replica buckets always uses this order so that tick behavior is
// deterministic.
var AllReplicaStates = []ReplicaState{
	ReplicaStateStarting,
	ReplicaStateUpdating,
	ReplicaStateRecovering,
	ReplicaStateRunning,
	ReplicaStateStopping,
}

// DeploymentStatus is the aggregate status of a deployment.
type DeploymentStatus string

const (
	DeploymentStatusUpdating  DeploymentStatus = "updating"
	DeploymentStatusHealthy   DeploymentStatus = "healthy"
	DeploymentStatusUnhealthy DeploymentStatus = "unhealthy"
)

// DeploymentStatusInfo carries the aggregate status of a deployment along
// with a human-readable message. ChangeVersion increases monotonically on
// every status change so that notification consumers can deduplicate.
type DeploymentStatusInfo struct {
	Status        DeploymentStatus `json:"status"`
	Message       string           `json:"message,omitempty"`
	ChangeVersion uint64           `json:"change_version"`
}
