package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeploymentVersion is the immutable identity of a deployment target. Two
// versions are identical iff both the code version and the config hash
// match. Same code with a different config hash is the live-reconfigure
// case; a different code version always requires a restart.
//
// The struct is comparable: use == to test identity.
type DeploymentVersion struct {
	CodeVersion string `json:"code_version"`

	// ConfigHash is derived from every non-code config field that affects
	// replica behavior. Replica count and rolling-update sizing are
	// excluded: scaling is not a version change.
	ConfigHash string `json:"config_hash"`

	// ReconfigHash covers only the fields that can be applied to a live
	// replica (user payload and shutdown wait loop). When two versions
	// share a code version but differ here, replicas must go through an
	// in-place reconfigure; if only ConfigHash differs the new config is
	// recorded without touching the replica.
	ReconfigHash string `json:"reconfig_hash"`
}

// NewDeploymentVersion builds the version descriptor for a spec. An empty
// code version is replaced by a random one, forcing a full restart on every
// redeploy of an unversioned deployment.
func NewDeploymentVersion(codeVersion string, cfg DeploymentConfig) DeploymentVersion {
	if codeVersion == "" {
		codeVersion = "unversioned-" + uuid.New().String()
	}
	return DeploymentVersion{
		CodeVersion: codeVersion,
		ConfigHash: hashJSON(versionFields{
			UserConfig:               cfg.UserConfig,
			HealthCheckPeriod:        cfg.HealthCheckPeriod,
			HealthCheckTimeout:       cfg.HealthCheckTimeout,
			GracefulShutdownTimeout:  cfg.GracefulShutdownTimeout,
			GracefulShutdownWaitLoop: cfg.GracefulShutdownWaitLoop,
			MaxConcurrentRequests:    cfg.MaxConcurrentRequests,
		}),
		ReconfigHash: hashJSON(reconfigFields{
			UserConfig:               cfg.UserConfig,
			GracefulShutdownWaitLoop: cfg.GracefulShutdownWaitLoop,
		}),
	}
}

// RequiresRestart reports whether moving a replica from v to target needs a
// full stop/start cycle.
func (v DeploymentVersion) RequiresRestart(target DeploymentVersion) bool {
	return v.CodeVersion != target.CodeVersion
}

// RequiresReconfigure reports whether moving a replica from v to target
// needs an in-place reconfigure call (as opposed to just recording the new
// version).
func (v DeploymentVersion) RequiresReconfigure(target DeploymentVersion) bool {
	return v.ReconfigHash != target.ReconfigHash
}

// versionFields is the subset of DeploymentConfig that participates in the
// config hash.
type versionFields struct {
	UserConfig               map[string]any `json:"user_config"`
	HealthCheckPeriod        time.Duration  `json:"health_check_period"`
	HealthCheckTimeout       time.Duration  `json:"health_check_timeout"`
	GracefulShutdownTimeout  time.Duration  `json:"graceful_shutdown_timeout"`
	GracefulShutdownWaitLoop time.Duration  `json:"graceful_shutdown_wait_loop"`
	MaxConcurrentRequests    int            `json:"max_concurrent_requests"`
}

type reconfigFields struct {
	UserConfig               map[string]any `json:"user_config"`
	GracefulShutdownWaitLoop time.Duration  `json:"graceful_shutdown_wait_loop"`
}

func hashJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Config values come from YAML/JSON decoding, so this only fires
		// on a programming error.
		panic("types: unhashable config: " + err.Error())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
