package launcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/paddock-io/paddock/pkg/log"
	"github.com/paddock-io/paddock/pkg/replica"
	"github.com/paddock-io/paddock/pkg/types"
)

// replicaState is the per-replica file that survives controller restarts.
type replicaState struct {
	PID         int                     `json:"pid"`
	Deployment  string                  `json:"deployment"`
	Version     types.DeploymentVersion `json:"version"`
	GracePeriod time.Duration           `json:"grace_period"`
}

// ProcessLauncher implements replica.Launcher with local child processes.
type ProcessLauncher struct {
	stateDir string
	nodeID   string
}

// NewProcessLauncher creates a launcher that keeps replica state files
// under dataDir.
func NewProcessLauncher(dataDir string) (*ProcessLauncher, error) {
	stateDir := filepath.Join(dataDir, "replicas")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create replica state dir: %w", err)
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return &ProcessLauncher{stateDir: stateDir, nodeID: hostname}, nil
}

func (l *ProcessLauncher) statePath(replicaID string) string {
	return filepath.Join(l.stateDir, replicaID+".json")
}

// Start launches a replica process. The replica's identity and user config
// are passed through the environment. nodeID is ignored: a process
// launcher only ever places replicas on its own node.
func (l *ProcessLauncher) Start(replicaID string, spec *types.DeploymentSpec, version types.DeploymentVersion, nodeID string) (replica.Handle, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("deployment %s has no command", spec.Name)
	}

	userConfig, err := json.Marshal(spec.Config.UserConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user config: %w", err)
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Env = append(os.Environ(),
		"PADDOCK_REPLICA_ID="+replicaID,
		"PADDOCK_DEPLOYMENT="+spec.Name,
		"PADDOCK_USER_CONFIG="+string(userConfig),
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start replica process: %w", err)
	}

	state := replicaState{
		PID:         cmd.Process.Pid,
		Deployment:  spec.Name,
		Version:     version,
		GracePeriod: spec.Config.GracefulShutdownTimeout,
	}
	if err := l.writeState(replicaID, state); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	h := &processHandle{
		launcher:  l,
		replicaID: replicaID,
		proc:      cmd.Process,
		state:     state,
		exited:    make(chan struct{}),
	}
	go h.reap(cmd)
	return h, nil
}

// Recover reattaches to a replica process from its state file. The process
// must still be alive; a dead or missing replica is an error and the
// controller replaces it.
func (l *ProcessLauncher) Recover(replicaID string) (replica.Handle, error) {
	data, err := os.ReadFile(l.statePath(replicaID))
	if err != nil {
		return nil, fmt.Errorf("no state for replica %s: %w", replicaID, err)
	}
	var state replicaState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("corrupt state for replica %s: %w", replicaID, err)
	}

	proc, err := os.FindProcess(state.PID)
	if err != nil || proc.Signal(syscall.Signal(0)) != nil {
		l.removeState(replicaID)
		return nil, fmt.Errorf("replica %s (pid %d) is gone", replicaID, state.PID)
	}

	h := &processHandle{
		launcher:  l,
		replicaID: replicaID,
		proc:      proc,
		state:     state,
		recovered: true,
		exited:    make(chan struct{}),
	}
	go h.waitRecovered()
	return h, nil
}

func (l *ProcessLauncher) writeState(replicaID string, state replicaState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode replica state: %w", err)
	}
	if err := os.WriteFile(l.statePath(replicaID), data, 0644); err != nil {
		return fmt.Errorf("failed to write replica state: %w", err)
	}
	return nil
}

func (l *ProcessLauncher) removeState(replicaID string) {
	if err := os.Remove(l.statePath(replicaID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		rlog := log.WithReplica(replicaID)
		rlog.Warn().Err(err).Msg("failed to remove replica state file")
	}
}

// processHandle wraps a single replica process.
type processHandle struct {
	launcher  *ProcessLauncher
	replicaID string
	proc      *os.Process
	state     replicaState
	recovered bool
	exited    chan struct{}
}

// reap waits on a child we started ourselves so it never zombies.
func (h *processHandle) reap(cmd *exec.Cmd) {
	_ = cmd.Wait()
	close(h.exited)
}

// waitRecovered polls a reattached process; it is not our child, so
// Wait is unavailable and a liveness signal is the best we can do.
func (h *processHandle) waitRecovered() {
	for {
		if h.proc.Signal(syscall.Signal(0)) != nil {
			close(h.exited)
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func (h *processHandle) hasExited() bool {
	select {
	case <-h.exited:
		return true
	default:
		return false
	}
}

func (h *processHandle) ReplicaID() string { return h.replicaID }
func (h *processHandle) NodeID() string    { return h.launcher.nodeID }

func (h *processHandle) CheckReady() (replica.StartupStatus, *types.DeploymentVersion) {
	if h.hasExited() {
		return replica.StartupFailed, nil
	}
	if h.recovered {
		v := h.state.Version
		return replica.StartupSucceeded, &v
	}
	return replica.StartupSucceeded, nil
}

func (h *processHandle) Reconfigure(v types.DeploymentVersion) bool {
	h.state.Version = v
	if err := h.launcher.writeState(h.replicaID, h.state); err != nil {
		rlog := log.WithReplica(h.replicaID)
		rlog.Warn().Err(err).Msg("failed to persist new version")
	}
	// SIGHUP asks the process to reload its config in place.
	_ = h.proc.Signal(syscall.SIGHUP)
	return false
}

func (h *processHandle) GracefulStop() time.Duration {
	_ = h.proc.Signal(syscall.SIGTERM)
	return h.state.GracePeriod
}

func (h *processHandle) CheckStopped() bool {
	if !h.hasExited() {
		return false
	}
	h.launcher.removeState(h.replicaID)
	return true
}

func (h *processHandle) ForceStop() {
	_ = h.proc.Kill()
}

func (h *processHandle) CheckHealth() bool {
	return !h.hasExited()
}

func (h *processHandle) ResourceRequirements() (string, string) {
	return "1 process slot", "local node"
}
