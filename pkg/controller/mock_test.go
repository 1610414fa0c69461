package controller

import (
	"fmt"
	"time"

	"github.com/paddock-io/paddock/pkg/replica"
	"github.com/paddock-io/paddock/pkg/types"
)

// mockHandle is a scriptable replica handle.
type mockHandle struct {
	id   string
	node string

	ready           replica.StartupStatus
	reportedVersion *types.DeploymentVersion
	version         types.DeploymentVersion

	reconfUpdating bool
	reconfigured   []types.DeploymentVersion

	healthy bool
	stopped bool
	grace   time.Duration

	gracefulStopCalls int
	forceStopCalls    int
}

func (m *mockHandle) ReplicaID() string { return m.id }
func (m *mockHandle) NodeID() string    { return m.node }

func (m *mockHandle) CheckReady() (replica.StartupStatus, *types.DeploymentVersion) {
	return m.ready, m.reportedVersion
}

func (m *mockHandle) Reconfigure(v types.DeploymentVersion) bool {
	m.reconfigured = append(m.reconfigured, v)
	m.version = v
	if m.reconfUpdating {
		m.ready = replica.StartupPending
	}
	return m.reconfUpdating
}

func (m *mockHandle) GracefulStop() time.Duration {
	m.gracefulStopCalls++
	return m.grace
}

func (m *mockHandle) CheckStopped() bool { return m.stopped }
func (m *mockHandle) ForceStop()         { m.forceStopCalls++ }
func (m *mockHandle) CheckHealth() bool  { return m.healthy }

func (m *mockHandle) ResourceRequirements() (string, string) {
	return "1 slot", "0 slots"
}

// mockLauncher hands out mock handles and remembers every one.
type mockLauncher struct {
	started []*mockHandle
	byID    map[string]*mockHandle

	// failStartup makes every new replica fail its constructor and exit
	// immediately.
	failStartup bool

	startErr    error
	recoverable map[string]*mockHandle
}

func newMockLauncher() *mockLauncher {
	return &mockLauncher{
		byID:        make(map[string]*mockHandle),
		recoverable: make(map[string]*mockHandle),
	}
}

func (l *mockLauncher) Start(replicaID string, spec *types.DeploymentSpec, version types.DeploymentVersion, nodeID string) (replica.Handle, error) {
	if l.startErr != nil {
		return nil, l.startErr
	}
	h := &mockHandle{
		id:      replicaID,
		node:    nodeID,
		ready:   replica.StartupPending,
		version: version,
		healthy: true,
		grace:   spec.Config.GracefulShutdownTimeout,
	}
	if l.failStartup {
		h.ready = replica.StartupFailed
		h.stopped = true
	}
	l.started = append(l.started, h)
	l.byID[replicaID] = h
	return h, nil
}

func (l *mockLauncher) Recover(replicaID string) (replica.Handle, error) {
	h, ok := l.recoverable[replicaID]
	if !ok {
		return nil, fmt.Errorf("no such replica: %s", replicaID)
	}
	return h, nil
}

// makeAllReady flips every pending handle to a successful startup.
func (l *mockLauncher) makeAllReady() {
	for _, h := range l.started {
		if h.ready == replica.StartupPending {
			h.ready = replica.StartupSucceeded
		}
	}
}

// confirmAllStopped makes every gracefully stopped handle report exited.
func (l *mockLauncher) confirmAllStopped() {
	for _, h := range l.started {
		if h.gracefulStopCalls > 0 || h.forceStopCalls > 0 {
			h.stopped = true
		}
	}
}

// startCount is the total number of replicas ever launched.
func (l *mockLauncher) startCount() int { return len(l.started) }

// mockClock is a manually advanced clock.
type mockClock struct {
	t time.Time
}

func newMockClock() *mockClock {
	return &mockClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *mockClock) Now() time.Time          { return c.t }
func (c *mockClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
