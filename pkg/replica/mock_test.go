package replica

import (
	"time"

	"github.com/paddock-io/paddock/pkg/types"
)

// mockHandle is a scriptable Handle for tests.
type mockHandle struct {
	id   string
	node string

	ready           StartupStatus
	reportedVersion *types.DeploymentVersion
	reconfUpdating  bool
	healthy         bool
	stopped         bool
	grace           time.Duration

	gracefulStopCalls int
	forceStopCalls    int
	healthCheckCalls  int
}

func newMockHandle(id string) *mockHandle {
	return &mockHandle{id: id, ready: StartupSucceeded, healthy: true}
}

func (m *mockHandle) ReplicaID() string { return m.id }
func (m *mockHandle) NodeID() string    { return m.node }

func (m *mockHandle) CheckReady() (StartupStatus, *types.DeploymentVersion) {
	return m.ready, m.reportedVersion
}

func (m *mockHandle) Reconfigure(v types.DeploymentVersion) bool { return m.reconfUpdating }

func (m *mockHandle) GracefulStop() time.Duration {
	m.gracefulStopCalls++
	return m.grace
}

func (m *mockHandle) CheckStopped() bool { return m.stopped }
func (m *mockHandle) ForceStop()         { m.forceStopCalls++ }

func (m *mockHandle) CheckHealth() bool {
	m.healthCheckCalls++
	return m.healthy
}

func (m *mockHandle) ResourceRequirements() (string, string) { return "1 slot", "0 slots" }

// mockClock is a manually advanced clock.
type mockClock struct {
	t time.Time
}

func newMockClock() *mockClock {
	return &mockClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *mockClock) Now() time.Time          { return c.t }
func (c *mockClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
