package fleet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/paddock-io/paddock/pkg/cluster"
	"github.com/paddock-io/paddock/pkg/controller"
	"github.com/paddock-io/paddock/pkg/log"
	"github.com/paddock-io/paddock/pkg/metrics"
	"github.com/paddock-io/paddock/pkg/notify"
	"github.com/paddock-io/paddock/pkg/replica"
	"github.com/paddock-io/paddock/pkg/storage"
	"github.com/paddock-io/paddock/pkg/types"
)

// ErrDeploymentNotFound is returned for operations on unknown deployments.
var ErrDeploymentNotFound = errors.New("fleet: deployment not found")

const (
	// DefaultTickInterval is how often the control loop runs.
	DefaultTickInterval = 1 * time.Second

	// DefaultCheckpointInterval throttles periodic checkpoint writes.
	// Deploys and deletes checkpoint immediately regardless.
	DefaultCheckpointInterval = 5 * time.Second
)

// Config wires a Manager's collaborators. Launcher is required. A nil
// Store disables persistence, a nil Broker disables notifications, a nil
// Membership means a single anonymous node.
type Config struct {
	Launcher   replica.Launcher
	Membership cluster.Membership
	Store      storage.CheckpointStore
	Broker     *notify.Broker

	TickInterval          time.Duration
	CheckpointInterval    time.Duration
	MaxConstructorRetries int

	// Clock exists for tests. Nil means real time.
	Clock func() time.Time
}

// Manager owns every deployment controller and runs the control loop.
type Manager struct {
	cfg Config
	now func() time.Time

	mu             sync.Mutex
	controllers    map[string]*controller.Controller
	lastPublished  map[string]uint64
	lastCheckpoint time.Time
	lastSaved      []byte

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// checkpoint is the persisted fleet state.
type checkpoint struct {
	Deployments map[string]controller.Snapshot `json:"deployments"`
}

// NewManager creates a manager and, when a store is configured, restores
// every deployment from the last checkpoint. Restored replicas come back
// in the recovering state and are re-confirmed over the following ticks.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Launcher == nil {
		return nil, errors.New("fleet: launcher is required")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = DefaultCheckpointInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	m := &Manager{
		cfg:           cfg,
		now:           cfg.Clock,
		controllers:   make(map[string]*controller.Controller),
		lastPublished: make(map[string]uint64),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}

	if cfg.Store != nil {
		if err := m.restore(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) restore() error {
	data, err := m.cfg.Store.Load()
	if errors.Is(err, storage.ErrNoCheckpoint) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	for name, snap := range cp.Deployments {
		m.controllers[name] = controller.Restore(m.controllerConfig(name), snap)
		m.lastPublished[name] = snap.Status.ChangeVersion
	}
	m.lastSaved = data
	flog := log.WithComponent("fleet")
	flog.Info().
		Int("deployments", len(cp.Deployments)).
		Msg("restored fleet from checkpoint")
	return nil
}

func (m *Manager) controllerConfig(name string) controller.Config {
	return controller.Config{
		Name:                  name,
		Launcher:              m.cfg.Launcher,
		MaxConstructorRetries: m.cfg.MaxConstructorRetries,
		Clock:                 m.cfg.Clock,
	}
}

// Deploy submits a deployment target, creating the deployment on first
// use. It returns false when the submitted spec matches the current target
// exactly and nothing was changed.
func (m *Manager) Deploy(spec *types.DeploymentSpec) (bool, error) {
	if spec.Name == "" {
		return false, errors.New("fleet: deployment name is required")
	}

	m.mu.Lock()
	ctrl, ok := m.controllers[spec.Name]
	if !ok {
		ctrl = controller.New(m.controllerConfig(spec.Name))
		m.controllers[spec.Name] = ctrl
	}
	changed := ctrl.Deploy(spec)
	if changed {
		m.checkpointLocked()
	}
	m.mu.Unlock()
	return changed, nil
}

// Delete marks a deployment for removal. Its replicas drain gracefully
// over the following ticks.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctrl, ok := m.controllers[name]
	if !ok {
		return ErrDeploymentNotFound
	}
	ctrl.Delete()
	m.checkpointLocked()
	return nil
}

// Shutdown marks every deployment for removal. The control loop must keep
// ticking until Drained reports true for the drain to finish.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ctrl := range m.controllers {
		ctrl.Delete()
	}
	m.checkpointLocked()
}

// Kill force-stops every replica still alive. It is the last resort after
// a Shutdown drain has run out of time; the control loop must keep ticking
// briefly so the exits are confirmed and the final checkpoint is written.
func (m *Manager) Kill() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ctrl := range m.controllers {
		ctrl.Kill()
	}
}

// Drained reports whether no deployments remain.
func (m *Manager) Drained() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.controllers) == 0
}

// Status returns the status of one deployment.
func (m *Manager) Status(name string) (types.DeploymentStatusInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctrl, ok := m.controllers[name]
	if !ok {
		return types.DeploymentStatusInfo{}, false
	}
	return ctrl.Status(), true
}

// Statuses returns the status of every deployment.
func (m *Manager) Statuses() map[string]types.DeploymentStatusInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]types.DeploymentStatusInfo, len(m.controllers))
	for name, ctrl := range m.controllers {
		out[name] = ctrl.Status()
	}
	return out
}

// Tick runs one reconciliation pass over every deployment. It returns true
// while any replica is still recovering from a restart.
func (m *Manager) Tick() (recovering bool) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconcileDuration)
		metrics.ReconcileCyclesTotal.Inc()
	}()

	liveNodes := m.liveNodes()

	m.mu.Lock()

	names := make([]string, 0, len(m.controllers))
	for name := range m.controllers {
		names = append(names, name)
	}
	sort.Strings(names)

	var updates []*notify.StatusUpdate
	for _, name := range names {
		ctrl := m.controllers[name]
		deleted, rec := ctrl.Update(liveNodes)
		recovering = recovering || rec

		if deleted {
			delete(m.controllers, name)
			delete(m.lastPublished, name)
			updates = append(updates, &notify.StatusUpdate{
				Kind:       notify.KindDeploymentDeleted,
				Deployment: name,
				Info:       ctrl.Status(),
			})
			m.checkpointLocked()
			continue
		}

		if info := ctrl.Status(); info.ChangeVersion > m.lastPublished[name] {
			m.lastPublished[name] = info.ChangeVersion
			updates = append(updates, &notify.StatusUpdate{
				Kind:       notify.KindStatusChanged,
				Deployment: name,
				Info:       info,
			})
		}
	}

	m.updateGaugesLocked()

	if m.now().Sub(m.lastCheckpoint) >= m.cfg.CheckpointInterval {
		m.checkpointLocked()
	}
	m.mu.Unlock()

	if m.cfg.Broker != nil {
		for _, u := range updates {
			m.cfg.Broker.Publish(u)
		}
	}
	return recovering
}

func (m *Manager) liveNodes() []string {
	if m.cfg.Membership == nil {
		return nil
	}
	nodes, err := m.cfg.Membership.ListLiveNodes()
	if err != nil {
		flog := log.WithComponent("fleet")
		flog.Error().Err(err).Msg("failed to list live nodes")
		return nil
	}
	return nodes
}

func (m *Manager) updateGaugesLocked() {
	stateCounts := make(map[types.ReplicaState]int)
	statusCounts := make(map[types.DeploymentStatus]int)
	for _, ctrl := range m.controllers {
		for state, n := range ctrl.CountsByState() {
			stateCounts[state] += n
		}
		statusCounts[ctrl.Status().Status]++
	}
	for _, state := range types.AllReplicaStates {
		metrics.ReplicasTotal.WithLabelValues(string(state)).Set(float64(stateCounts[state]))
	}
	for _, status := range []types.DeploymentStatus{
		types.DeploymentStatusUpdating,
		types.DeploymentStatusHealthy,
		types.DeploymentStatusUnhealthy,
	} {
		metrics.DeploymentsTotal.WithLabelValues(string(status)).Set(float64(statusCounts[status]))
	}
}

func (m *Manager) checkpointLocked() {
	m.lastCheckpoint = m.now()
	if m.cfg.Store == nil {
		return
	}

	cp := checkpoint{Deployments: make(map[string]controller.Snapshot, len(m.controllers))}
	for name, ctrl := range m.controllers {
		cp.Deployments[name] = ctrl.Snapshot()
	}

	data, err := json.Marshal(cp)
	if err != nil {
		flog := log.WithComponent("fleet")
		flog.Error().Err(err).Msg("failed to encode checkpoint")
		metrics.CheckpointFailures.Inc()
		return
	}
	// Nothing changed since the last write; spare the store.
	if bytes.Equal(data, m.lastSaved) {
		return
	}
	if err := m.cfg.Store.Save(data); err != nil {
		flog := log.WithComponent("fleet")
		flog.Error().Err(err).Msg("failed to save checkpoint")
		metrics.CheckpointFailures.Inc()
		return
	}
	m.lastSaved = data
}

// Start launches the control loop goroutine.
func (m *Manager) Start() {
	go m.run()
}

// Stop terminates the control loop. It does not drain deployments; call
// Shutdown first and keep the loop running when a drain is wanted.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}

func (m *Manager) run() {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	flog := log.WithComponent("fleet")
	flog.Info().
		Dur("tick_interval", m.cfg.TickInterval).
		Msg("control loop started")

	for {
		select {
		case <-ticker.C:
			m.Tick()
		case <-m.stopCh:
			flog.Info().Msg("control loop stopped")
			return
		}
	}
}
