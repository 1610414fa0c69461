package replica

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddock-io/paddock/pkg/types"
)

func makeRecord(tag string, v *types.DeploymentVersion) *Record {
	h := newMockHandle(tag)
	if v != nil {
		return NewRecord(tag, "app", h, *v, nil)
	}
	return NewRecoveringRecord(tag, "app", h, nil)
}

func TestContainerAddAndCount(t *testing.T) {
	v1 := types.NewDeploymentVersion("v1", types.DeploymentConfig{}.Normalized())
	v2 := types.NewDeploymentVersion("v2", types.DeploymentConfig{}.Normalized())

	c := NewStateContainer()
	require.NoError(t, c.Add(types.ReplicaStateStarting, makeRecord("a", &v1)))
	require.NoError(t, c.Add(types.ReplicaStateRunning, makeRecord("b", &v1)))
	require.NoError(t, c.Add(types.ReplicaStateRunning, makeRecord("c", &v2)))
	require.NoError(t, c.Add(types.ReplicaStateStopping, makeRecord("d", &v2)))

	assert.Equal(t, 4, c.Count(Selector{}))
	assert.Equal(t, 2, c.Count(Selector{States: []types.ReplicaState{types.ReplicaStateRunning}}))
	assert.Equal(t, 2, c.Count(Selector{Version: &v1}))
	assert.Equal(t, 2, c.Count(Selector{ExcludeVersion: &v1}))
	assert.Equal(t, 1, c.Count(Selector{
		States:  []types.ReplicaState{types.ReplicaStateRunning},
		Version: &v2,
	}))

	// Per-state counts always sum to the total.
	sum := 0
	for _, state := range types.AllReplicaStates {
		sum += c.Count(Selector{States: []types.ReplicaState{state}})
	}
	assert.Equal(t, c.Count(Selector{}), sum)
}

func TestContainerRejectsDuplicateTag(t *testing.T) {
	v := types.NewDeploymentVersion("v1", types.DeploymentConfig{}.Normalized())

	c := NewStateContainer()
	r := makeRecord("a", &v)
	require.NoError(t, c.Add(types.ReplicaStateStarting, r))
	assert.ErrorIs(t, c.Add(types.ReplicaStateRunning, r), ErrDuplicateReplica)
}

func TestContainerPop(t *testing.T) {
	v1 := types.NewDeploymentVersion("v1", types.DeploymentConfig{}.Normalized())
	v2 := types.NewDeploymentVersion("v2", types.DeploymentConfig{}.Normalized())

	c := NewStateContainer()
	require.NoError(t, c.Add(types.ReplicaStateRunning, makeRecord("r1", &v1)))
	require.NoError(t, c.Add(types.ReplicaStateRunning, makeRecord("r2", &v1)))
	require.NoError(t, c.Add(types.ReplicaStateStarting, makeRecord("s1", &v2)))
	require.NoError(t, c.Add(types.ReplicaStateStarting, makeRecord("s2", &v1)))

	// State-list order wins over insertion order across buckets.
	popped := c.Pop(Selector{States: []types.ReplicaState{
		types.ReplicaStateStarting,
		types.ReplicaStateRunning,
	}}, 3)
	require.Len(t, popped, 3)
	assert.Equal(t, "s1", popped[0].Tag())
	assert.Equal(t, "s2", popped[1].Tag())
	assert.Equal(t, "r1", popped[2].Tag())

	// Popped replicas are gone; the rest stay.
	assert.Equal(t, 1, c.Count(Selector{}))
	remaining := c.Pop(Selector{}, PopAll)
	require.Len(t, remaining, 1)
	assert.Equal(t, "r2", remaining[0].Tag())
	assert.Equal(t, 0, c.Count(Selector{}))

	// A second pop finds nothing.
	assert.Empty(t, c.Pop(Selector{}, PopAll))
}

func TestContainerPopWithVersionFilter(t *testing.T) {
	v1 := types.NewDeploymentVersion("v1", types.DeploymentConfig{}.Normalized())
	v2 := types.NewDeploymentVersion("v2", types.DeploymentConfig{}.Normalized())

	c := NewStateContainer()
	require.NoError(t, c.Add(types.ReplicaStateRunning, makeRecord("old1", &v1)))
	require.NoError(t, c.Add(types.ReplicaStateRunning, makeRecord("new1", &v2)))
	require.NoError(t, c.Add(types.ReplicaStateRunning, makeRecord("old2", &v1)))
	// Recovering replicas have no version and match ExcludeVersion.
	require.NoError(t, c.Add(types.ReplicaStateRecovering, makeRecord("rec1", nil)))

	popped := c.Pop(Selector{ExcludeVersion: &v2}, PopAll)
	tags := make([]string, 0, len(popped))
	for _, r := range popped {
		tags = append(tags, r.Tag())
	}
	assert.ElementsMatch(t, []string{"old1", "old2", "rec1"}, tags)
	assert.Equal(t, 1, c.Count(Selector{}))
}

func TestContainerPopRanked(t *testing.T) {
	v := types.NewDeploymentVersion("v1", types.DeploymentConfig{}.Normalized())

	c := NewStateContainer()
	for _, tag := range []string{"a", "b", "c"} {
		require.NoError(t, c.Add(types.ReplicaStateRunning, makeRecord(tag, &v)))
	}

	// Reverse ranking: the cutoff applies after ranking.
	popped := c.PopRanked(Selector{}, 1, func(rs []*Record) []*Record {
		out := make([]*Record, len(rs))
		for i, r := range rs {
			out[len(rs)-1-i] = r
		}
		return out
	})
	require.Len(t, popped, 1)
	assert.Equal(t, "c", popped[0].Tag())
	assert.Equal(t, 2, c.Count(Selector{}))
}

func TestContainerLastState(t *testing.T) {
	v := types.NewDeploymentVersion("v1", types.DeploymentConfig{}.Normalized())

	c := NewStateContainer()
	r := makeRecord("a", &v)
	require.NoError(t, c.Add(types.ReplicaStateStarting, r))
	assert.Equal(t, types.ReplicaStateStarting, r.LastState())

	popped := c.Pop(Selector{}, PopAll)
	require.Len(t, popped, 1)
	assert.Equal(t, types.ReplicaStateStarting, popped[0].LastState())

	require.NoError(t, c.Add(types.ReplicaStateRunning, r))
	assert.Equal(t, types.ReplicaStateRunning, r.LastState())
}
