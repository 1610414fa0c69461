package replica

import (
	"errors"

	"github.com/paddock-io/paddock/pkg/types"
)

// ErrDuplicateReplica is returned when a replica tag is added to a
// container that already tracks it. This is a programming-contract
// violation, not a runtime condition.
var ErrDuplicateReplica = errors.New("replica: duplicate replica tag")

// PopAll makes Pop and PopRanked remove every matching replica.
const PopAll = -1

// Selector filters replicas by lifecycle state and version. All set fields
// are ANDed. A nil States means "all states"; Version and ExcludeVersion
// are exact-match and exact-exclusion on the assigned version (replicas
// with no version yet only match when neither is set, or under
// ExcludeVersion).
type Selector struct {
	States         []types.ReplicaState
	Version        *types.DeploymentVersion
	ExcludeVersion *types.DeploymentVersion
}

func (s Selector) states() []types.ReplicaState {
	if len(s.States) == 0 {
		return types.AllReplicaStates
	}
	return s.States
}

func (s Selector) matches(r *Record) bool {
	if s.Version != nil {
		if r.version == nil || *r.version != *s.Version {
			return false
		}
	}
	if s.ExcludeVersion != nil {
		if r.version != nil && *r.version == *s.ExcludeVersion {
			return false
		}
	}
	return true
}

// StateContainer holds every tracked replica of one deployment, bucketed by
// lifecycle state. Insertion order is preserved within each bucket; a
// replica is in exactly one bucket at a time.
type StateContainer struct {
	buckets map[types.ReplicaState][]*Record
	tags    map[string]types.ReplicaState
}

// NewStateContainer creates an empty container.
func NewStateContainer() *StateContainer {
	return &StateContainer{
		buckets: make(map[types.ReplicaState][]*Record),
		tags:    make(map[string]types.ReplicaState),
	}
}

// Add inserts a replica into the given state bucket. Adding a tag the
// container already tracks fails with ErrDuplicateReplica.
func (c *StateContainer) Add(state types.ReplicaState, r *Record) error {
	if _, ok := c.tags[r.tag]; ok {
		return ErrDuplicateReplica
	}
	c.tags[r.tag] = state
	r.lastState = state
	c.buckets[state] = append(c.buckets[state], r)
	return nil
}

// Count returns the number of replicas matching the selector.
func (c *StateContainer) Count(sel Selector) int {
	n := 0
	for _, state := range sel.states() {
		for _, r := range c.buckets[state] {
			if sel.matches(r) {
				n++
			}
		}
	}
	return n
}

// Get returns a snapshot of replicas in the listed states (all states when
// none given), in state-list order then bucket insertion order. The
// returned slice is a copy; the records are shared.
func (c *StateContainer) Get(states ...types.ReplicaState) []*Record {
	if len(states) == 0 {
		states = types.AllReplicaStates
	}
	var out []*Record
	for _, state := range states {
		out = append(out, c.buckets[state]...)
	}
	return out
}

// Pop atomically removes and returns up to max matching replicas (PopAll
// for no limit), preserving state-list order across buckets and insertion
// order within each bucket. Removed replicas leave no trace in the
// container.
func (c *StateContainer) Pop(sel Selector, max int) []*Record {
	return c.popWith(sel, max, nil)
}

// PopRanked is Pop with a ranking function applied to the full candidate
// set before the max cutoff, so stop preference wins over bucket order.
func (c *StateContainer) PopRanked(sel Selector, max int, rank func([]*Record) []*Record) []*Record {
	return c.popWith(sel, max, rank)
}

func (c *StateContainer) popWith(sel Selector, max int, rank func([]*Record) []*Record) []*Record {
	if max == 0 {
		return nil
	}
	var candidates []*Record
	for _, state := range sel.states() {
		for _, r := range c.buckets[state] {
			if sel.matches(r) {
				candidates = append(candidates, r)
			}
		}
	}
	if rank != nil {
		candidates = rank(candidates)
	}
	if max >= 0 && len(candidates) > max {
		candidates = candidates[:max]
	}
	for _, r := range candidates {
		c.remove(r)
	}
	return candidates
}

func (c *StateContainer) remove(r *Record) {
	state, ok := c.tags[r.tag]
	if !ok {
		return
	}
	delete(c.tags, r.tag)
	bucket := c.buckets[state]
	for i, cur := range bucket {
		if cur.tag == r.tag {
			c.buckets[state] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}
