package cluster

import (
	"sync"
)

// Membership reports the set of live nodes replicas may be placed on.
type Membership interface {
	// ListLiveNodes returns the IDs of all nodes currently alive. The
	// result is a snapshot; membership may change between calls.
	ListLiveNodes() ([]string, error)
}

// Static is a Membership with an explicitly managed node set.
type Static struct {
	mu    sync.RWMutex
	nodes []string
}

// NewStatic creates a Static membership with the given initial nodes.
func NewStatic(nodes ...string) *Static {
	s := &Static{}
	s.SetNodes(nodes...)
	return s
}

// SetNodes replaces the live node set.
func (s *Static) SetNodes(nodes ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = append([]string(nil), nodes...)
}

// ListLiveNodes returns a copy of the current node set.
func (s *Static) ListLiveNodes() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.nodes...), nil
}
