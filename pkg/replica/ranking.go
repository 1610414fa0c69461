package replica

// RankForStopping orders replicas by how cheap they are to stop: replicas
// with no node placement yet come first, then replicas placed on nodes
// missing from liveNodes, then everything else in its original order.
// A nil liveNodes treats every placed node as live. The sort is stable so
// ties keep their container order.
func RankForStopping(replicas []*Record, liveNodes []string) []*Record {
	live := make(map[string]bool, len(liveNodes))
	for _, node := range liveNodes {
		live[node] = true
	}

	rankOf := func(r *Record) int {
		node := r.NodeID()
		switch {
		case node == "":
			return 0
		case liveNodes != nil && !live[node]:
			return 1
		default:
			return 2
		}
	}

	out := make([]*Record, 0, len(replicas))
	for rank := 0; rank <= 2; rank++ {
		for _, r := range replicas {
			if rankOf(r) == rank {
				out = append(out, r)
			}
		}
	}
	return out
}
