package replica

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paddock-io/paddock/pkg/types"
)

func placedRecord(tag, node string) *Record {
	h := newMockHandle(tag)
	h.node = node
	v := types.NewDeploymentVersion("v1", types.DeploymentConfig{}.Normalized())
	return NewRecord(tag, "app", h, v, nil)
}

func TestRankForStopping(t *testing.T) {
	tests := []struct {
		name      string
		nodes     []string
		liveNodes []string
		want      []string
	}{
		{
			name:      "unplaced before placed",
			nodes:     []string{"", "node1", ""},
			liveNodes: []string{"node1"},
			want:      []string{"r0", "r2", "r1"},
		},
		{
			name:      "dangling before live",
			nodes:     []string{"node1", "node9", "node2"},
			liveNodes: []string{"node1", "node2"},
			want:      []string{"r1", "r0", "r2"},
		},
		{
			name:      "unplaced then dangling then live",
			nodes:     []string{"node1", "", "node9"},
			liveNodes: []string{"node1"},
			want:      []string{"r1", "r2", "r0"},
		},
		{
			name:      "stable order within a rank",
			nodes:     []string{"node1", "node2", "node3"},
			liveNodes: []string{"node1", "node2", "node3"},
			want:      []string{"r0", "r1", "r2"},
		},
		{
			name:      "nil membership treats placed nodes as live",
			nodes:     []string{"node9", "", "node8"},
			liveNodes: nil,
			want:      []string{"r1", "r0", "r2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var replicas []*Record
			for i, node := range tt.nodes {
				replicas = append(replicas, placedRecord("r"+string(rune('0'+i)), node))
			}

			ranked := RankForStopping(replicas, tt.liveNodes)
			var got []string
			for _, r := range ranked {
				got = append(got, r.Tag())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
