package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddock-io/paddock/pkg/types"
)

func TestBrokerDeliversToSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())

	b.Publish(&StatusUpdate{
		Kind:       KindStatusChanged,
		Deployment: "app",
		Info: types.DeploymentStatusInfo{
			Status:        types.DeploymentStatusHealthy,
			ChangeVersion: 2,
		},
	})

	select {
	case update := <-sub:
		require.NotNil(t, update)
		assert.Equal(t, KindStatusChanged, update.Kind)
		assert.Equal(t, "app", update.Deployment)
		assert.Equal(t, types.DeploymentStatusHealthy, update.Info.Status)
		assert.False(t, update.Timestamp.IsZero(), "timestamp is filled in on publish")
	case <-time.After(time.Second):
		t.Fatal("update never delivered")
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)
}

func TestBrokerDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()

	// Flood well past the per-subscriber buffer; the broker must not
	// block even though nobody is draining.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			b.Publish(&StatusUpdate{Kind: KindStatusChanged, Deployment: "app"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// Whatever was buffered is still readable.
	select {
	case update := <-sub:
		assert.Equal(t, "app", update.Deployment)
	case <-time.After(time.Second):
		t.Fatal("no buffered update delivered")
	}
}
