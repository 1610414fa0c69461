package notify

import (
	"sync"
	"time"

	"github.com/paddock-io/paddock/pkg/types"
)

// Kind classifies a status update.
type Kind string

const (
	KindStatusChanged     Kind = "deployment.status_changed"
	KindDeploymentDeleted Kind = "deployment.deleted"
)

// StatusUpdate is one deployment status change.
type StatusUpdate struct {
	Kind       Kind
	Deployment string
	Info       types.DeploymentStatusInfo
	Timestamp  time.Time
}

// Subscriber is a channel that receives status updates
type Subscriber chan *StatusUpdate

// Broker manages subscriptions and distribution of status updates
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	updateCh    chan *StatusUpdate
	stopCh      chan struct{}
}

// NewBroker creates a new status broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		updateCh:    make(chan *StatusUpdate, 100), // Buffer up to 100 updates
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an update to all subscribers
func (b *Broker) Publish(update *StatusUpdate) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	select {
	case b.updateCh <- update:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case update := <-b.updateCh:
			b.broadcast(update)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(update *StatusUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- update:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
