package app

import (
	"context"
	"errors"
	"sync"

	"github.com/engagely/points-service/internal/domain"
	"github.com/engagely/points-service/internal/metrics"
	"github.com/engagely/points-service/pkg/rabbitmq"
	"github.com/sirupsen/logrus"
)

const BalanceUpdatedRoutingKey = "points.balance.updated"

const defaultNotifyQueueSize = 1024

var (
	ErrNotifyQueueFull = errors.New("notification queue full")
	ErrNotifierClosed  = errors.New("notifier closed")
)

// Notifier receives a balance update after each committed mutation. Delivery is
// best-effort; errors are logged by the caller and never fail the mutation.
type Notifier interface {
	Notify(ctx context.Context, update domain.BalanceUpdate) error
}

// NoopNotifier discards updates.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, update domain.BalanceUpdate) error { return nil }

// EventNotifier publishes balance updates to a RabbitMQ topic exchange.
type EventNotifier struct {
	publisher rabbitmq.Publisher
	exchange  string
}

func NewEventNotifier(publisher rabbitmq.Publisher, exchange string) *EventNotifier {
	return &EventNotifier{publisher: publisher, exchange: exchange}
}

func (n *EventNotifier) Notify(ctx context.Context, update domain.BalanceUpdate) error {
	return n.publisher.Publish(ctx, n.exchange, BalanceUpdatedRoutingKey, update)
}

// AsyncNotifier queues updates for a single background publisher, so Notify
// returns without waiting on the broker. Updates are delivered in the order they
// were queued. A full queue rejects the update with ErrNotifyQueueFull.
type AsyncNotifier struct {
	next  Notifier
	log   *logrus.Logger
	queue chan domain.BalanceUpdate
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsyncNotifier(next Notifier, size int, log *logrus.Logger) *AsyncNotifier {
	if size <= 0 {
		size = defaultNotifyQueueSize
	}
	n := &AsyncNotifier{
		next:  next,
		log:   log,
		queue: make(chan domain.BalanceUpdate, size),
		done:  make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *AsyncNotifier) Notify(ctx context.Context, update domain.BalanceUpdate) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrNotifierClosed
	}
	select {
	case n.queue <- update:
		return nil
	default:
		return ErrNotifyQueueFull
	}
}

func (n *AsyncNotifier) run() {
	defer close(n.done)
	for update := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		err := n.next.Notify(ctx, update)
		cancel()
		if err != nil {
			metrics.NotifyFailures.Inc()
			n.log.WithFields(logrus.Fields{
				"component":  "notifier",
				"account_id": update.AccountID,
				"entry_id":   update.EntryID,
				"error":      err,
			}).Warn("balance notification failed")
		}
	}
}

// Close stops accepting updates and waits for the queued ones to be published
// until ctx is done.
func (n *AsyncNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
