package eventbus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/pscheid92/accounthub/internal/domain"
	"github.com/pscheid92/accounthub/internal/metrics"
)

// Capacity is the per-subscriber buffer size. It absorbs nested emissions
// triggered synchronously from inside a subscriber's handler; exceeding it
// means uncontrolled emission fan-out, which is a caller bug.
const Capacity = 10

// ErrBufferOverflow marks a fatal emission overflow. It is never retried and
// the event is never silently dropped - the error propagates to the caller
// of Publish.
var ErrBufferOverflow = errors.New("event bus buffer overflow")

type subscriber struct {
	ch chan domain.AccountEvent
	// last is the most recently enqueued snapshot, used to suppress
	// consecutive duplicates for this subscriber.
	last *domain.Account
}

func (s *subscriber) enqueue(ev domain.AccountEvent) (bool, error) {
	if s.last != nil && s.last.Equal(ev.Account) {
		return false, nil
	}
	select {
	case s.ch <- ev:
		snapshot := ev.Account
		s.last = &snapshot
		return true, nil
	default:
		return false, ErrBufferOverflow
	}
}

// Bus is one multi-subscriber broadcast channel. The zero value is not
// usable; create instances with New.
type Bus struct {
	name string

	mu   sync.Mutex
	subs map[uuid.UUID]*subscriber
}

// New creates a bus. name labels metrics and log lines ("account" or
// "session").
func New(name string) *Bus {
	return &Bus{
		name: name,
		subs: make(map[uuid.UUID]*subscriber),
	}
}

// Subscribe registers a subscriber and returns its event channel plus a
// cancel func. Cancelling at any time has no effect on persisted state.
//
// initial is replayed into the channel before any live event, one synthetic
// event per snapshot; the channel is sized len(initial)+Capacity so a large
// snapshot cannot trip the overflow policy reserved for reentrant emission.
func (b *Bus) Subscribe(initial []domain.Account) (<-chan domain.AccountEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{ch: make(chan domain.AccountEvent, len(initial)+Capacity)}
	for _, account := range initial {
		// Buffer can't be full here, so enqueue never errors.
		_, _ = sub.enqueue(domain.AccountEvent{ID: ulid.Make().String(), Account: account})
	}

	id := uuid.New()
	b.subs[id] = sub
	metrics.BusSubscribers.WithLabelValues(b.name).Set(float64(len(b.subs)))

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
			metrics.BusSubscribers.WithLabelValues(b.name).Set(float64(len(b.subs)))
		}
	}
	return sub.ch, cancel
}

// Publish broadcasts one committed snapshot to every subscriber. Events for
// the same account reach every subscriber in publish order. Returns
// ErrBufferOverflow if any subscriber's buffer is full; the store write has
// already committed at that point, so the error marks an emission-fanout bug
// rather than a condition to roll back or retry.
func (b *Bus) Publish(account domain.Account) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ev := domain.AccountEvent{ID: ulid.Make().String(), Account: account}
	for _, sub := range b.subs {
		sent, err := sub.enqueue(ev)
		if err != nil {
			metrics.BusOverflowsTotal.WithLabelValues(b.name).Inc()
			slog.Error("Event bus buffer overflow",
				"bus", b.name,
				"user_id", account.UserID,
				"capacity", cap(sub.ch),
			)
			return fmt.Errorf("%w: bus %s, user %s", ErrBufferOverflow, b.name, account.UserID)
		}
		if !sent {
			metrics.BusSuppressedTotal.WithLabelValues(b.name).Inc()
		}
	}

	metrics.BusPublishedTotal.WithLabelValues(b.name).Inc()
	return nil
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close cancels every subscriber. Used on shutdown.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
	metrics.BusSubscribers.WithLabelValues(b.name).Set(0)
}
