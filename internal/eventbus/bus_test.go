package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/accounthub/internal/domain"
)

func account(userID string, state domain.AccountState) domain.Account {
	return domain.Account{UserID: userID, Username: userID, State: state}
}

func drain(ch <-chan domain.AccountEvent) []domain.Account {
	var out []domain.Account
	for {
		select {
		case ev := <-ch:
			out = append(out, ev.Account)
		default:
			return out
		}
	}
}

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	bus := New("account")

	ch1, cancel1 := bus.Subscribe(nil)
	defer cancel1()
	ch2, cancel2 := bus.Subscribe(nil)
	defer cancel2()

	require.NoError(t, bus.Publish(account("u1", domain.AccountReady)))

	for _, ch := range []<-chan domain.AccountEvent{ch1, ch2} {
		events := drain(ch)
		require.Len(t, events, 1)
		assert.Equal(t, "u1", events[0].UserID)
		assert.Equal(t, domain.AccountReady, events[0].State)
	}
}

func TestBus_OrderingPerAccount(t *testing.T) {
	bus := New("account")
	ch, cancel := bus.Subscribe(nil)
	defer cancel()

	require.NoError(t, bus.Publish(account("u1", domain.AccountNotReady)))
	require.NoError(t, bus.Publish(account("u1", domain.AccountTwoPassModeNeeded)))
	require.NoError(t, bus.Publish(account("u1", domain.AccountReady)))

	events := drain(ch)
	require.Len(t, events, 3)
	assert.Equal(t, domain.AccountNotReady, events[0].State)
	assert.Equal(t, domain.AccountTwoPassModeNeeded, events[1].State)
	assert.Equal(t, domain.AccountReady, events[2].State)
}

func TestBus_EventIDsAreUniqueAndSortable(t *testing.T) {
	bus := New("account")
	ch, cancel := bus.Subscribe(nil)
	defer cancel()

	require.NoError(t, bus.Publish(account("u1", domain.AccountNotReady)))
	require.NoError(t, bus.Publish(account("u1", domain.AccountReady)))

	var first, second domain.AccountEvent
	first = <-ch
	second = <-ch
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Less(t, first.ID, second.ID)
}

func TestBus_ConsecutiveDuplicatesSuppressed(t *testing.T) {
	bus := New("account")
	ch, cancel := bus.Subscribe(nil)
	defer cancel()

	require.NoError(t, bus.Publish(account("u1", domain.AccountReady)))
	require.NoError(t, bus.Publish(account("u1", domain.AccountReady)))
	require.NoError(t, bus.Publish(account("u1", domain.AccountDisabled)))
	require.NoError(t, bus.Publish(account("u1", domain.AccountReady)))

	events := drain(ch)
	require.Len(t, events, 3)
	assert.Equal(t, domain.AccountReady, events[0].State)
	assert.Equal(t, domain.AccountDisabled, events[1].State)
	assert.Equal(t, domain.AccountReady, events[2].State)
}

func TestBus_InitialStateReplayedBeforeLiveEvents(t *testing.T) {
	bus := New("account")

	snapshot := []domain.Account{
		account("u1", domain.AccountReady),
		account("u2", domain.AccountDisabled),
	}
	ch, cancel := bus.Subscribe(snapshot)
	defer cancel()

	require.NoError(t, bus.Publish(account("u3", domain.AccountNotReady)))

	events := drain(ch)
	require.Len(t, events, 3)
	assert.Equal(t, "u1", events[0].UserID)
	assert.Equal(t, "u2", events[1].UserID)
	assert.Equal(t, "u3", events[2].UserID)
}

func TestBus_InitialSnapshotDedupAgainstFirstLiveEvent(t *testing.T) {
	bus := New("account")

	ready := account("u1", domain.AccountReady)
	ch, cancel := bus.Subscribe([]domain.Account{ready})
	defer cancel()

	// Identical live event right after the snapshot is a consecutive
	// duplicate for this subscriber.
	require.NoError(t, bus.Publish(ready))
	require.NoError(t, bus.Publish(account("u1", domain.AccountDisabled)))

	events := drain(ch)
	require.Len(t, events, 2)
	assert.Equal(t, domain.AccountReady, events[0].State)
	assert.Equal(t, domain.AccountDisabled, events[1].State)
}

func TestBus_OverflowAtCapacity(t *testing.T) {
	bus := New("account")
	_, cancel := bus.Subscribe(nil)
	defer cancel()

	// Nobody drains the channel: emissions buffer up as they would during a
	// reentrant cascade. Capacity emissions succeed, one more fails.
	for i := 0; i < Capacity; i++ {
		state := domain.AccountReady
		if i%2 == 1 {
			state = domain.AccountDisabled
		}
		require.NoError(t, bus.Publish(account("u1", state)))
	}

	err := bus.Publish(account("u1", domain.AccountRemoved))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBufferOverflow)
}

func TestBus_InitialSnapshotDoesNotConsumeOverflowBudget(t *testing.T) {
	bus := New("account")

	snapshot := make([]domain.Account, 25)
	for i := range snapshot {
		snapshot[i] = account(string(rune('a'+i)), domain.AccountReady)
	}
	_, cancel := bus.Subscribe(snapshot)
	defer cancel()

	// The full live budget is still available after a large snapshot.
	for i := 0; i < Capacity; i++ {
		state := domain.AccountReady
		if i%2 == 1 {
			state = domain.AccountDisabled
		}
		require.NoError(t, bus.Publish(account("zz", state)))
	}
	assert.ErrorIs(t, bus.Publish(account("zz", domain.AccountRemoved)), ErrBufferOverflow)
}

func TestBus_CancelStopsDeliveryAndClosesChannel(t *testing.T) {
	bus := New("account")
	ch, cancel := bus.Subscribe(nil)

	require.NoError(t, bus.Publish(account("u1", domain.AccountReady)))
	cancel()
	// Cancel is idempotent.
	cancel()

	// Buffered event is still readable, then the channel closes.
	ev, ok := <-ch
	assert.True(t, ok)
	assert.Equal(t, "u1", ev.Account.UserID)

	_, ok = <-ch
	assert.False(t, ok)

	assert.Equal(t, 0, bus.SubscriberCount())
	require.NoError(t, bus.Publish(account("u2", domain.AccountReady)))
}

func TestBus_ReentrantPublishFromHandler(t *testing.T) {
	bus := New("account")
	ch, cancel := bus.Subscribe(nil)
	defer cancel()

	require.NoError(t, bus.Publish(account("u1", domain.AccountNotReady)))

	// Simulate a handler that reacts to the first event by synchronously
	// triggering a follow-up emission before draining further.
	ev := <-ch
	assert.Equal(t, domain.AccountNotReady, ev.Account.State)
	require.NoError(t, bus.Publish(account("u1", domain.AccountReady)))

	follow := <-ch
	assert.Equal(t, domain.AccountReady, follow.Account.State)
}

func TestBus_Close(t *testing.T) {
	bus := New("account")
	ch1, _ := bus.Subscribe(nil)
	ch2, _ := bus.Subscribe(nil)

	bus.Close()

	_, ok := <-ch1
	assert.False(t, ok)
	_, ok = <-ch2
	assert.False(t, ok)
	assert.Equal(t, 0, bus.SubscriberCount())
}
