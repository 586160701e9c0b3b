package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_PublishReachesEverySubscriber(t *testing.T) {
	b := NewBroker[int]()
	defer b.Shutdown()

	ctx := context.Background()
	a := b.Subscribe(ctx)
	c := b.Subscribe(ctx)
	require.Equal(t, 2, b.SubscriberCount())

	b.Publish("n", 7)

	for _, ch := range []<-chan Event[int]{a, c} {
		select {
		case e := <-ch:
			assert.Equal(t, Event[int]{Type: "n", Payload: 7}, e)
		default:
			t.Fatal("expected an event")
		}
	}
}

func TestBroker_FullSubscriberDropsEvents(t *testing.T) {
	b := NewBrokerWithBuffer[int](1)
	defer b.Shutdown()

	ch := b.Subscribe(context.Background())
	b.Publish("n", 1)
	b.Publish("n", 2)

	e := <-ch
	assert.Equal(t, 1, e.Payload)
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %v", e)
	default:
	}
}

func TestBroker_CancelledSubscriptionIsRemoved(t *testing.T) {
	b := NewBroker[string]()
	defer b.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
	assert.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBroker_Shutdown(t *testing.T) {
	b := NewBroker[string]()
	ch := b.Subscribe(context.Background())

	b.Shutdown()
	b.Shutdown()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount())

	late := b.Subscribe(context.Background())
	_, ok = <-late
	assert.False(t, ok)

	b.Publish("ignored", "x")
}
