package eventpubsub

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusTopics(t *testing.T) {
	bus := NewBus(0)

	t.Run("create and publish", func(t *testing.T) {
		require.NoError(t, bus.CreateTopic("orders", 3))
		require.NoError(t, bus.Publish("orders", "k1", []byte("v1"), nil))
	})

	t.Run("duplicate topic rejected", func(t *testing.T) {
		err := bus.CreateTopic("orders", 3)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTopicExists)
	})

	t.Run("unknown topic rejected", func(t *testing.T) {
		err := bus.Publish("missing", "k1", []byte("v1"), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTopicNotFound)
	})

	t.Run("empty key rejected", func(t *testing.T) {
		err := bus.Publish("orders", "", []byte("v1"), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyKey)
	})

	t.Run("closed bus rejects publish", func(t *testing.T) {
		bus.Close()
		err := bus.Publish("orders", "k1", []byte("v1"), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBusClosed)
	})
}

func TestBusSameKeySamePartition(t *testing.T) {
	bus := NewBus(0)
	require.NoError(t, bus.CreateTopic("orders", 8))

	topic, err := bus.getTopic("orders")
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish("orders", "stable-key", []byte(fmt.Sprintf("v%d", i)), nil))
	}

	nonEmpty := 0
	for _, p := range topic.partitions {
		if p.nextOffset() > 0 {
			nonEmpty++
		}
	}
	assert.Equal(t, 1, nonEmpty, "all records for one key must land on one partition")
}

func TestConsumerPerKeyOrdering(t *testing.T) {
	bus := NewBus(0)
	require.NoError(t, bus.CreateTopic("orders", 4))

	const perKey = 25
	keys := []string{"alpha", "beta", "gamma"}

	var mu sync.Mutex
	received := make(map[string][]string)
	var wg sync.WaitGroup
	wg.Add(len(keys) * perKey)

	group, err := bus.Subscribe("orders", ConsumerConfig{GroupID: "g1"}, func(ctx context.Context, msg Message) error {
		mu.Lock()
		received[msg.Key] = append(received[msg.Key], string(msg.Value))
		mu.Unlock()
		wg.Done()
		return nil
	})
	require.NoError(t, err)

	group.Start(context.Background())
	defer group.Stop()

	for i := 0; i < perKey; i++ {
		for _, key := range keys {
			require.NoError(t, bus.Publish("orders", key, []byte(fmt.Sprintf("%s-%d", key, i)), nil))
		}
	}

	waitTimeout(t, &wg, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	for _, key := range keys {
		require.Len(t, received[key], perKey)
		for i, value := range received[key] {
			assert.Equal(t, fmt.Sprintf("%s-%d", key, i), value)
		}
	}
}

func TestConsumerOffsetResetLatest(t *testing.T) {
	bus := NewBus(0)
	require.NoError(t, bus.CreateTopic("orders", 1))

	require.NoError(t, bus.Publish("orders", "k1", []byte("old"), nil))

	var mu sync.Mutex
	var received []string
	var wg sync.WaitGroup
	wg.Add(1)

	group, err := bus.Subscribe("orders", ConsumerConfig{GroupID: "late", OffsetReset: OffsetResetLatest}, func(ctx context.Context, msg Message) error {
		mu.Lock()
		received = append(received, string(msg.Value))
		mu.Unlock()
		wg.Done()
		return nil
	})
	require.NoError(t, err)

	group.Start(context.Background())
	defer group.Stop()

	require.NoError(t, bus.Publish("orders", "k1", []byte("new"), nil))

	waitTimeout(t, &wg, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"new"}, received)
}

func TestConsumerStopDrains(t *testing.T) {
	bus := NewBus(0)
	require.NoError(t, bus.CreateTopic("orders", 1))

	started := make(chan struct{})
	finished := make(chan struct{})

	group, err := bus.Subscribe("orders", ConsumerConfig{GroupID: "g1"}, func(ctx context.Context, msg Message) error {
		close(started)
		time.Sleep(100 * time.Millisecond)
		close(finished)
		return nil
	})
	require.NoError(t, err)

	group.Start(context.Background())
	require.NoError(t, bus.Publish("orders", "k1", []byte("v1"), nil))

	<-started
	group.Stop()

	select {
	case <-finished:
	default:
		t.Fatal("Stop returned before the in-flight handler finished")
	}
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for messages")
	}
}
