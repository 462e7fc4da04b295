package eventpubsub

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tradeplatform/trade-platform/src/eventmodels"
)

// ConsumerGroup cooperatively consumes a topic: one worker per partition,
// manual offset commit. The offset advances only after the handler returns
// nil, so a crash mid-handler causes redelivery (at-least-once delivery).
// On handler failure the message is redelivered after a fixed backoff up to
// MaxAttempts, then routed to the dead-letter topic together with failure
// context, and the offset is committed. Non-retryable errors skip the
// backoff cycle and dead-letter immediately.
type ConsumerGroup struct {
	bus     *Bus
	topic   *topic
	cfg     ConsumerConfig
	handler Handler

	committed []atomic.Int64
	stopped   atomic.Bool
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// Subscribe registers a consumer group on a topic. Start must be called to
// begin consumption.
func (b *Bus) Subscribe(topicName string, cfg ConsumerConfig, handler Handler) (*ConsumerGroup, error) {
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("Subscribe: %w", ErrInvalidGroupID)
	}
	if handler == nil {
		return nil, fmt.Errorf("Subscribe: handler must not be nil")
	}

	t, err := b.getTopic(topicName)
	if err != nil {
		return nil, fmt.Errorf("Subscribe: %w", err)
	}

	if cfg.DeadLetterTopic != "" {
		if _, err := b.getTopic(cfg.DeadLetterTopic); err != nil {
			return nil, fmt.Errorf("Subscribe: dead-letter %w", err)
		}
	}

	g := &ConsumerGroup{
		bus:       b,
		topic:     t,
		cfg:       cfg.withDefaults(),
		handler:   handler,
		committed: make([]atomic.Int64, len(t.partitions)),
	}

	for i, p := range t.partitions {
		start := int64(0)
		if g.cfg.OffsetReset == OffsetResetLatest {
			start = p.nextOffset()
		}
		g.committed[i].Store(start)
	}

	t.addGroup(g)

	log.Infof("Subscribed group %s to topic %s (%d partitions, maxAttempts=%d, backoff=%s)",
		cfg.GroupID, topicName, len(t.partitions), g.cfg.MaxAttempts, g.cfg.BackoffInterval)
	return g, nil
}

// Start launches one worker goroutine per partition.
func (g *ConsumerGroup) Start(ctx context.Context) {
	g.startOnce.Do(func() {
		for i := range g.topic.partitions {
			g.wg.Add(1)
			go g.runPartition(ctx, i)
		}
	})
}

// Stop signals the workers to stop after their in-flight message completes
// and waits for them to drain. Running handlers are never interrupted.
func (g *ConsumerGroup) Stop() {
	g.stopOnce.Do(func() {
		g.stopped.Store(true)
		for _, p := range g.topic.partitions {
			p.wake()
		}
		g.wg.Wait()
		log.Infof("ConsumerGroup %s: stopped", g.cfg.GroupID)
	})
}

func (g *ConsumerGroup) committedOffset(partitionIdx int) int64 {
	return g.committed[partitionIdx].Load()
}

func (g *ConsumerGroup) runPartition(ctx context.Context, idx int) {
	defer g.wg.Done()

	p := g.topic.partitions[idx]
	offset := g.committed[idx].Load()

	stoppedFn := func() bool {
		return g.stopped.Load() || ctx.Err() != nil
	}

	for {
		rec, effectiveOffset, ok := p.fetch(offset, stoppedFn)
		if !ok {
			return
		}

		msg := Message{
			Topic:     g.topic.name,
			Partition: idx,
			Offset:    effectiveOffset,
			Key:       rec.key,
			Value:     rec.value,
			Headers:   rec.headers,
			Timestamp: rec.timestamp,
		}

		g.processMessage(ctx, msg)

		offset = effectiveOffset + 1
		g.committed[idx].Store(offset)
		g.topic.compact(idx)
	}
}

// processMessage drives one record to completion: success, or dead-letter
// after the retry budget is spent. It returns only when the offset may be
// committed.
func (g *ConsumerGroup) processMessage(ctx context.Context, msg Message) {
	attempts := 0

	for {
		attempts++

		err := g.invokeHandler(ctx, msg)
		if err == nil {
			return
		}

		log.Errorf("ConsumerGroup %s: handler failed for topic=%s partition=%d offset=%d attempt=%d/%d: %v",
			g.cfg.GroupID, msg.Topic, msg.Partition, msg.Offset, attempts, g.cfg.MaxAttempts, err)

		if !eventmodels.IsRetryable(err) {
			log.Warnf("ConsumerGroup %s: non-retryable error, dead-lettering immediately: %v", g.cfg.GroupID, err)
			g.deadLetter(msg, err, attempts)
			return
		}

		if attempts >= g.cfg.MaxAttempts {
			g.deadLetter(msg, err, attempts)
			return
		}

		time.Sleep(g.cfg.BackoffInterval)
	}
}

func (g *ConsumerGroup) invokeHandler(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return g.handler(ctx, msg)
}

func (g *ConsumerGroup) deadLetter(msg Message, handlerErr error, attempts int) {
	headers := copyHeaders(msg.Headers)
	if headers == nil {
		headers = make(map[string]string)
	}
	headers[HeaderError] = handlerErr.Error()
	headers[HeaderAttempts] = strconv.Itoa(attempts)
	headers[HeaderSourceTopic] = msg.Topic
	headers[HeaderSourcePartition] = strconv.Itoa(msg.Partition)
	headers[HeaderSourceOffset] = strconv.FormatInt(msg.Offset, 10)
	headers[HeaderGroupID] = g.cfg.GroupID

	// hand the enriched record to the hook so persistence sees the same
	// failure context as the dead-letter topic
	msg.Headers = headers

	if g.cfg.DeadLetterTopic != "" {
		if err := g.bus.Publish(g.cfg.DeadLetterTopic, msg.Key, msg.Value, headers); err != nil {
			log.Errorf("ConsumerGroup %s: failed to publish to dead-letter topic %s, message dropped: key=%s: %v",
				g.cfg.GroupID, g.cfg.DeadLetterTopic, msg.Key, err)
		} else {
			log.Warnf("ConsumerGroup %s: dead-lettered message key=%s after %d attempt(s): %v",
				g.cfg.GroupID, msg.Key, attempts, handlerErr)
		}
	}

	if g.cfg.OnDeadLetter != nil {
		g.cfg.OnDeadLetter(msg, handlerErr, attempts)
	}
}
