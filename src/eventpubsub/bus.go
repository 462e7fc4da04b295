package eventpubsub

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Bus is an in-process message bus with a topic/partition model. Records for
// the same key always land on the same partition, so ordering is guaranteed
// per key and per key only. Publishing is synchronous: once Publish returns
// nil the record is durable in the partition log, which stands in for the
// idempotent, all-replica-acknowledged producer of the external broker.
type Bus struct {
	mu                   sync.RWMutex
	topics               map[string]*topic
	closed               atomic.Bool
	retainedPerPartition int
}

func NewBus(retainedPerPartition int) *Bus {
	if retainedPerPartition <= 0 {
		retainedPerPartition = 1024
	}
	return &Bus{
		topics:               make(map[string]*topic),
		retainedPerPartition: retainedPerPartition,
	}
}

// CreateTopic registers a topic with the given partition count.
func (b *Bus) CreateTopic(name string, partitions int) error {
	if name == "" {
		return fmt.Errorf("CreateTopic: topic name must not be empty")
	}
	if partitions <= 0 {
		partitions = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, found := b.topics[name]; found {
		return fmt.Errorf("CreateTopic: %s: %w", name, ErrTopicExists)
	}

	t := &topic{
		name:       name,
		retained:   b.retainedPerPartition,
		partitions: make([]*partition, partitions),
	}
	for i := range t.partitions {
		t.partitions[i] = newPartition()
	}
	b.topics[name] = t

	log.Infof("Bus.CreateTopic: created topic %s with %d partitions", name, partitions)
	return nil
}

func (b *Bus) getTopic(name string) (*topic, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, found := b.topics[name]
	if !found {
		return nil, fmt.Errorf("%s: %w", name, ErrTopicNotFound)
	}
	return t, nil
}

// Publish appends a record to the partition selected by the key hash and
// returns once the append is durable.
func (b *Bus) Publish(topicName, key string, value []byte, headers map[string]string) error {
	if b.closed.Load() {
		return fmt.Errorf("Publish: %s: %w", topicName, ErrBusClosed)
	}
	if key == "" {
		return fmt.Errorf("Publish: %s: %w", topicName, ErrEmptyKey)
	}

	t, err := b.getTopic(topicName)
	if err != nil {
		return fmt.Errorf("Publish: %w", err)
	}

	idx := partitionFor(key, len(t.partitions))
	offset := t.partitions[idx].append(record{
		key:       key,
		value:     value,
		headers:   copyHeaders(headers),
		timestamp: time.Now().UTC(),
	})

	log.Tracef("Bus.Publish: topic=%s key=%s partition=%d offset=%d", topicName, key, idx, offset)
	return nil
}

// Close stops the bus from accepting new records and wakes all blocked
// consumers. In-flight handler invocations are not interrupted.
func (b *Bus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, t := range b.topics {
		for _, p := range t.partitions {
			p.close()
		}
	}

	log.Info("Bus.Close: bus closed")
}

func partitionFor(key string, partitions int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(partitions))
}

func copyHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	dup := make(map[string]string, len(headers))
	for k, v := range headers {
		dup[k] = v
	}
	return dup
}

type record struct {
	key       string
	value     []byte
	headers   map[string]string
	timestamp time.Time
}

type topic struct {
	name       string
	retained   int
	partitions []*partition

	groupsMu sync.Mutex
	groups   []*ConsumerGroup
}

func (t *topic) addGroup(g *ConsumerGroup) {
	t.groupsMu.Lock()
	defer t.groupsMu.Unlock()
	t.groups = append(t.groups, g)
}

// compact drops records below the lowest committed offset of all groups on
// the topic, but only once a partition exceeds its retention bound. Records
// no group has consumed are never dropped.
func (t *topic) compact(partitionIdx int) {
	t.groupsMu.Lock()
	minCommitted := int64(-1)
	for _, g := range t.groups {
		committed := g.committedOffset(partitionIdx)
		if minCommitted < 0 || committed < minCommitted {
			minCommitted = committed
		}
	}
	t.groupsMu.Unlock()

	if minCommitted < 0 {
		return
	}
	t.partitions[partitionIdx].trim(minCommitted, t.retained)
}

// partition is an append-only ordered log. Consumers block on the condition
// variable until a record arrives at their offset.
type partition struct {
	mu         sync.Mutex
	cond       *sync.Cond
	baseOffset int64
	records    []record
	closed     bool
}

func newPartition() *partition {
	p := &partition{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *partition) append(rec record) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.records = append(p.records, rec)
	offset := p.baseOffset + int64(len(p.records)) - 1
	p.cond.Broadcast()
	return offset
}

// fetch blocks until a record exists at or after the given offset, the
// partition closes, or the stop predicate becomes true. It returns the
// record together with its effective offset, which may be later than the
// requested one if retention already dropped older records.
func (p *partition) fetch(offset int64, stopped func() bool) (record, int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if stopped() {
			return record{}, 0, false
		}
		if offset < p.baseOffset {
			offset = p.baseOffset
		}

		idx := offset - p.baseOffset
		if idx < int64(len(p.records)) {
			return p.records[idx], offset, true
		}
		if p.closed {
			return record{}, 0, false
		}

		p.cond.Wait()
	}
}

func (p *partition) nextOffset() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.baseOffset + int64(len(p.records))
}

func (p *partition) trim(minCommitted int64, retained int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.records) <= retained {
		return
	}

	cut := minCommitted - p.baseOffset
	if excess := int64(len(p.records) - retained); cut > excess {
		cut = excess
	}
	if cut <= 0 {
		return
	}

	p.records = p.records[cut:]
	p.baseOffset += cut
}

func (p *partition) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
}

func (p *partition) wake() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cond.Broadcast()
}
