package eventpubsub

import (
	"context"
	"fmt"
	"time"
)

var (
	ErrTopicNotFound  = fmt.Errorf("topic not found")
	ErrTopicExists    = fmt.Errorf("topic already exists")
	ErrBusClosed      = fmt.Errorf("bus is closed")
	ErrEmptyKey       = fmt.Errorf("message key must not be empty")
	ErrInvalidGroupID = fmt.Errorf("consumer group id must not be empty")
)

// Headers attached to dead-lettered messages describing the failure context.
const (
	HeaderError           = "x-death-error"
	HeaderAttempts        = "x-death-attempts"
	HeaderSourceTopic     = "x-death-source-topic"
	HeaderSourcePartition = "x-death-source-partition"
	HeaderSourceOffset    = "x-death-source-offset"
	HeaderGroupID         = "x-death-group-id"
)

// Message is a single record on a topic partition. The key defines the
// partition routing and therefore the scope of ordering guarantees.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one message. Returning nil commits the offset; returning
// an error triggers the consumer group's retry/dead-letter policy.
type Handler func(ctx context.Context, msg Message) error

// OffsetReset determines where a new consumer group starts reading.
const (
	OffsetResetEarliest = "earliest"
	OffsetResetLatest   = "latest"
)

// ConsumerConfig holds the reliability knobs for a consumer group, mirroring
// the externally configured consumer settings of the message contract.
type ConsumerConfig struct {
	GroupID         string
	OffsetReset     string
	MaxAttempts     int
	BackoffInterval time.Duration
	DeadLetterTopic string

	// OnDeadLetter is invoked after a message has been routed to the
	// dead-letter topic, once per dead-lettered message. Optional.
	OnDeadLetter func(msg Message, handlerErr error, attempts int)
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.OffsetReset == "" {
		c.OffsetReset = OffsetResetEarliest
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffInterval <= 0 {
		c.BackoffInterval = time.Second
	}
	return c
}
