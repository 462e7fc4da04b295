package eventconsumers

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/tradeplatform/trade-platform/src/eventmodels"
	"github.com/tradeplatform/trade-platform/src/eventpubsub"
	"github.com/tradeplatform/trade-platform/src/eventservices"
)

// TradeOrderConsumer drains the orders topic and drives each order through
// the execution pipeline.
type TradeOrderConsumer struct {
	bus     *eventpubsub.Bus
	topic   string
	cfg     eventpubsub.ConsumerConfig
	service *eventservices.TradeOrderService
	group   *eventpubsub.ConsumerGroup
}

func NewTradeOrderConsumer(bus *eventpubsub.Bus, topic string, cfg eventpubsub.ConsumerConfig, service *eventservices.TradeOrderService) *TradeOrderConsumer {
	return &TradeOrderConsumer{
		bus:     bus,
		topic:   topic,
		cfg:     cfg,
		service: service,
	}
}

func (c *TradeOrderConsumer) Start(ctx context.Context) error {
	group, err := c.bus.Subscribe(c.topic, c.cfg, c.handleMessage)
	if err != nil {
		return fmt.Errorf("TradeOrderConsumer.Start: %w", err)
	}

	c.group = group
	c.group.Start(ctx)

	log.Infof("TradeOrderConsumer: started on topic %s", c.topic)
	return nil
}

func (c *TradeOrderConsumer) Stop() {
	if c.group != nil {
		c.group.Stop()
	}
}

func (c *TradeOrderConsumer) handleMessage(ctx context.Context, msg eventpubsub.Message) error {
	log.Infof("TradeOrderConsumer: received order: key=%s topic=%s partition=%d offset=%d",
		msg.Key, msg.Topic, msg.Partition, msg.Offset)

	var order eventmodels.TradeOrder
	if err := json.Unmarshal(msg.Value, &order); err != nil {
		// Malformed payloads can never succeed on retry.
		return eventmodels.NewValidationError(
			fmt.Sprintf("failed to unmarshal trade order: %v", err), nil)
	}

	if _, err := c.service.ProcessOrder(&order); err != nil {
		return fmt.Errorf("TradeOrderConsumer.handleMessage: %w", err)
	}

	return nil
}
