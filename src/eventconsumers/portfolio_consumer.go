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

// PortfolioConsumer drains the filled-orders topic and reconciles each fill
// into the owning user's portfolio.
type PortfolioConsumer struct {
	bus     *eventpubsub.Bus
	topic   string
	cfg     eventpubsub.ConsumerConfig
	service *eventservices.PortfolioService
	group   *eventpubsub.ConsumerGroup
}

func NewPortfolioConsumer(bus *eventpubsub.Bus, topic string, cfg eventpubsub.ConsumerConfig, service *eventservices.PortfolioService) *PortfolioConsumer {
	return &PortfolioConsumer{
		bus:     bus,
		topic:   topic,
		cfg:     cfg,
		service: service,
	}
}

func (c *PortfolioConsumer) Start(ctx context.Context) error {
	group, err := c.bus.Subscribe(c.topic, c.cfg, c.handleMessage)
	if err != nil {
		return fmt.Errorf("PortfolioConsumer.Start: %w", err)
	}

	c.group = group
	c.group.Start(ctx)

	log.Infof("PortfolioConsumer: started on topic %s", c.topic)
	return nil
}

func (c *PortfolioConsumer) Stop() {
	if c.group != nil {
		c.group.Stop()
	}
}

func (c *PortfolioConsumer) handleMessage(ctx context.Context, msg eventpubsub.Message) error {
	log.Infof("PortfolioConsumer: received order: key=%s topic=%s partition=%d offset=%d",
		msg.Key, msg.Topic, msg.Partition, msg.Offset)

	var order eventmodels.TradeOrder
	if err := json.Unmarshal(msg.Value, &order); err != nil {
		return eventmodels.NewValidationError(
			fmt.Sprintf("failed to unmarshal trade order: %v", err), nil)
	}

	if order.Status != eventmodels.OrderStatusFilled {
		log.Infof("PortfolioConsumer: ignoring order %s with status %s", order.OrderID, order.Status)
		return nil
	}

	if _, err := c.service.UpdatePortfolio(ctx, &order); err != nil {
		return fmt.Errorf("PortfolioConsumer.handleMessage: %w", err)
	}

	return nil
}
