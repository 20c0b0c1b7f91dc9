package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/leadsync/internal/metrics"
	"github.com/xavierca1/leadsync/internal/usecase"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// SignalProducer publishes every arm and disarm to SignalExchange under
// "signal.<flag>".
type SignalProducer struct {
	Ch     publisher
	Logger *slog.Logger
}

func NewSignalProducer(ch publisher, logger *slog.Logger) *SignalProducer {
	return &SignalProducer{Ch: ch, Logger: logger.With("component", "signal_producer")}
}

func SignalRoutingKey(s usecase.AutomationSignal) string {
	return "signal." + string(s.Flag)
}

func (p *SignalProducer) PublishSignal(ctx context.Context, s usecase.AutomationSignal) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding signal: %w", err)
	}

	err = p.Ch.PublishWithContext(ctx,
		SignalExchange,
		SignalRoutingKey(s),
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   uuid.NewString(),
			Timestamp:   s.At,
			Body:        body,
			// Pulses expire after a minute and are not persisted.
			DeliveryMode: amqp.Transient,
			Expiration:   "60000",
		},
	)
	if err != nil {
		metrics.RecordQueueMessage(SignalExchange, "publish_failed")
		return fmt.Errorf("publishing signal: %w", err)
	}

	metrics.RecordQueueMessage(SignalExchange, "published")
	p.Logger.Debug("signal published", "flag", s.Flag, "armed", s.Armed)
	return nil
}
