package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/leadsync/internal/metrics"
	"github.com/xavierca1/leadsync/internal/usecase"
)

// Ingester is the ingestion use case the webhook also calls.
type Ingester interface {
	Execute(ctx context.Context, p usecase.QualificationPayload) (*usecase.IngestResult, error)
}

type consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// ResultWorker feeds qualification results from ResultsQueue through the
// ingestion use case. Successes are acked; rejected payloads are
// dead-lettered; a store failure is requeued once before it is dead-lettered.
type ResultWorker struct {
	Channel  consumer
	Ingester Ingester
	Logger   *slog.Logger
}

func NewResultWorker(ch consumer, ingester Ingester, logger *slog.Logger) *ResultWorker {
	return &ResultWorker{
		Channel:  ch,
		Ingester: ingester,
		Logger:   logger.With("component", "result_worker"),
	}
}

// Start consumes until ctx is done or the channel closes.
func (w *ResultWorker) Start(ctx context.Context) error {
	msgs, err := w.Channel.Consume(
		ResultsQueue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("registering consumer: %w", err)
	}

	w.Logger.Info("worker waiting for results", "queue", ResultsQueue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.handle(ctx, d)
		}
	}
}

func (w *ResultWorker) handle(ctx context.Context, d amqp.Delivery) {
	var payload usecase.QualificationPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		w.Logger.Warn("malformed result", "message_id", d.MessageId, "error", err)
		w.settle(d, "invalid", d.Nack(false, false))
		return
	}

	res, err := w.Ingester.Execute(ctx, payload)
	if err == nil {
		w.Logger.Info("result applied", "lead_id", res.Lead.ID, "created", res.Created)
		w.settle(d, "applied", d.Ack(false))
		return
	}

	if usecase.IsPersistenceError(err) && !usecase.IsNotFound(err) && !d.Redelivered {
		w.Logger.Warn("result not stored, requeueing", "lead_id", payload.LeadID, "error", err)
		w.settle(d, "requeued", d.Nack(false, true))
		return
	}

	w.Logger.Error("result rejected", "lead_id", payload.LeadID, "error", err)
	w.settle(d, "dead_lettered", d.Nack(false, false))
}

func (w *ResultWorker) settle(d amqp.Delivery, outcome string, err error) {
	metrics.RecordQueueMessage(ResultsQueue, outcome)
	if err != nil {
		w.Logger.Error("settling delivery", "delivery_tag", d.DeliveryTag, "outcome", outcome, "error", err)
	}
}
