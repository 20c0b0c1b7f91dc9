package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// SignalExchange fans automation pulses out to any bound worker queue.
	SignalExchange = "ex.automation"

	ResultsExchange   = "ex.qualification"
	ResultsQueue      = "q.qualification.results"
	ResultsRoutingKey = "k.qualification.result"
	ResultsDLQ        = "q.qualification.results.dlq"
	DLXName           = "ex.dlx"
)

type RabbitMQ struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

// NewRabbitMQ dials url and declares the topology both binaries rely on.
func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	if err := setupTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring topology: %w", err)
	}

	return &RabbitMQ{Conn: conn, Ch: ch}, nil
}

func (r *RabbitMQ) Close() error {
	if err := r.Ch.Close(); err != nil && !r.Conn.IsClosed() {
		return err
	}
	return r.Conn.Close()
}

type declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// setupTopology declares the signal exchange and the results queue with its
// dead-letter pair. A nacked result lands in ResultsDLQ.
func setupTopology(ch declarer) error {
	if err := ch.ExchangeDeclare(SignalExchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(DLXName, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(ResultsDLQ, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(ResultsDLQ, ResultsRoutingKey, DLXName, false, nil); err != nil {
		return err
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    DLXName,
		"x-dead-letter-routing-key": ResultsRoutingKey,
	}
	if err := ch.ExchangeDeclare(ResultsExchange, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(ResultsQueue, true, false, false, false, args); err != nil {
		return err
	}
	return ch.QueueBind(ResultsQueue, ResultsRoutingKey, ResultsExchange, false, nil)
}
