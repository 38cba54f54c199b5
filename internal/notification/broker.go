package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher fans a serialized notification out to external consumers.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// BrokerPublisher publishes to a durable RabbitMQ topic exchange over one
// long-lived channel, redialing once if the connection dropped.
type BrokerPublisher struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func DialBroker(url, exchange string) (*BrokerPublisher, error) {
	p := &BrokerPublisher{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect replaces the current connection. The old channel and connection
// are closed first so a redial never leaves a socket behind.
func (p *BrokerPublisher) connect() error {
	p.release()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *BrokerPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if p.ch == nil || p.ch.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}
	err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if errors.Is(err, amqp.ErrClosed) {
		if err := p.connect(); err != nil {
			return err
		}
		err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	}
	return err
}

func (p *BrokerPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.release()
}

// release closes and forgets the channel and connection. Callers hold mu.
func (p *BrokerPublisher) release() error {
	var err error
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		if !p.conn.IsClosed() {
			err = p.conn.Close()
		}
		p.conn = nil
	}
	return err
}
