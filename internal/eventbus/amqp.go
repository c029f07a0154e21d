package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPTransport delivers events over RabbitMQ using one fanout exchange per
// event type and an exclusive auto-delete queue per subscriber, so every
// running consumer gets its own copy. Auto-ack keeps the semantics
// best-effort, matching the redis transport.
type AMQPTransport struct {
	conn *amqp.Connection

	mu    sync.Mutex
	pubCh *amqp.Channel
}

func NewAMQPTransport(url string) (*AMQPTransport, error) {
	const op = "eventbus.NewAMQPTransport"

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &AMQPTransport{conn: conn}, nil
}

func (t *AMQPTransport) Close() error {
	return t.conn.Close()
}

func (t *AMQPTransport) Publish(ctx context.Context, channel string, body []byte) error {
	const op = "eventbus.AMQPTransport.Publish"

	// amqp channels are not safe for concurrent use.
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pubCh == nil {
		ch, err := t.conn.Channel()
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		t.pubCh = ch
	}

	if err := t.declareExchange(t.pubCh, channel); err != nil {
		t.pubCh = nil
		return fmt.Errorf("%s:%w", op, err)
	}

	err := t.pubCh.PublishWithContext(ctx,
		channel, // exchange
		"",      // routing key (fanout ignores it)
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now().UTC(),
			Body:        body,
		},
	)
	if err != nil {
		t.pubCh = nil
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (t *AMQPTransport) Consume(
	ctx context.Context,
	channels []string,
	ready chan<- struct{},
	deliver func(channel string, body []byte),
) error {
	const op = "eventbus.AMQPTransport.Consume"

	ch, err := t.conn.Channel()
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	defer func() { _ = ch.Close() }()

	var wg sync.WaitGroup

	for _, name := range channels {
		if err := t.declareExchange(ch, name); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		q, err := ch.QueueDeclare(
			"",    // server-named
			false, // durable
			true,  // autoDelete
			true,  // exclusive
			false, // noWait
			nil,
		)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := ch.QueueBind(q.Name, "", name, false, nil); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		channel := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range msgs {
				deliver(channel, d.Body)
			}
		}()
	}

	close(ready)

	<-ctx.Done()
	_ = ch.Close()
	wg.Wait()

	return ctx.Err()
}

func (t *AMQPTransport) declareExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(
		name,     // name
		"fanout", // kind
		false,    // durable
		true,     // autoDelete
		false,    // internal
		false,    // noWait
		nil,
	)
}
