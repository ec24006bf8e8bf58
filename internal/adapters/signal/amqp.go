package signal

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/rainydays/internal/domain"
)

// AMQPBridge fans storage events out to every process bound to the same
// exchange. Events are delivered to local subscribers right away; copies that
// come back from the broker carrying this bridge's AppId are dropped.
type AMQPBridge struct {
	url      string
	exchange string
	instance string
	hub      *Hub

	mu   sync.Mutex
	conn *amqp.Connection
	pub  *amqp.Channel
}

func NewAMQPBridge(url, exchange string, hub *Hub) *AMQPBridge {
	if hub == nil {
		hub = NewHub()
	}
	return &AMQPBridge{url: url, exchange: exchange, instance: uuid.NewString(), hub: hub}
}

func (b *AMQPBridge) Connect() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return errors.Wrap(err, "dial amqp")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(b.exchange, "fanout", true, false, false, false, nil); err != nil {
		conn.Close()
		return errors.Wrapf(err, "declare exchange %s", b.exchange)
	}
	b.mu.Lock()
	b.conn, b.pub = conn, ch
	b.mu.Unlock()
	return nil
}

func (b *AMQPBridge) Publish(ctx context.Context, ev domain.StorageEvent) error {
	b.hub.Dispatch(ev)

	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode storage event")
	}
	b.mu.Lock()
	ch := b.pub
	b.mu.Unlock()
	if ch == nil {
		return errors.New("amqp bridge not connected")
	}
	return ch.PublishWithContext(ctx, b.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		AppId:       b.instance,
		Body:        body,
	})
}

func (b *AMQPBridge) Subscribe(fn func(domain.StorageEvent)) func() {
	return b.hub.Subscribe(fn)
}

// Run consumes events from other processes until ctx is done or the
// connection drops.
func (b *AMQPBridge) Run(ctx context.Context) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return errors.New("amqp bridge not connected")
	}
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "open consumer channel")
	}
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return errors.Wrap(err, "declare queue")
	}
	if err := ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		return errors.Wrap(err, "bind queue")
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "consume")
	}
	log.Info().Str("exchange", b.exchange).Str("queue", q.Name).Msg("listening for storage events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			if d.AppId == b.instance {
				continue
			}
			var ev domain.StorageEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				log.Warn().Err(err).Msg("bad storage event")
				continue
			}
			b.hub.Dispatch(ev)
		}
	}
}

func (b *AMQPBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn, b.pub = nil, nil
	return err
}
