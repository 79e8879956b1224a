// Package amqp は社員イベントを RabbitMQ のトピック exchange に発行します。
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ogurasousui/employer-onboarding/internal/core/employer"
	"github.com/ogurasousui/employer-onboarding/internal/platform/config"
)

const defaultPublishTimeout = 5 * time.Second

// Channel は Publisher が利用する amqp.Channel の操作です。
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher は employer.EventPublisher の AMQP 実装です。
type Publisher struct {
	conn     *amqp.Connection
	ch       Channel
	exchange string
	timeout  time.Duration
}

var _ employer.EventPublisher = (*Publisher)(nil)

// Dial はブローカーへ接続し、exchange を宣言した Publisher を返します。
func Dial(cfg config.MessagingConfig) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}

	p, err := NewPublisher(ch, cfg.Exchange)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisher は開設済みのチャネルから Publisher を生成します。
func NewPublisher(ch Channel, exchange string) (*Publisher, error) {
	if ch == nil {
		return nil, errors.New("amqp: channel is nil")
	}
	if exchange == "" {
		return nil, errors.New("amqp: exchange must be set")
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("amqp: declare exchange %s: %w", exchange, err)
	}
	return &Publisher{ch: ch, exchange: exchange, timeout: defaultPublishTimeout}, nil
}

// Publish はイベント種別をルーティングキーとして JSON で発行します。
func (p *Publisher) Publish(ctx context.Context, event employer.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("amqp: encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ulid.Make().String(),
		Type:         string(event.Type),
		Timestamp:    event.OccurredAt,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, msg); err != nil {
		return fmt.Errorf("amqp: publish %s: %w", event.Type, err)
	}
	return nil
}

// Close はチャネルと接続を閉じます。
func (p *Publisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}
