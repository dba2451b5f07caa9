// Package events publishes settlement events to RabbitMQ after their transaction commits.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	DepositConfirmed    = "deposit.confirmed"
	DepositRejected     = "deposit.rejected"
	ReferralCompleted   = "referral.completed"
	BalanceAdjusted     = "balance.adjusted"
	SubmissionReviewed  = "submission.reviewed"
	WithdrawalProcessed = "withdrawal.processed"
)

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
	Close()
}

// NoopPublisher is used when RabbitMQ is not configured or unreachable at startup.
type NoopPublisher struct {
	Log *zap.Logger
}

func (p *NoopPublisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	if p.Log != nil {
		p.Log.Debug("publish skipped", zap.String("routing_key", routingKey))
	}
	return nil
}

func (p *NoopPublisher) Close() {}

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Producer publishes JSON events to a durable topic exchange.
type Producer struct {
	mu          sync.Mutex
	conn        *amqp091.Connection
	channel     publishChannel
	openChannel func() (publishChannel, error)
	exchange    string
	log         *zap.Logger
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewProducer dials RabbitMQ and declares the exchange.
func NewProducer(amqpURL, exchange string, log *zap.Logger) (*Producer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{
		conn:    conn,
		channel: ch,
		openChannel: func() (publishChannel, error) {
			return conn.Channel()
		},
		exchange: exchange,
		log:      log,
	}, nil
}

func (p *Producer) Publish(ctx context.Context, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	p.log.Warn("publish failed, reopening channel", zap.String("routing_key", routingKey), zap.Error(err))
	_ = p.channel.Close()
	ch, chErr := p.openChannel()
	if chErr != nil {
		return chErr
	}
	p.channel = ch
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

func (p *Producer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Connect returns a Producer, or a NoopPublisher when url is empty or the broker is unreachable.
func Connect(amqpURL, exchange string, log *zap.Logger) Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(amqpURL) == "" {
		log.Info("RABBITMQ_URL not set, events disabled")
		return &NoopPublisher{Log: log}
	}
	producer, err := NewProducer(amqpURL, exchange, log)
	if err != nil {
		log.Warn("rabbitmq unavailable, events disabled", zap.Error(err))
		return &NoopPublisher{Log: log}
	}
	return producer
}
