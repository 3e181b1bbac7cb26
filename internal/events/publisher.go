package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// ExchangeChains — topic exchange жизненного цикла chains.
const ExchangeChains Exchange = "conveyor.chains"

// Routing keys.
const (
	RoutingKeyChainStarted   RoutingKey = "chain.started"
	RoutingKeyTaskCompleted  RoutingKey = "task.completed"
	RoutingKeyChainCompleted RoutingKey = "chain.completed"
	RoutingKeyChainFailed    RoutingKey = "chain.failed"
)

// publishTimeout — потолок на одну публикацию.
const publishTimeout = 5 * time.Second

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeChainStarted   MessageType = "chain.started"
	MessageTypeTaskCompleted  MessageType = "task.completed"
	MessageTypeChainCompleted MessageType = "chain.completed"
	MessageTypeChainFailed    MessageType = "chain.failed"
)

// SetupTopology объявляет exchange жизненного цикла.
// Очереди не создаются: подписчики биндят свои.
func SetupTopology(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeChains), // name
			"topic",                // type
			true,                   // durable
			false,                  // auto-deleted
			false,                  // internal
			false,                  // no-wait
			nil,                    // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeChains, err)
		}
		return nil
	})
}

// Message — конверт события.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// ChainStartedPayload — chain зарегистрирован и начал выполняться.
type ChainStartedPayload struct {
	ChainID      string   `json:"chain_id"`
	TaskSequence []string `json:"task_sequence"`
}

// TaskCompletedPayload — задача chain успешно завершена.
type TaskCompletedPayload struct {
	ChainID    string  `json:"chain_id"`
	Task       string  `json:"task"`
	Attempts   int     `json:"attempts"`
	ElapsedSec float64 `json:"elapsed_sec"`
}

// ChainCompletedPayload — все задачи chain завершены.
type ChainCompletedPayload struct {
	ChainID        string  `json:"chain_id"`
	TasksCompleted int     `json:"tasks_completed"`
	ElapsedSec     float64 `json:"elapsed_sec"`
}

// ChainFailedPayload — chain упал.
type ChainFailedPayload struct {
	ChainID    string `json:"chain_id"`
	FailedTask string `json:"failed_task"`
	Error      string `json:"error"`
}

// Publisher публикует события жизненного цикла в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в exchange жизненного цикла.
func (p *Publisher) Publish(ctx context.Context, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(ExchangeChains), // exchange
			string(routingKey),     // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", ExchangeChains, routingKey, err)
		}

		p.logger.Debug("published event",
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishChainStarted публикует событие о запуске chain.
func (p *Publisher) PublishChainStarted(ctx context.Context, payload ChainStartedPayload) error {
	return p.Publish(ctx, RoutingKeyChainStarted, MessageTypeChainStarted, payload)
}

// PublishTaskCompleted публикует событие о завершённой задаче.
func (p *Publisher) PublishTaskCompleted(ctx context.Context, payload TaskCompletedPayload) error {
	return p.Publish(ctx, RoutingKeyTaskCompleted, MessageTypeTaskCompleted, payload)
}

// PublishChainCompleted публикует событие об успешном завершении chain.
func (p *Publisher) PublishChainCompleted(ctx context.Context, payload ChainCompletedPayload) error {
	return p.Publish(ctx, RoutingKeyChainCompleted, MessageTypeChainCompleted, payload)
}

// PublishChainFailed публикует событие о падении chain.
func (p *Publisher) PublishChainFailed(ctx context.Context, payload ChainFailedPayload) error {
	return p.Publish(ctx, RoutingKeyChainFailed, MessageTypeChainFailed, payload)
}
