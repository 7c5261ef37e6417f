// Package rabbitmq реализует публикацию событий жизненного цикла
// учётных записей в RabbitMQ: подключение с повторами, объявление
// обменника и очередей, JSON-публикацию сообщений.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// ExchangeName — обменник событий учётных записей.
const ExchangeName = "account-events"

// Ключи маршрутизации событий жизненного цикла.
const (
	RoutingPlanActivated  = "plan.activated"
	RoutingUserBanned     = "user.banned"
	RoutingUserUnbanned   = "user.unbanned"
	RoutingTelegramLinked = "telegram.linked"
)

// QueueConfig связывает очередь с ключом маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetAccountEventQueues возвращает очереди для потребителей событий.
func GetAccountEventQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "account-events.plan", RoutingKey: RoutingPlanActivated},
		{QueueName: "account-events.ban", RoutingKey: RoutingUserBanned},
		{QueueName: "account-events.unban", RoutingKey: RoutingUserUnbanned},
		{QueueName: "account-events.telegram", RoutingKey: RoutingTelegramLinked},
	}
}

// Connect устанавливает соединение с RabbitMQ с повторами.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	for range retries {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// SetupChannel открывает канал, объявляет обменник и очереди с привязками.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q.QueueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}

		err = ch.QueueBind(
			q.QueueName,
			q.RoutingKey,
			ExchangeName,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
